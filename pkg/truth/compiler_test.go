package truth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/flow"
)

const floodKey = "earth:flood:h3:886142a8e7fffff:surface:2026-01-07T12:00Z"

func floodClaimTypeWithSchema(t *testing.T) ClaimType {
	t.Helper()
	ct, err := NewClaimType(ClaimType{
		ID: "earth.flood.v1", Version: 1, Domain: "earth", Topic: "flood",
		RiskProfile: RiskMonitor,
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"severity", "observation_count"},
			"properties": map[string]interface{}{
				"severity": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"low", "medium", "high", "unknown"},
				},
				"water_level_meters": map[string]interface{}{"type": "number", "minimum": 0},
				"observation_count":  map[string]interface{}{"type": "integer", "minimum": 1},
				"network_trust":      map[string]interface{}{"type": "number"},
			},
			"additionalProperties": false,
		},
	})
	require.NoError(t, err)
	return ct
}

func floodObservations(t *testing.T) []Observation {
	t.Helper()
	a := sampleObservation("user:reporter-a")
	a.ObservationID = "6a3c1b4e-0000-4000-8000-000000000001"
	b := sampleObservation("user:reporter-b")
	b.ObservationID = "6a3c1b4e-0000-4000-8000-000000000002"
	return []Observation{a, b}
}

func floodSnapshot(t *testing.T) flow.Snapshot {
	return testSnapshot(t, map[string]float64{
		"user:reporter-a": 150,
		"user:reporter-b": 150,
	})
}

func compileFlood(t *testing.T, compileTime time.Time) TruthState {
	t.Helper()
	state, err := CompileTruthState(
		floodClaimTypeWithSchema(t),
		floodKey,
		floodObservations(t),
		floodSnapshot(t),
		"earth.flood.v1.policy.1",
		CompilerVersion,
		compileTime,
		[]float64{0.9, 0.88},
		nil,
	)
	require.NoError(t, err)
	return state
}

// Deterministic flood: two agreeing observations in the monitor lane
// autovalidate as true.
func TestCompile_DeterministicFlood(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	state := compileFlood(t, compileTime)

	assert.Equal(t, StatusVerifiedTrue, state.Status)
	assert.Equal(t, BasisAIAutovalidation, state.VerificationBasis)
	assert.Equal(t, 2, state.Claim["observation_count"])
	assert.Equal(t, "high", state.Claim["severity"])
	assert.Equal(t, 1.5, state.Claim["water_level_meters"])
	assert.Equal(t, 0.89, state.AIConfidence)
	assert.Len(t, state.Security.SemanticHash, 64)
	assert.Len(t, state.Security.StateHash, 64)

	ok, err := state.VerifyHashes()
	require.NoError(t, err)
	assert.True(t, ok)
}

// Two calls with byte-identical inputs produce byte-identical hashes and
// serialization.
func TestCompile_Determinism(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	a := compileFlood(t, compileTime)
	b := compileFlood(t, compileTime)

	assert.Equal(t, a.Security.StateHash, b.Security.StateHash)
	assert.Equal(t, a.Security.SemanticHash, b.Security.SemanticHash)

	ja, err := canonical.MarshalJSON(a)
	require.NoError(t, err)
	jb, err := canonical.MarshalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
}

// Observation order cannot change the output.
func TestCompile_ObservationOrderInsensitive(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	obs := floodObservations(t)
	reversed := []Observation{obs[1], obs[0]}

	a, err := CompileTruthState(floodClaimTypeWithSchema(t), floodKey, obs, floodSnapshot(t),
		"earth.flood.v1.policy.1", CompilerVersion, compileTime, []float64{0.9, 0.88}, nil)
	require.NoError(t, err)
	b, err := CompileTruthState(floodClaimTypeWithSchema(t), floodKey, reversed, floodSnapshot(t),
		"earth.flood.v1.policy.1", CompilerVersion, compileTime, []float64{0.9, 0.88}, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Security.SemanticHash, b.Security.SemanticHash)
}

// Compile-time decoupling: shifting only compile_time keeps the semantic
// hash and changes the state hash.
func TestCompile_SemanticStability(t *testing.T) {
	base := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	a := compileFlood(t, base)
	b := compileFlood(t, base.Add(5*time.Minute))

	assert.Equal(t, a.Security.SemanticHash, b.Security.SemanticHash)
	assert.NotEqual(t, a.Security.StateHash, b.Security.StateHash)
}

// Changing only the compiler version likewise preserves semantics.
func TestCompile_CompilerVersionOnlyChangesStateHash(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	a := compileFlood(t, compileTime)

	b, err := CompileTruthState(floodClaimTypeWithSchema(t), floodKey, floodObservations(t),
		floodSnapshot(t), "earth.flood.v1.policy.1", "1.0.1", compileTime, []float64{0.9, 0.88}, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Security.SemanticHash, b.Security.SemanticHash)
	assert.NotEqual(t, a.Security.StateHash, b.Security.StateHash)
}

// Contradiction: high AI variance goes undecided with the penalty.
func TestCompile_Contradiction(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	obs := floodObservations(t)
	c := sampleObservation("user:reporter-c")
	c.ObservationID = "6a3c1b4e-0000-4000-8000-000000000003"
	obs = append(obs, c)

	snap := testSnapshot(t, map[string]float64{
		"user:reporter-a": 150, "user:reporter-b": 150, "user:reporter-c": 150,
	})

	state, err := CompileTruthState(floodClaimTypeWithSchema(t), floodKey, obs, snap,
		"earth.flood.v1.policy.1", CompilerVersion, compileTime, []float64{0.1, 0.9, 0.5}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusUndecided, state.Status)
	assert.Contains(t, state.TransparencyFlags, FlagContradictionDetected)
	assert.Equal(t, -0.2, state.ConfidenceBreakdown.Modifiers["contradiction_penalty"])
	assert.Equal(t, canonical.Round6(state.AIConfidence-0.2), state.Confidence)
}

// Authority override: two rejects lose to one qualified override.
func TestCompile_AuthorityOverride(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	votes := []Vote{
		{VoterID: "user:r1", VoterStanding: 50, VoteType: VoteReject},
		{VoterID: "user:r2", VoterStanding: 50, VoteType: VoteReject},
		{VoterID: "user:authority", VoterStanding: 500, VoteType: VoteOverride},
	}

	state, err := CompileTruthState(floodClaimTypeWithSchema(t), floodKey, floodObservations(t),
		floodSnapshot(t), "earth.flood.v1.policy.1", CompilerVersion, compileTime,
		[]float64{0.9, 0.88}, votes)
	require.NoError(t, err)

	require.NotNil(t, state.Consensus)
	assert.True(t, state.Consensus.Finalized)
	assert.Equal(t, StatusVerifiedTrue, state.Status)
	assert.Equal(t, BasisHumanConsensus, state.VerificationBasis)
}

// Critical lane: AI direction is recorded, humans decide.
func TestCompile_CriticalLane(t *testing.T) {
	ct := floodClaimTypeWithSchema(t)
	ct.RiskProfile = RiskCritical
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	state, err := CompileTruthState(ct, floodKey, floodObservations(t), floodSnapshot(t),
		"earth.flood.v1.policy.1", CompilerVersion, compileTime, []float64{0.9, 0.88}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusPendingHumanReview, state.Status)
	assert.Empty(t, state.VerificationBasis)
	assert.Contains(t, state.TransparencyFlags, FlagAIRecommendsTrue)
	assert.Contains(t, state.TransparencyFlags, FlagAwaitingHumanConsensus)
}

func TestCompile_Preconditions(t *testing.T) {
	ct := floodClaimTypeWithSchema(t)
	snap := floodSnapshot(t)
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	// Missing compile time.
	_, err := CompileTruthState(ct, floodKey, floodObservations(t), snap,
		"p", CompilerVersion, time.Time{}, nil, nil)
	assert.Equal(t, ErrInvalidInput, KindOf(err))

	// Empty observations.
	_, err = CompileTruthState(ct, floodKey, nil, snap, "p", CompilerVersion, compileTime, nil, nil)
	assert.Equal(t, ErrInvalidInput, KindOf(err))

	// Tampered snapshot.
	tampered := floodSnapshot(t)
	trust := tampered.AgentTrusts["user:reporter-a"]
	trust.EffectiveTrust = 900
	tampered.AgentTrusts["user:reporter-a"] = trust
	_, err = CompileTruthState(ct, floodKey, floodObservations(t), tampered,
		"p", CompilerVersion, compileTime, nil, nil)
	assert.Equal(t, ErrIntegrityMismatch, KindOf(err))

	// Malformed truth key.
	_, err = CompileTruthState(ct, "earth:flood:h3", floodObservations(t), snap,
		"p", CompilerVersion, compileTime, nil, nil)
	assert.Equal(t, ErrParse, KindOf(err))

	// Domain mismatch between key and claim type.
	_, err = CompileTruthState(ct, "ocean:flood:h3:886142a8e7fffff:surface:2026-01-07T12:00Z",
		floodObservations(t), snap, "p", CompilerVersion, compileTime, nil, nil)
	assert.Equal(t, ErrInvalidInput, KindOf(err))
}

// A derived payload that violates the output schema is a typed failure,
// never a partial state.
func TestCompile_SchemaViolation(t *testing.T) {
	ct := floodClaimTypeWithSchema(t)
	// Tighten the schema so the derived severity is rejected.
	ct.OutputSchema["properties"].(map[string]interface{})["severity"].(map[string]interface{})["enum"] =
		[]interface{}{"low", "medium"}

	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	_, err := CompileTruthState(ct, floodKey, floodObservations(t), floodSnapshot(t),
		"p", CompilerVersion, compileTime, []float64{0.9, 0.88}, nil)
	require.Error(t, err)
	assert.Equal(t, ErrSchemaValidation, KindOf(err))
}

// The audit block carries everything needed to replay the compile.
func TestCompile_CompileInputs(t *testing.T) {
	compileTime := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	state := compileFlood(t, compileTime)

	assert.Equal(t, []string{
		"6a3c1b4e-0000-4000-8000-000000000001",
		"6a3c1b4e-0000-4000-8000-000000000002",
	}, state.CompileInputs.ObservationIDs)
	assert.Equal(t, "earth.flood.v1", state.CompileInputs.ClaimTypeID)
	assert.Equal(t, "earth.flood.v1.policy.1", state.CompileInputs.PolicyVersion)
	assert.Equal(t, CompilerVersion, state.CompileInputs.CompilerVersion)
	assert.NotEmpty(t, state.CompileInputs.TrustSnapshotHash)
	assert.Equal(t, "2026-01-07T12:00:00Z", canonical.Datetime(state.CompileInputs.CompileTime.Time))
}
