package truth

import (
	"sort"
	"strings"
	"time"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/flow"
	"github.com/kaori-protocol/kaori/pkg/schema"
)

// CompilerVersion is bumped whenever the compilation algorithm changes.
const CompilerVersion = "1.0.0"

// aiVarianceContradiction is the sample-variance level above which AI
// scores are treated as contradicting each other.
const aiVarianceContradiction = 0.15

// contradictionPenalty is the confidence modifier applied on detection.
const contradictionPenalty = -0.20

// Aggregate holds the observation-level metrics the status and
// confidence stages consume.
type Aggregate struct {
	ObservationCount int
	NetworkTrust     float64
	AIConfidenceMean float64
	AIVariance       float64
}

// CompileTruthState is the pure compiler entry point.
//
// Given identical inputs — including compileTime — it produces
// byte-identical output. Changing only compileTime leaves the semantic
// hash unchanged and changes the state hash. The returned state is
// unsigned; signing is a separate, explicit step.
func CompileTruthState(
	claimType ClaimType,
	truthKey string,
	observations []Observation,
	snapshot flow.Snapshot,
	policyVersion string,
	compilerVersion string,
	compileTime time.Time,
	aiScores []float64,
	votes []Vote,
) (TruthState, error) {
	if compileTime.IsZero() {
		return TruthState{}, compileErr(ErrInvalidInput,
			"compile_time must be explicitly provided; wall-clock time is not an input")
	}
	if len(observations) == 0 {
		return TruthState{}, compileErr(ErrInvalidInput, "at least one observation is required")
	}
	for _, obs := range observations {
		if obs.ReportedAt.IsZero() {
			return TruthState{}, &CompilationError{
				Kind:    ErrInvalidInput,
				Message: "observation " + obs.ObservationID + " has no timezone-aware reported_at",
				Details: map[string]interface{}{"code": canonical.CodeNaiveDatetime},
			}
		}
	}
	if !snapshot.VerifyHash() {
		computed, _ := snapshot.ComputeHash()
		return TruthState{}, &CompilationError{
			Kind:    ErrIntegrityMismatch,
			Message: "trust snapshot hash mismatch",
			Details: map[string]interface{}{
				"expected": computed,
				"got":      snapshot.SnapshotHash,
			},
		}
	}
	parsedKey, err := ParseTruthKey(truthKey)
	if err != nil {
		return TruthState{}, err
	}
	if parsedKey.Domain != strings.ToLower(claimType.Domain) {
		return TruthState{}, compileErr(ErrInvalidInput,
			"truth key domain %q does not match claim type domain %q", parsedKey.Domain, claimType.Domain)
	}
	if err := ValidateDomainSystem(strings.ToLower(claimType.Domain), strings.ToLower(claimType.TruthKey.SpatialSystem)); err != nil {
		return TruthState{}, err
	}

	claimTypeHash, err := claimType.Hash()
	if err != nil {
		return TruthState{}, compileErr(ErrCanonicalization, "claim type hash: %v", err)
	}

	// Normalize ordering before anything hashes: concurrent producers may
	// deliver observations in any order.
	observationIDs := make([]string, len(observations))
	for i, obs := range observations {
		observationIDs[i] = obs.ObservationID
	}
	sort.Strings(observationIDs)

	evidenceSet := make(map[string]struct{})
	for _, obs := range observations {
		for _, ref := range obs.EvidenceRefs {
			evidenceSet[ref.URI] = struct{}{}
		}
	}
	evidenceRefs := make([]string, 0, len(evidenceSet))
	for uri := range evidenceSet {
		evidenceRefs = append(evidenceRefs, uri)
	}
	sort.Strings(evidenceRefs)

	compileInputs := CompileInputs{
		ObservationIDs:    observationIDs,
		ClaimTypeID:       claimType.ID,
		ClaimTypeHash:     claimTypeHash,
		PolicyVersion:     policyVersion,
		CompilerVersion:   compilerVersion,
		TrustSnapshotHash: snapshot.SnapshotHash,
		CompileTime:       canonical.NewTime(compileTime),
	}

	aggregate := computeAggregate(observations, snapshot, aiScores)

	rawPayload, err := DeriveClaimPayload(observations, snapshot, claimType, truthKey, aggregate)
	if err != nil {
		return TruthState{}, err
	}

	claim, err := validateClaim(rawPayload, claimType)
	if err != nil {
		return TruthState{}, err
	}

	status, basis, flags, consensus := determineStatus(aggregate, claimType, votes)
	if flags == nil {
		flags = []string{}
	}
	sort.Strings(flags)

	breakdown := assembleConfidence(aggregate, claimType, flags)

	state := TruthState{
		TruthKey:            truthKey,
		ClaimType:           claimType.ID,
		ClaimTypeHash:       claimTypeHash,
		Status:              status,
		VerificationBasis:   basis,
		Claim:               claim,
		AIConfidence:        aggregate.AIConfidenceMean,
		Confidence:          breakdown.FinalScore,
		ConfidenceBreakdown: breakdown,
		TransparencyFlags:   flags,
		CompileInputs:       compileInputs,
		EvidenceRefs:        evidenceRefs,
		ObservationIDs:      observationIDs,
		Consensus:           consensus,
	}

	semanticHash, err := state.ComputeSemanticHash()
	if err != nil {
		return TruthState{}, compileErr(ErrCanonicalization, "semantic hash: %v", err)
	}
	stateHash, err := state.ComputeStateHash()
	if err != nil {
		return TruthState{}, compileErr(ErrCanonicalization, "state hash: %v", err)
	}

	state.Security = SecurityBlock{
		SemanticHash:  semanticHash,
		StateHash:     stateHash,
		SigningMethod: "pending",
		KeyID:         "pending",
		SignedAt:      canonical.NewTime(compileTime),
	}
	return state, nil
}

// computeAggregate sums reporter power and folds AI scores. Missing AI
// scores default to the neutral 0.5 per observation; variance is the
// sample variance, zero for a single score.
func computeAggregate(observations []Observation, snapshot flow.Snapshot, aiScores []float64) Aggregate {
	networkTrust := 0.0
	for _, obs := range observations {
		networkTrust += snapshot.EffectiveTrustFor(obs.ReporterID)
	}

	scores := aiScores
	if len(scores) == 0 {
		scores = make([]float64, len(observations))
		for i := range scores {
			scores[i] = 0.5
		}
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	if len(scores) > 1 {
		for _, s := range scores {
			variance += (s - mean) * (s - mean)
		}
		variance /= float64(len(scores) - 1)
	}

	return Aggregate{
		ObservationCount: len(observations),
		NetworkTrust:     networkTrust,
		AIConfidenceMean: canonical.Round6(mean),
		AIVariance:       canonical.Round6(variance),
	}
}

func validateClaim(rawPayload map[string]interface{}, claimType ClaimType) (map[string]interface{}, error) {
	if claimType.OutputSchema == nil {
		return canonical.Dict(rawPayload), nil
	}
	compiled, err := schema.Compile(claimType.OutputSchema)
	if err != nil {
		return nil, compileErr(ErrSchemaValidation, "output schema for %s is malformed: %v", claimType.ID, err)
	}
	claim, err := compiled.Validate(rawPayload)
	if err != nil {
		if verr, ok := err.(*schema.ValidationError); ok {
			entries := make([]interface{}, len(verr.Entries))
			for i, e := range verr.Entries {
				entries[i] = map[string]interface{}{"path": e.Path, "code": e.Code}
			}
			return nil, &CompilationError{
				Kind:    ErrSchemaValidation,
				Message: verr.Error(),
				Details: map[string]interface{}{"errors": entries},
			}
		}
		return nil, compileErr(ErrSchemaValidation, "claim validation: %v", err)
	}
	return claim, nil
}

// determineStatus routes the aggregate through contradiction detection,
// human consensus, and the risk lanes, in that order.
func determineStatus(aggregate Aggregate, claimType ClaimType, votes []Vote) (Status, VerificationBasis, []string, *ConsensusRecord) {
	var flags []string

	if aggregate.AIVariance > aiVarianceContradiction {
		flags = append(flags, FlagContradictionDetected)
		return StatusUndecided, "", flags, nil
	}

	if len(votes) > 0 {
		record := ComputeConsensus(votes, claimType.Consensus)
		if record.Finalized {
			if strings.HasPrefix(record.FinalizeReason, "REJECT_THRESHOLD") {
				return StatusVerifiedFalse, BasisHumanConsensus, flags, &record
			}
			return StatusVerifiedTrue, BasisHumanConsensus, flags, &record
		}
		// Unfinalized votes ride along; the lanes decide.
		status, basis, laneFlags := laneStatus(aggregate, claimType)
		return status, basis, append(flags, laneFlags...), &record
	}

	status, basis, laneFlags := laneStatus(aggregate, claimType)
	return status, basis, append(flags, laneFlags...), nil
}

func laneStatus(aggregate Aggregate, claimType ClaimType) (Status, VerificationBasis, []string) {
	var flags []string
	trueThreshold := claimType.Autovalidation.TrueThreshold
	falseThreshold := claimType.Autovalidation.FalseThreshold
	mean := aggregate.AIConfidenceMean

	if claimType.RiskProfile == RiskMonitor {
		switch {
		case mean >= trueThreshold:
			return StatusVerifiedTrue, BasisAIAutovalidation, flags
		case mean <= falseThreshold:
			return StatusVerifiedFalse, BasisAIAutovalidation, flags
		default:
			return StatusInvestigating, "", flags
		}
	}

	// Critical lane: the AI direction is recorded but never decides.
	if mean >= trueThreshold {
		flags = append(flags, FlagAIRecommendsTrue)
	} else if mean <= falseThreshold {
		flags = append(flags, FlagAIRecommendsFalse)
	}
	flags = append(flags, FlagAwaitingHumanConsensus)
	return StatusPendingHumanReview, "", flags
}

func assembleConfidence(aggregate Aggregate, claimType ClaimType, flags []string) ConfidenceBreakdown {
	components := map[string]float64{
		"ai_confidence": aggregate.AIConfidenceMean,
	}
	modifiers := map[string]float64{}
	for _, flag := range flags {
		if flag == FlagContradictionDetected {
			modifiers["contradiction_penalty"] = contradictionPenalty
		}
	}
	return ComputeConfidence(components, modifiers, claimType.Confidence)
}
