package truth

import (
	"sort"
	"strings"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// Status is the truth state machine. Intermediate statuses may change
// during the observation window; terminal statuses are frozen and
// signed, and require a recorded verification basis.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusLeaningTrue        Status = "LEANING_TRUE"
	StatusLeaningFalse       Status = "LEANING_FALSE"
	StatusUndecided          Status = "UNDECIDED"
	StatusInvestigating      Status = "INVESTIGATING"
	StatusPendingHumanReview Status = "PENDING_HUMAN_REVIEW"

	StatusVerifiedTrue  Status = "VERIFIED_TRUE"
	StatusVerifiedFalse Status = "VERIFIED_FALSE"
	StatusInconclusive  Status = "INCONCLUSIVE"
	StatusExpired       Status = "EXPIRED"
)

// Terminal reports whether the status is frozen.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerifiedTrue, StatusVerifiedFalse, StatusInconclusive, StatusExpired:
		return true
	}
	return false
}

// VerificationBasis records what caused a verification.
type VerificationBasis string

const (
	BasisAIAutovalidation     VerificationBasis = "AI_AUTOVALIDATION"
	BasisHumanConsensus       VerificationBasis = "HUMAN_CONSENSUS"
	BasisAuthorityOverride    VerificationBasis = "AUTHORITY_OVERRIDE"
	BasisImplicitConsensus    VerificationBasis = "IMPLICIT_CONSENSUS"
	BasisTimeoutDefault       VerificationBasis = "TIMEOUT_DEFAULT"
	BasisTimeoutInconclusive  VerificationBasis = "TIMEOUT_INCONCLUSIVE"
)

// Transparency flags.
const (
	FlagContradictionDetected  = "CONTRADICTION_DETECTED"
	FlagAIRecommendsTrue       = "AI_RECOMMENDS_TRUE"
	FlagAIRecommendsFalse      = "AI_RECOMMENDS_FALSE"
	FlagAwaitingHumanConsensus = "AWAITING_HUMAN_CONSENSUS"
)

// CompileInputs is the audit record embedded in every TruthState: it
// carries enough to replay compilation exactly.
type CompileInputs struct {
	ObservationIDs    []string       `json:"observation_ids"`
	ClaimTypeID       string         `json:"claim_type_id"`
	ClaimTypeHash     string         `json:"claim_type_hash"`
	PolicyVersion     string         `json:"policy_version"`
	CompilerVersion   string         `json:"compiler_version"`
	TrustSnapshotHash string         `json:"trust_snapshot_hash"`
	CompileTime       canonical.Time `json:"compile_time"`
}

// Canonical returns the hashable representation.
func (ci CompileInputs) Canonical() map[string]interface{} {
	ids := append([]string(nil), ci.ObservationIDs...)
	sort.Strings(ids)
	return map[string]interface{}{
		"observation_ids":     toAnySlice(ids),
		"claim_type_id":       strings.ToLower(ci.ClaimTypeID),
		"claim_type_hash":     strings.ToLower(ci.ClaimTypeHash),
		"policy_version":      ci.PolicyVersion,
		"compiler_version":    ci.CompilerVersion,
		"trust_snapshot_hash": strings.ToLower(ci.TrustSnapshotHash),
		"compile_time":        canonical.Datetime(ci.CompileTime.Time),
	}
}

// SecurityBlock is the cryptographic envelope. The semantic hash covers
// content only; the state hash covers the full envelope including
// compile time and compiler version. Signatures are over the state hash.
type SecurityBlock struct {
	SemanticHash  string         `json:"semantic_hash"`
	StateHash     string         `json:"state_hash"`
	Signature     string         `json:"signature"`
	SigningMethod string         `json:"signing_method"`
	KeyID         string         `json:"key_id"`
	SignedAt      canonical.Time `json:"signed_at"`
}

// ConfidenceBreakdown records how the composite score was assembled.
type ConfidenceBreakdown struct {
	Components map[string]float64 `json:"components"`
	Modifiers  map[string]float64 `json:"modifiers"`
	RawScore   float64            `json:"raw_score"`
	FinalScore float64            `json:"final_score"`
}

// Vote is a single consensus vote.
type Vote struct {
	VoterID       string  `json:"voter_id"`
	VoterStanding float64 `json:"voter_standing"`
	VoteType      string  `json:"vote_type"`
}

// ConsensusRecord is the outcome of weighted-threshold consensus.
type ConsensusRecord struct {
	Votes          []Vote  `json:"votes"`
	Score          int     `json:"score"`
	Finalized      bool    `json:"finalized"`
	FinalizeReason string  `json:"finalize_reason,omitempty"`
	PositiveRatio  float64 `json:"positive_ratio"`
}

// TruthState is the compiler's output: the canonical, cryptographically
// committed verdict for one TruthKey at one compile time.
type TruthState struct {
	TruthKey          string                 `json:"truthkey"`
	ClaimType         string                 `json:"claim_type"`
	ClaimTypeHash     string                 `json:"claim_type_hash"`
	Status            Status                 `json:"status"`
	VerificationBasis VerificationBasis      `json:"verification_basis,omitempty"`
	Claim             map[string]interface{} `json:"claim"`

	AIConfidence        float64             `json:"ai_confidence"`
	Confidence          float64             `json:"confidence"`
	ConfidenceBreakdown ConfidenceBreakdown `json:"confidence_breakdown"`

	TransparencyFlags []string      `json:"transparency_flags"`
	CompileInputs     CompileInputs `json:"compile_inputs"`

	EvidenceRefs   []string `json:"evidence_refs"`
	ObservationIDs []string `json:"observation_ids"`

	Consensus *ConsensusRecord `json:"consensus"`
	Security  SecurityBlock    `json:"security"`
}

// SemanticContent is the hash basis that stays stable across
// compile-time differences: the claim, its status, the inputs' identity
// — but not when or by which compiler build it was produced.
func (ts TruthState) SemanticContent() map[string]interface{} {
	flags := append([]string(nil), ts.TransparencyFlags...)
	sort.Strings(flags)
	refs := append([]string(nil), ts.EvidenceRefs...)
	sort.Strings(refs)
	ids := append([]string(nil), ts.ObservationIDs...)
	sort.Strings(ids)

	var basis interface{}
	if ts.VerificationBasis != "" {
		basis = string(ts.VerificationBasis)
	}

	return map[string]interface{}{
		"truthkey":            ts.TruthKey,
		"claim_type":          strings.ToLower(ts.ClaimType),
		"claim_type_hash":     strings.ToLower(ts.ClaimTypeHash),
		"claim":               canonical.Dict(ts.Claim),
		"status":              string(ts.Status),
		"verification_basis":  basis,
		"ai_confidence":       canonical.Round6(ts.AIConfidence),
		"confidence":          canonical.Round6(ts.Confidence),
		"transparency_flags":  toAnySlice(flags),
		"evidence_refs":       toAnySlice(refs),
		"observation_ids":     toAnySlice(ids),
		"trust_snapshot_hash": strings.ToLower(ts.CompileInputs.TrustSnapshotHash),
		"policy_version":      ts.CompileInputs.PolicyVersion,
	}
}

// FullEnvelope adds the compile-time identity on top of the semantic
// content; it is the state-hash basis.
func (ts TruthState) FullEnvelope() map[string]interface{} {
	envelope := ts.SemanticContent()
	envelope["compile_time"] = canonical.Datetime(ts.CompileInputs.CompileTime.Time)
	envelope["compiler_version"] = ts.CompileInputs.CompilerVersion
	return envelope
}

// ComputeSemanticHash hashes the semantic content.
func (ts TruthState) ComputeSemanticHash() (string, error) {
	return canonical.Hash(ts.SemanticContent())
}

// ComputeStateHash hashes the full envelope.
func (ts TruthState) ComputeStateHash() (string, error) {
	return canonical.Hash(ts.FullEnvelope())
}

// Validate enforces the status-machine invariant: a terminal status must
// carry a recorded verification basis.
func (ts TruthState) Validate() error {
	if ts.Status.Terminal() && ts.VerificationBasis == "" {
		return compileErr(ErrInvalidInput,
			"terminal status %s requires a verification_basis", ts.Status)
	}
	return nil
}

// VerifyHashes recomputes both hashes and compares with the stored
// security block.
func (ts TruthState) VerifyHashes() (bool, error) {
	semantic, err := ts.ComputeSemanticHash()
	if err != nil {
		return false, err
	}
	state, err := ts.ComputeStateHash()
	if err != nil {
		return false, err
	}
	return ts.Security.SemanticHash == semantic && ts.Security.StateHash == state, nil
}

func toAnySlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
