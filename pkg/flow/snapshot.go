package flow

import (
	"sort"
	"time"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// Snapshot flags.
const (
	FlagSelfDealing   = "SELF_DEALING"
	FlagHighAssurance = "HIGH_ASSURANCE"
)

// AgentTrust is one agent's frozen trust state inside a snapshot.
type AgentTrust struct {
	AgentID        string   `json:"agent_id"`
	Standing       float64  `json:"standing"`
	EffectiveTrust float64  `json:"effective_trust"`
	DerivedClass   string   `json:"derived_class"`
	Flags          []string `json:"flags"`
}

// Canonical returns the hashable representation.
func (a AgentTrust) Canonical() map[string]interface{} {
	flags := append([]string(nil), a.Flags...)
	sort.Strings(flags)
	flagsAny := make([]interface{}, len(flags))
	for i, f := range flags {
		flagsAny[i] = f
	}
	return map[string]interface{}{
		"agent_id":        a.AgentID,
		"standing":        canonical.Round6(a.Standing),
		"effective_trust": canonical.Round6(a.EffectiveTrust),
		"derived_class":   a.DerivedClass,
		"flags":           flagsAny,
	}
}

// Snapshot is the frozen trust view handed to the truth compiler. Its
// hash pins the compiler's trust input: the compiler verifies it before
// any observation is weighed.
type Snapshot struct {
	SnapshotID   string                `json:"snapshot_id"`
	SnapshotTime canonical.Time        `json:"snapshot_time"`
	AgentTrusts  map[string]AgentTrust `json:"agent_trusts"`
	SnapshotHash string                `json:"snapshot_hash"`
}

// CanonicalTrusts returns agent trusts keyed and ordered canonically.
func (s Snapshot) CanonicalTrusts() map[string]interface{} {
	out := make(map[string]interface{}, len(s.AgentTrusts))
	for id, trust := range s.AgentTrusts {
		out[id] = trust.Canonical()
	}
	return out
}

// ComputeHash computes the snapshot hash over the sorted agent trusts.
func (s Snapshot) ComputeHash() (string, error) {
	return canonical.Hash(s.CanonicalTrusts())
}

// VerifyHash reports whether the stored hash matches the recomputed one.
func (s Snapshot) VerifyHash() bool {
	computed, err := s.ComputeHash()
	if err != nil {
		return false
	}
	return computed == s.SnapshotHash
}

// EffectiveTrustFor returns an agent's effective trust, zero if absent.
func (s Snapshot) EffectiveTrustFor(agentID string) float64 {
	if t, ok := s.AgentTrusts[agentID]; ok {
		return t.EffectiveTrust
	}
	return 0
}

// NewSnapshot assembles a snapshot and stamps its hash.
func NewSnapshot(snapshotID string, snapshotTime time.Time, trusts map[string]AgentTrust) (Snapshot, error) {
	s := Snapshot{
		SnapshotID:   snapshotID,
		SnapshotTime: canonical.NewTime(snapshotTime),
		AgentTrusts:  trusts,
	}
	hash, err := s.ComputeHash()
	if err != nil {
		return Snapshot{}, err
	}
	s.SnapshotHash = hash
	return s, nil
}

// BuildSnapshot computes effective trust for every standing under the
// given context and freezes the result. snapshotID is caller-supplied so
// the build stays pure; hosts typically pass a UUID.
func (c *Computer) BuildSnapshot(
	snapshotID string,
	standings map[string]float64,
	ctx Context,
	signals []Signal,
) (Snapshot, error) {
	trusts := make(map[string]AgentTrust, len(standings))

	for agentID, standing := range standings {
		effective := c.EffectiveTrust(agentID, standing, ctx, signals)

		var flags []string
		if ctx.ProbeCreatorID != "" && ctx.ProbeCreatorID == agentID {
			flags = append(flags, FlagSelfDealing)
		}
		if standing >= c.policy.PhaseTransitions.DominantThreshold {
			flags = append(flags, FlagHighAssurance)
		}
		sort.Strings(flags)

		trusts[agentID] = AgentTrust{
			AgentID:        agentID,
			Standing:       standing,
			EffectiveTrust: effective,
			DerivedClass:   DeriveClass(standing),
			Flags:          flags,
		}
	}

	return NewSnapshot(snapshotID, ctx.SnapshotTime, trusts)
}
