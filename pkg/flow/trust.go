package flow

import (
	"math"
	"time"
)

// Collaborator is a claim-type collaborator considered for vouch bonuses.
type Collaborator struct {
	AgentID  string
	Standing float64
}

// Context is the local context for effective-trust computation. Standing
// is global; trust is local to the compilation at hand.
type Context struct {
	ClaimTypeID             string
	ClaimTypeStanding       float64
	ClaimTypeCollaborators  []Collaborator
	ProbeID                 string
	ProbeCreatorID          string
	ProbeCreatorStanding    float64
	SnapshotTime            time.Time
}

// Computer derives effective trust from standing and context.
type Computer struct {
	policy Policy
}

// NewComputer creates a trust computer bound to a policy.
func NewComputer(policy Policy) *Computer {
	return &Computer{policy: policy}
}

// EffectiveTrust computes an agent's context-local weight:
//
//	saturation → vouch network bonus → probe-creator bonus →
//	self-dealing discount → phase transition → clamp.
//
// Vouch edge age decays relative to ctx.SnapshotTime, never wall-clock
// time, so the computation replays exactly.
func (c *Computer) EffectiveTrust(agentID string, standing float64, ctx Context, signals []Signal) float64 {
	base := c.saturate(standing)

	effective := base +
		c.networkBonus(agentID, base, ctx, signals) +
		c.probeCreatorBonus(agentID, base, ctx)
	effective *= c.selfDealingFactor(agentID, ctx)
	effective = c.phaseTransition(effective)

	if effective < 0 {
		return 0
	}
	if effective > c.policy.Saturation.MaxStanding {
		return c.policy.Saturation.MaxStanding
	}
	return effective
}

// saturate applies the logistic curve E(S) = max / (1 + e^(−k·(S − S₀))).
func (c *Computer) saturate(standing float64) float64 {
	sat := c.policy.Saturation
	return sat.MaxStanding / (1 + math.Exp(-sat.Steepness*(standing-sat.Midpoint)))
}

// networkBonus sums vouch contributions from claim-type collaborators,
// capped at MaxBonusFraction of the base effective value.
func (c *Computer) networkBonus(agentID string, base float64, ctx Context, signals []Signal) float64 {
	cfg := c.policy.Vouch
	if !cfg.Enabled {
		return 0
	}
	bonus := 0.0
	for _, collab := range ctx.ClaimTypeCollaborators {
		weight := c.vouchEdgeWeight(collab.AgentID, agentID, ctx.SnapshotTime, signals)
		if weight > 0 {
			bonus += weight * cfg.PerVouchFraction * base
		}
	}
	maxBonus := cfg.MaxBonusFraction * base
	if bonus > maxBonus {
		return maxBonus
	}
	return bonus
}

// vouchEdgeWeight finds the most recent endorsement from voucher to
// vouchee and decays its base weight by age in days at snapshot time.
func (c *Computer) vouchEdgeWeight(voucherID, voucheeID string, at time.Time, signals []Signal) float64 {
	cfg := c.policy.Vouch
	var latest *Signal
	for i := range signals {
		s := &signals[i]
		if s.SignalType != SignalEndorsement || s.AgentID != voucherID || s.ObjectID != voucheeID {
			continue
		}
		if s.Time.After(at) {
			continue
		}
		if latest == nil || s.Time.After(latest.Time) {
			latest = s
		}
	}
	if latest == nil {
		return 0
	}
	ageDays := at.Sub(latest.Time).Seconds() / 86400
	weight := cfg.BaseWeight * math.Exp(-cfg.DecayRatePerDay*ageDays)
	if weight < 0 {
		return 0
	}
	return weight
}

func (c *Computer) probeCreatorBonus(agentID string, base float64, ctx Context) float64 {
	cfg := c.policy.ProbeCreatorBonus
	if !cfg.Enabled {
		return 0
	}
	// Observer-is-creator is the self-dealing discount's concern.
	if ctx.ProbeCreatorID == agentID {
		return 0
	}
	if ctx.ProbeCreatorStanding < cfg.MinCreatorStanding {
		return 0
	}
	return cfg.BonusFraction * base
}

func (c *Computer) selfDealingFactor(agentID string, ctx Context) float64 {
	cfg := c.policy.SelfDealing
	if !cfg.Enabled {
		return 1
	}
	if ctx.ProbeCreatorID != "" && ctx.ProbeCreatorID == agentID {
		return cfg.DiscountFactor
	}
	return 1
}

// phaseTransition applies the three-phase response: dormant trust is
// scaled down hard, dominant trust has its excess compressed.
func (c *Computer) phaseTransition(effective float64) float64 {
	cfg := c.policy.PhaseTransitions
	switch {
	case effective < cfg.DormantThreshold:
		return effective * cfg.DormantWeightMultiplier
	case effective > cfg.DominantThreshold:
		excess := effective - cfg.DominantThreshold
		return cfg.DominantThreshold + excess*cfg.DominantCompression
	default:
		return effective
	}
}

// DeriveClass maps a standing to its display class. Standing stays
// continuous everywhere else; classes exist for presentation only.
func DeriveClass(standing float64) string {
	switch {
	case standing < 300:
		return "bronze"
	case standing < 500:
		return "silver"
	case standing < 700:
		return "expert"
	default:
		return "authority"
	}
}
