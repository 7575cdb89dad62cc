package flow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StandingGainConfig controls the nonlinear gain law ΔS = a·log(1+q).
type StandingGainConfig struct {
	Coefficient float64 `yaml:"coefficient" json:"coefficient"`
}

// PenaltyConfig controls the asymmetric penalty ΔS = −b·λ·log(1+q).
// Amplifier is λ and must exceed 1: penalties bite sharper than rewards.
type PenaltyConfig struct {
	Coefficient float64 `yaml:"coefficient" json:"coefficient"`
	Amplifier   float64 `yaml:"amplifier" json:"amplifier"`
}

// SaturationConfig parameterizes the logistic curve
// E(S) = max / (1 + e^(−k·(S − S₀))).
type SaturationConfig struct {
	Steepness   float64 `yaml:"steepness" json:"steepness"`
	Midpoint    float64 `yaml:"midpoint" json:"midpoint"`
	MaxStanding float64 `yaml:"max_standing" json:"max_standing"`
}

// BoundsConfig clamps standing and seeds initial standing by role.
type BoundsConfig struct {
	Min           float64            `yaml:"min" json:"min"`
	Max           float64            `yaml:"max" json:"max"`
	InitialByRole map[string]float64 `yaml:"initial_by_role" json:"initial_by_role"`
}

// VouchConfig is the claimtype-collaborator vouch bonus.
type VouchConfig struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	MaxBonusFraction float64 `yaml:"max_bonus_fraction" json:"max_bonus_fraction"`
	PerVouchFraction float64 `yaml:"per_vouch_fraction" json:"per_vouch_fraction"`
	BaseWeight       float64 `yaml:"base_weight" json:"base_weight"`
	DecayRatePerDay  float64 `yaml:"decay_rate_per_day" json:"decay_rate_per_day"`
}

// SelfDealingConfig discounts observers reporting on their own probes.
type SelfDealingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	DiscountFactor float64 `yaml:"discount_factor" json:"discount_factor"`
}

// ProbeCreatorBonusConfig rewards observation under high-standing probes.
type ProbeCreatorBonusConfig struct {
	Enabled            bool    `yaml:"enabled" json:"enabled"`
	MinCreatorStanding float64 `yaml:"min_creator_standing" json:"min_creator_standing"`
	BonusFraction      float64 `yaml:"bonus_fraction" json:"bonus_fraction"`
}

// PhaseTransitionsConfig defines the dormant/active/dominant phases.
type PhaseTransitionsConfig struct {
	DormantThreshold        float64 `yaml:"dormant_threshold" json:"dormant_threshold"`
	DominantThreshold       float64 `yaml:"dominant_threshold" json:"dominant_threshold"`
	DormantWeightMultiplier float64 `yaml:"dormant_weight_multiplier" json:"dormant_weight_multiplier"`
	DominantCompression     float64 `yaml:"dominant_compression" json:"dominant_compression"`
}

// Policy is the versioned trust-dynamics configuration. The policy is
// itself an agent with standing; its AgentID names that agent.
type Policy struct {
	AgentID   string `yaml:"agent_id" json:"agent_id"`
	AgentType string `yaml:"agent_type" json:"agent_type"`
	Version   string `yaml:"version" json:"version"`

	StandingGain StandingGainConfig `yaml:"standing_gain" json:"standing_gain"`
	Penalty      PenaltyConfig      `yaml:"penalty" json:"penalty"`
	Saturation   SaturationConfig   `yaml:"saturation" json:"saturation"`
	Bounds       BoundsConfig       `yaml:"bounds" json:"bounds"`

	Vouch             VouchConfig             `yaml:"vouch" json:"vouch"`
	SelfDealing       SelfDealingConfig       `yaml:"self_dealing" json:"self_dealing"`
	ProbeCreatorBonus ProbeCreatorBonusConfig `yaml:"probe_creator_bonus" json:"probe_creator_bonus"`
	PhaseTransitions  PhaseTransitionsConfig  `yaml:"phase_transitions" json:"phase_transitions"`
}

// DefaultPolicy returns the reference policy parameterization.
func DefaultPolicy() Policy {
	return Policy{
		AgentID:   "policy:flow_v1.0.0",
		AgentType: "policy",
		Version:   "1.0.0",
		StandingGain: StandingGainConfig{
			Coefficient: 5.0,
		},
		Penalty: PenaltyConfig{
			Coefficient: 5.0,
			Amplifier:   2.0,
		},
		Saturation: SaturationConfig{
			Steepness:   0.01,
			Midpoint:    500.0,
			MaxStanding: 1000.0,
		},
		Bounds: BoundsConfig{
			Min: 0.0,
			Max: 1000.0,
			InitialByRole: map[string]float64{
				"observer":  200.0,
				"validator": 250.0,
				"expert":    350.0,
				"authority": 500.0,
				"policy":    500.0,
			},
		},
		Vouch: VouchConfig{
			Enabled:          true,
			MaxBonusFraction: 0.15,
			PerVouchFraction: 0.05,
			BaseWeight:       1.0,
			DecayRatePerDay:  0.01,
		},
		SelfDealing: SelfDealingConfig{
			Enabled:        true,
			DiscountFactor: 0.5,
		},
		ProbeCreatorBonus: ProbeCreatorBonusConfig{
			Enabled:            true,
			MinCreatorStanding: 500.0,
			BonusFraction:      0.05,
		},
		PhaseTransitions: PhaseTransitionsConfig{
			DormantThreshold:        300.0,
			DominantThreshold:       700.0,
			DormantWeightMultiplier: 0.1,
			DominantCompression:     0.3,
		},
	}
}

// PolicyFromYAML parses a policy document. Unset numeric blocks fall back
// to the defaults so partial documents stay usable.
func PolicyFromYAML(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("flow policy: %w", err)
	}
	if p.Penalty.Amplifier <= 1 {
		return Policy{}, fmt.Errorf("flow policy: penalty amplifier must exceed 1, got %v", p.Penalty.Amplifier)
	}
	return p, nil
}

// InitialStanding returns the bootstrap standing for a role.
func (p Policy) InitialStanding(role string) float64 {
	if s, ok := p.Bounds.InitialByRole[role]; ok {
		return s
	}
	return p.Bounds.InitialByRole["observer"]
}

// Clamp bounds a standing to [Bounds.Min, Bounds.Max].
func (p Policy) Clamp(standing float64) float64 {
	if standing < p.Bounds.Min {
		return p.Bounds.Min
	}
	if standing > p.Bounds.Max {
		return p.Bounds.Max
	}
	return standing
}
