package truth

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/spatial"
)

// Risk profiles route states into lanes: monitor allows AI
// autovalidation, critical always goes to human review.
const (
	RiskMonitor  = "monitor"
	RiskCritical = "critical"
)

// TruthKeyConfig controls TruthKey formation for a claim type.
type TruthKeyConfig struct {
	SpatialSystem string `json:"spatial_system" yaml:"spatial_system"`
	Resolution    int    `json:"resolution" yaml:"resolution"`
	ZIndex        string `json:"z_index" yaml:"z_index"`
	TimeBucket    string `json:"time_bucket" yaml:"time_bucket"`
	// IDStrategy applies only when SpatialSystem is meta.
	IDStrategy string `json:"id_strategy" yaml:"id_strategy"`
}

// ConsensusModel configures human-vote finalization.
type ConsensusModel struct {
	Type              string  `json:"type" yaml:"type"`
	FinalizeThreshold float64 `json:"finalize_threshold" yaml:"finalize_threshold"`
	RejectThreshold   float64 `json:"reject_threshold" yaml:"reject_threshold"`
	OverrideThreshold float64 `json:"override_threshold" yaml:"override_threshold"`
}

// AutovalidationConfig holds the AI decision thresholds.
type AutovalidationConfig struct {
	TrueThreshold  float64 `json:"ai_verified_true_threshold" yaml:"ai_verified_true_threshold"`
	FalseThreshold float64 `json:"ai_verified_false_threshold" yaml:"ai_verified_false_threshold"`
}

// TemporalDecayConfig bounds a truth state's validity window.
type TemporalDecayConfig struct {
	HalfLife    string `json:"half_life" yaml:"half_life"`
	MaxValidity string `json:"max_validity" yaml:"max_validity"`
}

// ConfidenceModel configures composite confidence: component weights,
// signed additive modifiers, and level thresholds.
type ConfidenceModel struct {
	Components map[string]float64 `json:"components" yaml:"components"`
	Modifiers  map[string]float64 `json:"modifiers" yaml:"modifiers"`
	Thresholds struct {
		High   float64 `json:"high" yaml:"high"`
		Medium float64 `json:"medium" yaml:"medium"`
	} `json:"thresholds" yaml:"thresholds"`
}

// ClaimType is a versioned contract. IDs follow {namespace}.{name}.v{n};
// the hash over the canonical contract pins the exact version a state
// was compiled under. ClaimTypes are loaded once and never mutated.
type ClaimType struct {
	ID          string `json:"id" yaml:"id"`
	Version     int    `json:"version" yaml:"version"`
	Domain      string `json:"domain" yaml:"domain"`
	Topic       string `json:"topic" yaml:"topic"`
	RiskProfile string `json:"risk_profile" yaml:"risk_profile"`

	TruthKey       TruthKeyConfig       `json:"truthkey" yaml:"truthkey"`
	Consensus      ConsensusModel       `json:"consensus_model" yaml:"consensus_model"`
	Autovalidation AutovalidationConfig `json:"autovalidation" yaml:"autovalidation"`
	TemporalDecay  TemporalDecayConfig  `json:"temporal_decay" yaml:"temporal_decay"`
	Confidence     ConfidenceModel      `json:"confidence_model" yaml:"confidence_model"`

	// OutputSchema validates the derived claim payload. The loader
	// resolves OutputSchemaRef into OutputSchema before delivery.
	OutputSchema    map[string]interface{} `json:"output_schema" yaml:"output_schema"`
	OutputSchemaRef string                 `json:"output_schema_ref,omitempty" yaml:"output_schema_ref,omitempty"`
}

// withDefaults fills unset blocks with the reference values.
func (c ClaimType) withDefaults() ClaimType {
	if c.TruthKey.SpatialSystem == "" {
		c.TruthKey.SpatialSystem = spatial.SystemH3
	}
	if c.TruthKey.Resolution == 0 {
		c.TruthKey.Resolution = 8
	}
	if c.TruthKey.ZIndex == "" {
		c.TruthKey.ZIndex = "surface"
	}
	if c.TruthKey.TimeBucket == "" {
		c.TruthKey.TimeBucket = canonical.BucketHour1
	}
	if c.TruthKey.IDStrategy == "" {
		c.TruthKey.IDStrategy = spatial.StrategyContentHash
	}
	if c.Consensus.Type == "" {
		c.Consensus.Type = "weighted_threshold"
	}
	if c.Consensus.FinalizeThreshold == 0 {
		c.Consensus.FinalizeThreshold = 15
	}
	if c.Consensus.RejectThreshold == 0 {
		c.Consensus.RejectThreshold = -10
	}
	if c.Consensus.OverrideThreshold == 0 {
		c.Consensus.OverrideThreshold = 500
	}
	if c.Autovalidation.TrueThreshold == 0 {
		c.Autovalidation.TrueThreshold = 0.82
	}
	if c.Autovalidation.FalseThreshold == 0 {
		c.Autovalidation.FalseThreshold = 0.20
	}
	if c.TemporalDecay.HalfLife == "" {
		c.TemporalDecay.HalfLife = "PT6H"
	}
	if c.TemporalDecay.MaxValidity == "" {
		c.TemporalDecay.MaxValidity = "P3D"
	}
	if c.RiskProfile == "" {
		c.RiskProfile = RiskMonitor
	}
	return c
}

// NewClaimType applies defaults and validates the contract shape.
func NewClaimType(c ClaimType) (ClaimType, error) {
	c = c.withDefaults()
	if c.ID == "" {
		return ClaimType{}, fmt.Errorf("claim type id is required")
	}
	parts := strings.Split(c.ID, ".")
	if len(parts) < 3 || !strings.HasPrefix(parts[len(parts)-1], "v") {
		return ClaimType{}, fmt.Errorf("claim type id %q must follow {namespace}.{name}.v{n}", c.ID)
	}
	if _, err := semver.NewVersion(fmt.Sprintf("%d.0.0", c.Version)); err != nil || c.Version < 1 {
		return ClaimType{}, fmt.Errorf("claim type %q has invalid version %d", c.ID, c.Version)
	}
	if c.RiskProfile != RiskMonitor && c.RiskProfile != RiskCritical {
		return ClaimType{}, fmt.Errorf("claim type %q has unknown risk_profile %q", c.ID, c.RiskProfile)
	}
	if err := ValidateDomainSystem(strings.ToLower(c.Domain), strings.ToLower(c.TruthKey.SpatialSystem)); err != nil {
		return ClaimType{}, fmt.Errorf("claim type %q: %w", c.ID, err)
	}
	return c, nil
}

// PolicyVersion derives the policy identifier recorded in audit blocks.
func (c ClaimType) PolicyVersion() string {
	return fmt.Sprintf("%s.policy.%d", strings.ToLower(c.ID), c.Version)
}

// Canonical returns the hashable contract form. The output schema is
// part of the contract: changing it changes the claim type hash.
func (c ClaimType) Canonical() map[string]interface{} {
	truthkey := map[string]interface{}{
		"spatial_system": strings.ToLower(c.TruthKey.SpatialSystem),
		"resolution":     c.TruthKey.Resolution,
		"z_index":        strings.ToLower(c.TruthKey.ZIndex),
		"time_bucket":    strings.ToUpper(c.TruthKey.TimeBucket),
	}
	if strings.ToLower(c.TruthKey.SpatialSystem) == spatial.SystemMeta {
		truthkey["id_strategy"] = strings.ToLower(c.TruthKey.IDStrategy)
	}
	out := map[string]interface{}{
		"id":           strings.ToLower(c.ID),
		"version":      c.Version,
		"domain":       strings.ToLower(c.Domain),
		"topic":        strings.ToLower(c.Topic),
		"risk_profile": strings.ToLower(c.RiskProfile),
		"truthkey":     truthkey,
		"consensus_model": map[string]interface{}{
			"type":               c.Consensus.Type,
			"finalize_threshold": c.Consensus.FinalizeThreshold,
			"reject_threshold":   c.Consensus.RejectThreshold,
			"override_threshold": c.Consensus.OverrideThreshold,
		},
		"autovalidation": map[string]interface{}{
			"ai_verified_true_threshold":  c.Autovalidation.TrueThreshold,
			"ai_verified_false_threshold": c.Autovalidation.FalseThreshold,
		},
		"temporal_decay": map[string]interface{}{
			"half_life":    strings.ToUpper(c.TemporalDecay.HalfLife),
			"max_validity": strings.ToUpper(c.TemporalDecay.MaxValidity),
		},
	}
	if c.OutputSchema != nil {
		out["output_schema"] = canonical.Dict(c.OutputSchema)
	}
	return out
}

// Hash identifies the exact contract version.
func (c ClaimType) Hash() (string, error) {
	return canonical.Hash(c.Canonical())
}
