package truth

import (
	"encoding/json"
	"strings"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// ReporterContext describes the reporter at submission time. Standing
// here is the display class; the authoritative weight comes from the
// trust snapshot at compile time.
type ReporterContext struct {
	Standing   string  `json:"standing"`
	TrustScore float64 `json:"trust_score"`
	SourceType string  `json:"source_type"`
}

// Canonical returns the hashable representation.
func (rc ReporterContext) Canonical() map[string]interface{} {
	return map[string]interface{}{
		"standing":    strings.ToLower(rc.Standing),
		"trust_score": rc.TrustScore,
		"source_type": strings.ToLower(rc.SourceType),
	}
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Observation is a single reporter-level assertion. Observations are
// immutable once created; reported_at must carry an explicit offset —
// parsing a naive timestamp fails before an Observation exists.
type Observation struct {
	ObservationID   string                 `json:"observation_id"`
	ProbeID         string                 `json:"probe_id,omitempty"`
	ClaimType       string                 `json:"claim_type"`
	ReportedAt      canonical.Time         `json:"reported_at"`
	ReporterID      string                 `json:"reporter_id"`
	ReporterContext ReporterContext        `json:"reporter_context"`
	Geo             GeoPoint               `json:"geo"`
	Payload         map[string]interface{} `json:"payload"`
	EvidenceRefs    []EvidenceRef          `json:"evidence_refs,omitempty"`

	// Domain-specific optionals.
	DepthMeters    *float64 `json:"depth,omitempty"`
	RightAscension *float64 `json:"ra,omitempty"`
	Declination    *float64 `json:"dec,omitempty"`
}

// ParseObservation decodes an observation from JSON, rejecting naive
// timestamps with a typed InvalidInput error.
func ParseObservation(data []byte) (Observation, error) {
	var obs Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		if canonical.IsCode(err, canonical.CodeNaiveDatetime) {
			return Observation{}, &CompilationError{
				Kind:    ErrInvalidInput,
				Message: "observation reported_at must be timezone-aware: " + err.Error(),
				Details: map[string]interface{}{"code": canonical.CodeNaiveDatetime},
			}
		}
		if ce, ok := err.(*CompilationError); ok {
			return Observation{}, ce
		}
		return Observation{}, compileErr(ErrParse, "invalid observation JSON: %v", err)
	}
	if obs.ReportedAt.IsZero() {
		return Observation{}, compileErr(ErrInvalidInput, "observation reported_at is required")
	}
	return obs, nil
}

// Canonical returns the hashable representation: normalized ids,
// canonical timestamp, rounded coordinates, canonicalized payload, and
// evidence by identity.
func (o Observation) Canonical() map[string]interface{} {
	refs := make([]interface{}, len(o.EvidenceRefs))
	for i, ref := range o.EvidenceRefs {
		refs[i] = ref.Canonical()
	}
	result := map[string]interface{}{
		"observation_id": o.ObservationID,
		"claim_type":     strings.ToLower(o.ClaimType),
		"reported_at":    canonical.Datetime(o.ReportedAt.Time),
		"reporter_id":    o.ReporterID,
		"reporter_context": o.ReporterContext.Canonical(),
		"geo": map[string]interface{}{
			"lat": canonical.Round6(o.Geo.Lat),
			"lon": canonical.Round6(o.Geo.Lon),
		},
		"payload":       canonical.Dict(o.Payload),
		"evidence_refs": refs,
	}
	if o.ProbeID != "" {
		result["probe_id"] = o.ProbeID
	}
	if o.DepthMeters != nil {
		result["depth"] = canonical.Round2(*o.DepthMeters)
	}
	if o.RightAscension != nil {
		result["ra"] = canonical.Round6(*o.RightAscension)
	}
	if o.Declination != nil {
		result["dec"] = canonical.Round6(*o.Declination)
	}
	return result
}

// Hash computes observation_hash = SHA256(canonical(observation)).
func (o Observation) Hash() (string, error) {
	return canonical.Hash(o.Canonical())
}
