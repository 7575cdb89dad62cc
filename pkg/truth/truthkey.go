// Package truth implements the typed protocol primitives and the pure
// truth compiler: TruthKey, Observation, EvidenceRef, ClaimType,
// TruthState, claim derivation, confidence, consensus, and
// CompileTruthState itself.
//
// Everything here is pure: no clocks, no I/O, no network. Timestamps
// arrive as explicit arguments; trust arrives as a frozen flow.Snapshot.
package truth

import (
	"strings"
	"time"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/spatial"
)

// Domains.
const (
	DomainEarth = "earth"
	DomainOcean = "ocean"
	DomainSpace = "space"
	DomainMeta  = "meta"
)

// domainSystems pins the valid (domain, spatial_system) pairings.
var domainSystems = map[string]string{
	DomainEarth: spatial.SystemH3,
	DomainOcean: spatial.SystemH3,
	DomainSpace: spatial.SystemHealpix,
	DomainMeta:  spatial.SystemMeta,
}

// TruthKey is the canonical join key
// {domain}:{topic}:{spatial_system}:{spatial_id}:{z_index}:{time_bucket}.
// All segments are lowercase in the charset [a-z0-9._-]; time_bucket is
// the minute-precision UTC bucket form.
type TruthKey struct {
	Domain        string
	Topic         string
	SpatialSystem string
	SpatialID     string
	ZIndex        string
	TimeBucket    string
}

// String renders the canonical six-segment form.
func (k TruthKey) String() string {
	return strings.Join([]string{
		k.Domain, k.Topic, k.SpatialSystem, k.SpatialID, k.ZIndex, k.TimeBucket,
	}, ":")
}

// Hash computes the canonical hash of the key string.
func (k TruthKey) Hash() string {
	return canonical.SHA256HexString(k.String())
}

// Validate checks segment charset and the domain/system pairing.
func (k TruthKey) Validate() error {
	for _, seg := range []struct{ name, value string }{
		{"domain", k.Domain},
		{"topic", k.Topic},
		{"spatial_system", k.SpatialSystem},
		{"spatial_id", k.SpatialID},
		{"z_index", k.ZIndex},
	} {
		if !canonical.ValidateID(seg.value) {
			return compileErr(ErrParse, "invalid TruthKey segment %s: %q (must match [a-z0-9._-]+)", seg.name, seg.value)
		}
	}
	if err := ValidateDomainSystem(k.Domain, k.SpatialSystem); err != nil {
		return err
	}
	if _, err := canonical.ParseDatetime(k.TimeBucket); err != nil {
		return compileErr(ErrParse, "invalid TruthKey time_bucket: %q", k.TimeBucket)
	}
	return nil
}

// ValidateDomainSystem enforces the pairing table:
// {earth,ocean}→h3, space→healpix, meta→meta.
func ValidateDomainSystem(domain, system string) error {
	want, known := domainSystems[domain]
	if !known {
		return compileErr(ErrInvalidInput, "unknown domain: %q", domain)
	}
	if system != want {
		return compileErr(ErrInvalidInput,
			"domain %q requires spatial_system %q, got %q", domain, want, system)
	}
	return nil
}

// ParseTruthKey parses the canonical string form. The split preserves
// colons inside the timestamp by capping at six segments.
func ParseTruthKey(key string) (TruthKey, error) {
	parts := strings.SplitN(key, ":", 6)
	if len(parts) != 6 {
		return TruthKey{}, compileErr(ErrParse, "invalid TruthKey format: %q (expected 6 segments)", key)
	}
	k := TruthKey{
		Domain:        strings.ToLower(parts[0]),
		Topic:         strings.ToLower(parts[1]),
		SpatialSystem: strings.ToLower(parts[2]),
		SpatialID:     strings.ToLower(parts[3]),
		ZIndex:        strings.ToLower(parts[4]),
		TimeBucket:    parts[5],
	}
	if err := k.Validate(); err != nil {
		return TruthKey{}, err
	}
	return k, nil
}

// KeyParams carries everything BuildTruthKey needs. The TruthKey derives
// from event time, never receipt time.
type KeyParams struct {
	ClaimTypeID        string
	EventTime          time.Time
	Lat, Lon           float64 // h3 systems
	RA, Dec            float64 // healpix systems
	TimeBucketDuration string
	SpatialSystem      string
	SpatialResolution  int
	ZIndex             string
	IDStrategy         string // meta only
	ArtifactID         string
	ContentHash        string
	HasLocation        bool
}

// BuildTruthKey is the only TruthKey constructor outside direct parsing.
// It derives domain and topic from the claim type id, buckets the event
// time, and selects the spatial indexer by spatial system.
func BuildTruthKey(p KeyParams) (TruthKey, error) {
	idParts := strings.Split(p.ClaimTypeID, ".")
	if len(idParts) < 2 {
		return TruthKey{}, compileErr(ErrInvalidInput, "invalid claim_type_id format: %q", p.ClaimTypeID)
	}
	domain := strings.ToLower(idParts[0])
	topic := strings.ToLower(idParts[1])

	if p.EventTime.IsZero() {
		return TruthKey{}, compileErr(ErrInvalidInput, "event_time is required")
	}

	duration := p.TimeBucketDuration
	if duration == "" {
		duration = canonical.BucketHour1
	}
	bucketed, err := canonical.Bucket(p.EventTime, duration)
	if err != nil {
		return TruthKey{}, compileErr(ErrInvalidInput, "invalid time_bucket duration: %v", err)
	}

	system := strings.ToLower(p.SpatialSystem)
	if system == "" {
		system = domainSystems[domain]
	}
	if err := ValidateDomainSystem(domain, system); err != nil {
		return TruthKey{}, err
	}

	resolution := p.SpatialResolution
	if resolution == 0 {
		resolution = 8
	}

	var spatialID string
	switch system {
	case spatial.SystemH3:
		if !p.HasLocation {
			return TruthKey{}, compileErr(ErrInvalidInput, "location required for h3 spatial system")
		}
		spatialID, err = spatial.H3Cell(p.Lat, p.Lon, resolution)
	case spatial.SystemHealpix:
		if !p.HasLocation {
			return TruthKey{}, compileErr(ErrInvalidInput, "location required for healpix spatial system")
		}
		spatialID, err = spatial.HealpixPixel(p.RA, p.Dec, resolution)
	case spatial.SystemMeta:
		strategy := p.IDStrategy
		if strategy == "" {
			strategy = spatial.StrategyContentHash
		}
		spatialID, err = spatial.MetaID(strategy, p.ContentHash, p.ArtifactID)
	}
	if err != nil {
		return TruthKey{}, compileErr(ErrInvalidInput, "spatial id derivation failed: %v", err)
	}

	zIndex := strings.ToLower(p.ZIndex)
	if zIndex == "" {
		zIndex = "surface"
	}

	k := TruthKey{
		Domain:        domain,
		Topic:         topic,
		SpatialSystem: system,
		SpatialID:     spatialID,
		ZIndex:        zIndex,
		TimeBucket:    canonical.FormatBucket(bucketed),
	}
	if err := k.Validate(); err != nil {
		return TruthKey{}, err
	}
	return k, nil
}
