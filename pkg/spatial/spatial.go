// Package spatial derives TruthKey spatial identifiers. Earth and ocean
// domains index into H3 cells, the space domain into HEALPix ring-order
// pixels, and the meta domain into identifier-derived ids.
package spatial

import (
	"fmt"
	"strings"

	h3 "github.com/uber/h3-go/v4"
)

// Systems recognized in TruthKey spatial segments.
const (
	SystemH3      = "h3"
	SystemHealpix = "healpix"
	SystemMeta    = "meta"
)

// Meta id strategies.
const (
	StrategyContentHash = "content_hash"
	StrategyProvidedID  = "provided_id"
	StrategyHybrid      = "hybrid"
)

// metaIDLen truncates content hashes for readability in keys.
const metaIDLen = 32

// H3Cell returns the H3 cell index for a coordinate at the given
// resolution, as the canonical lowercase cell string.
func H3Cell(lat, lon float64, resolution int) (string, error) {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, resolution)
	if err != nil {
		return "", fmt.Errorf("h3 index at resolution %d: %w", resolution, err)
	}
	return strings.ToLower(cell.String()), nil
}

// HealpixPixel returns the ring-order HEALPix pixel containing the given
// equatorial coordinate (degrees), with nside = 2^resolution.
func HealpixPixel(ra, dec float64, resolution int) (string, error) {
	if resolution < 0 || resolution > 29 {
		return "", fmt.Errorf("healpix resolution out of range: %d", resolution)
	}
	nside := int64(1) << uint(resolution)
	pix, err := ang2pixRing(nside, ra, dec)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", pix), nil
}

// MetaID derives a spatial id for non-spatial claims.
//
// Strategies:
//   - content_hash: lowercase first 32 hex chars of contentHash.
//   - provided_id:  lowercase artifactID.
//   - hybrid:       contentHash if present, else artifactID.
func MetaID(strategy, contentHash, artifactID string) (string, error) {
	switch strings.ToLower(strategy) {
	case StrategyContentHash:
		if contentHash == "" {
			return "", fmt.Errorf("content_hash required for content_hash id_strategy")
		}
		return truncateID(contentHash), nil
	case StrategyProvidedID:
		if artifactID == "" {
			return "", fmt.Errorf("artifact_id required for provided_id id_strategy")
		}
		return strings.ToLower(artifactID), nil
	case StrategyHybrid:
		if contentHash != "" {
			return truncateID(contentHash), nil
		}
		if artifactID != "" {
			return strings.ToLower(artifactID), nil
		}
		return "", fmt.Errorf("either content_hash or artifact_id required for hybrid id_strategy")
	default:
		return "", fmt.Errorf("unknown id_strategy: %q", strategy)
	}
}

func truncateID(hash string) string {
	hash = strings.ToLower(hash)
	if len(hash) > metaIDLen {
		return hash[:metaIDLen]
	}
	return hash
}
