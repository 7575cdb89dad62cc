package truth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// EvidenceRef is a content-bound evidence pointer. The sha256 digest is
// what auditors verify content against; the URI is a fetch location.
// Canonical and Hash cover the normalized URI as well as the digest, so two
// refs with the same digest at different URIs hash differently.
type EvidenceRef struct {
	URI         string         `json:"uri"`
	SHA256      string         `json:"sha256"`
	MimeType    string         `json:"mime_type,omitempty"`
	BytesSize   int64          `json:"bytes,omitempty"`
	CaptureTime canonical.Time `json:"capture_time,omitempty"`
}

// NewEvidenceRef validates and normalizes a reference. The hash is
// mandatory; the URI is normalized for storage.
func NewEvidenceRef(uri, sha string) (EvidenceRef, error) {
	hash, err := canonical.EvidenceHash(sha)
	if err != nil {
		return EvidenceRef{}, compileErr(ErrInvalidInput, "evidence sha256: %v", err)
	}
	normalized, err := canonical.EvidenceURI(uri)
	if err != nil {
		return EvidenceRef{}, compileErr(ErrInvalidInput, "evidence uri: %v", err)
	}
	return EvidenceRef{URI: normalized, SHA256: hash}, nil
}

// EvidenceRefFromContent computes the digest from raw content bytes.
func EvidenceRefFromContent(content []byte, uri, mimeType string, captureTime time.Time) (EvidenceRef, error) {
	ref, err := NewEvidenceRef(uri, canonical.SHA256Hex(content))
	if err != nil {
		return EvidenceRef{}, err
	}
	ref.MimeType = mimeType
	ref.BytesSize = int64(len(content))
	if !captureTime.IsZero() {
		ref.CaptureTime = canonical.NewTime(captureTime)
	}
	return ref, nil
}

// Canonical returns the hashable representation: the digest, the
// normalized URI, and the mime type and capture time when set.
func (r EvidenceRef) Canonical() map[string]interface{} {
	uri, err := canonical.URI(r.URI)
	if err != nil {
		uri = r.URI
	}
	out := map[string]interface{}{
		"sha256": strings.ToLower(r.SHA256),
		"uri":    uri,
	}
	if r.MimeType != "" {
		out["mime_type"] = strings.ToLower(r.MimeType)
	}
	if !r.CaptureTime.IsZero() {
		out["capture_time"] = canonical.Datetime(r.CaptureTime.Time)
	}
	return out
}

// Hash computes the canonical hash of the reference.
func (r EvidenceRef) Hash() (string, error) {
	return canonical.Hash(r.Canonical())
}

// UnmarshalJSON enforces the sha256 requirement at the parse boundary.
func (r *EvidenceRef) UnmarshalJSON(data []byte) error {
	type alias EvidenceRef
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	hash, err := canonical.EvidenceHash(raw.SHA256)
	if err != nil {
		return compileErr(ErrInvalidInput, "evidence sha256: %v", err)
	}
	raw.SHA256 = hash
	uri, err := canonical.EvidenceURI(raw.URI)
	if err != nil {
		return compileErr(ErrInvalidInput, "evidence uri: %v", err)
	}
	raw.URI = uri
	*r = EvidenceRef(raw)
	return nil
}
