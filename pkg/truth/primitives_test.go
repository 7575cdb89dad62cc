package truth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

func sampleObservation(reporterID string) Observation {
	return Observation{
		ObservationID: uuid.NewString(),
		ClaimType:     "earth.flood.v1",
		ReportedAt:    canonical.NewTime(time.Date(2026, 1, 7, 11, 58, 0, 0, time.UTC)),
		ReporterID:    reporterID,
		ReporterContext: ReporterContext{
			Standing:   "bronze",
			TrustScore: 0.6,
			SourceType: "human",
		},
		Geo:     GeoPoint{Lat: 37.7749, Lon: -122.4194},
		Payload: map[string]interface{}{"severity": "high", "water_level": "1.5"},
	}
}

func TestObservation_HashDeterministic(t *testing.T) {
	obs := sampleObservation("user:amira")
	h1, err := obs.Hash()
	require.NoError(t, err)
	h2, err := obs.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestObservation_HashCoversPayload(t *testing.T) {
	a := sampleObservation("user:amira")
	b := a
	b.Payload = map[string]interface{}{"severity": "low", "water_level": "0.2"}

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

// An observation whose reported_at has no offset never becomes a value.
func TestParseObservation_NaiveReportedAt(t *testing.T) {
	doc := `{
		"observation_id": "0b7af1f2-65c4-4f3a-9f35-1f2f2d6a1a10",
		"claim_type": "earth.flood.v1",
		"reported_at": "2026-01-07T11:58:00",
		"reporter_id": "user:amira",
		"reporter_context": {"standing": "bronze", "trust_score": 0.6, "source_type": "human"},
		"geo": {"lat": 37.7749, "lon": -122.4194},
		"payload": {"severity": "high"}
	}`
	_, err := ParseObservation([]byte(doc))
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInput, KindOf(err))
	ce := err.(*CompilationError)
	assert.Equal(t, canonical.CodeNaiveDatetime, ce.Details["code"])
}

func TestParseObservation_Valid(t *testing.T) {
	doc := `{
		"observation_id": "0b7af1f2-65c4-4f3a-9f35-1f2f2d6a1a10",
		"claim_type": "earth.flood.v1",
		"reported_at": "2026-01-07T11:58:00+07:00",
		"reporter_id": "user:amira",
		"reporter_context": {"standing": "bronze", "trust_score": 0.6, "source_type": "human"},
		"geo": {"lat": 37.7749, "lon": -122.4194},
		"payload": {"severity": "high"}
	}`
	obs, err := ParseObservation([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-07T04:58:00Z", canonical.Datetime(obs.ReportedAt.Time))
}

func TestEvidenceRef_IdentityIsHash(t *testing.T) {
	sha := strings.Repeat("ab", 32)

	a, err := NewEvidenceRef("https://Evidence.example.com/img//1.jpg?b=2&a=1#frag", sha)
	require.NoError(t, err)
	b, err := NewEvidenceRef("https://evidence.example.com/img/1.jpg?a=1&b=2", sha)
	require.NoError(t, err)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestEvidenceRef_RequiresHash(t *testing.T) {
	_, err := NewEvidenceRef("https://example.com/x", "")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInput, KindOf(err))

	_, err = NewEvidenceRef("https://example.com/x", "zz")
	assert.Error(t, err)
}

func TestEvidenceRefFromContent(t *testing.T) {
	content := []byte("flood photo bytes")
	ref, err := EvidenceRefFromContent(content, "gs://kaori-evidence/photos/1.jpg", "image/jpeg",
		time.Date(2026, 1, 7, 11, 57, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, canonical.SHA256Hex(content), ref.SHA256)
	assert.Equal(t, int64(len(content)), ref.BytesSize)
	assert.Equal(t, "image/jpeg", ref.MimeType)
}

func TestClaimType_HashPinsContract(t *testing.T) {
	base, err := NewClaimType(ClaimType{
		ID: "earth.flood.v1", Version: 1, Domain: "earth", Topic: "flood",
	})
	require.NoError(t, err)

	h1, err := base.Hash()
	require.NoError(t, err)

	changed := base
	changed.Autovalidation.TrueThreshold = 0.9
	h2, err := changed.Hash()
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)

	same, err := NewClaimType(ClaimType{
		ID: "earth.flood.v1", Version: 1, Domain: "earth", Topic: "flood",
	})
	require.NoError(t, err)
	h3, err := same.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h3)
}

func TestClaimType_Validation(t *testing.T) {
	_, err := NewClaimType(ClaimType{ID: "flood", Version: 1, Domain: "earth", Topic: "flood"})
	assert.Error(t, err) // id shape

	_, err = NewClaimType(ClaimType{ID: "earth.flood.v1", Version: 0, Domain: "earth", Topic: "flood"})
	assert.Error(t, err) // version

	_, err = NewClaimType(ClaimType{
		ID: "earth.flood.v1", Version: 1, Domain: "earth", Topic: "flood",
		RiskProfile: "reckless",
	})
	assert.Error(t, err) // risk profile

	ct, err := NewClaimType(ClaimType{ID: "earth.flood.v1", Version: 1, Domain: "earth", Topic: "flood"})
	require.NoError(t, err)
	assert.Equal(t, "earth.flood.v1.policy.1", ct.PolicyVersion())
}
