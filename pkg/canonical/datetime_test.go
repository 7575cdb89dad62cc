package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatetimeFormats(t *testing.T) {
	ts := time.Date(2026, 1, 7, 12, 30, 45, 123456000, time.UTC)

	assert.Equal(t, "2026-01-07T12:30:45Z", Datetime(ts))
	assert.Equal(t, "2026-01-07T12:30:45.123456Z", DatetimeMicro(ts))
	assert.Equal(t, "2026-01-07T12:30Z", DatetimeMinute(ts))
}

func TestDatetime_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	ts := time.Date(2026, 1, 7, 19, 0, 0, 0, loc)
	assert.Equal(t, "2026-01-07T12:00:00Z", Datetime(ts))
}

func TestParseDatetime_RejectsNaive(t *testing.T) {
	for _, s := range []string{
		"2026-01-07T12:00:00",
		"2026-01-07T12:00",
		"2026-01-07 12:00:00",
		"2026-01-07T12:00:00.5",
	} {
		_, err := ParseDatetime(s)
		require.Error(t, err, s)
		assert.True(t, IsCode(err, CodeNaiveDatetime), "input %q: got %v", s, err)
	}
}

func TestParseDatetime_AcceptedForms(t *testing.T) {
	cases := map[string]string{
		"2026-01-07T12:00:00Z":        "2026-01-07T12:00:00Z",
		"2026-01-07T12:00:00.123456Z": "2026-01-07T12:00:00Z",
		"2026-01-07T12:00Z":           "2026-01-07T12:00:00Z",
		"2026-01-07T19:00:00+07:00":   "2026-01-07T12:00:00Z",
	}
	for in, want := range cases {
		got, err := ParseDatetime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, Datetime(got), in)
	}
}

func TestTime_JSONRoundTrip(t *testing.T) {
	var parsed Time
	require.NoError(t, parsed.UnmarshalJSON([]byte(`"2026-01-07T12:00:00Z"`)))

	out, err := parsed.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-01-07T12:00:00Z"`, string(out))

	err = parsed.UnmarshalJSON([]byte(`"2026-01-07T12:00:00"`))
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeNaiveDatetime))
}
