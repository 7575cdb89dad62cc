package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1, "-1"},
		{1.5, "1.5"},
		{2.0, "2"},
		{0.1, "0.1"},
		{0.1234567, "0.123457"},  // half-up at the seventh digit
		{0.1234564, "0.123456"},  // rounds down
		{0.1234565, "0.123457"},  // tie rounds away from zero
		{-0.1234565, "-0.123457"},
		{0.0000004, "0"},
		{0.0000005, "0.000001"},
		{1.9999995, "2"},
		{999999.999999, "999999.999999"},
		{1e-7, "0"},
		{1500, "1500"},
	}
	for _, c := range cases {
		got, err := CanonicalFloat(c.in, DefaultPrecision)
		require.NoError(t, err, "value %v", c.in)
		assert.Equal(t, c.want, got, "value %v", c.in)
	}
}

func TestCanonicalFloat_NegativeZero(t *testing.T) {
	z := 0.0
	got, err := CanonicalFloat(-z, DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, "0", got)
}

func TestCanonicalFloatString_ExponentForms(t *testing.T) {
	cases := map[string]string{
		"1e3":       "1000",
		"1.5e-3":    "0.0015",
		"2.5E2":     "250",
		"-1.25e-6":  "-0.000001",
		"4.9e-7":    "0",
	}
	for in, want := range cases {
		got, err := CanonicalFloatString(in, DefaultPrecision)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestRoundN(t *testing.T) {
	assert.Equal(t, 1.5, RoundN(1.499999999, 2))
	assert.Equal(t, 150.0, Round2(149.999999999))
	assert.Equal(t, 0.123457, Round6(0.12345678))
}
