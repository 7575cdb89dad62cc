package canonical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURI_Canonicalization(t *testing.T) {
	cases := map[string]string{
		"HTTPS://Example.COM/Path/":          "https://example.com/Path",
		"https://example.com//a//b/":         "https://example.com/a/b",
		"https://example.com/":               "https://example.com/",
		"https://example.com/p?b=2&a=1":      "https://example.com/p?a=1&b=2",
		"https://example.com/p?a=2&a=1":      "https://example.com/p?a=1&a=2",
		"https://example.com/p#section":      "https://example.com/p",
		"https://example.com/p?x=1#frag":     "https://example.com/p?x=1",
	}
	for in, want := range cases {
		got, err := URI(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestEvidenceURI_ObjectStores(t *testing.T) {
	// Bucket case preserved, object path normalized.
	cases := map[string]string{
		"gs://MyBucket/path//to/obj/": "gs://MyBucket/path/to/obj",
		"s3://Data-Lake/x":            "s3://Data-Lake/x",
		"gs://bucket":                 "gs://bucket",
		"  https://Example.com/E/ ":   "https://example.com/E",
	}
	for in, want := range cases {
		got, err := EvidenceURI(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestEvidenceHash(t *testing.T) {
	valid := "a3f5" + strings.Repeat("0", 60)

	got, err := EvidenceHash("0x" + valid)
	require.NoError(t, err)
	assert.Equal(t, valid, got)

	got, err = EvidenceHash("A3F5" + strings.Repeat("0", 60))
	require.NoError(t, err)
	assert.Equal(t, valid, got)

	for _, bad := range []string{"", "abc", strings.Repeat("g", 64), strings.Repeat("0", 63)} {
		_, err := EvidenceHash(bad)
		require.Error(t, err, bad)
		assert.True(t, IsCode(err, CodeInvalidHash), bad)
	}
}

