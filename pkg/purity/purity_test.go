package purity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moduleRoot walks up from the working directory to the go.mod.
func moduleRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}

// The compile path must stay pure. This test is the enforcement point:
// any clock, filesystem, or network dependency in a core package fails
// the build here.
func TestCorePackagesArePure(t *testing.T) {
	assert.NoError(t, Verify(moduleRoot(t)))
}

func TestCheck_FlagsForbiddenConstructs(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "pkg", "canonical")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	dirty := `package canonical

import (
	"os"
	"time"
)

func Leak() (string, time.Time) {
	data, _ := os.ReadFile("/etc/hostname")
	return string(data), time.Now()
}
`
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "dirty.go"), []byte(dirty), 0o644))
	for _, pkg := range CorePackages[1:] {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, pkg), 0o755))
	}

	violations, err := Check(dir)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0].What, "forbidden import os")
	assert.Contains(t, violations[1].What, "forbidden call time.Now")
}

func TestCheck_IgnoresTestFiles(t *testing.T) {
	dir := t.TempDir()
	for _, pkg := range CorePackages {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, pkg), 0o755))
	}
	testFile := `package canonical

import "os"

func helper() { _ = os.Getenv("HOME") }
`
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "pkg", "canonical", "helper_test.go"), []byte(testFile), 0o644))

	violations, err := Check(dir)
	require.NoError(t, err)
	assert.Empty(t, violations)
}
