package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reldb.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
pool_size = 64
replacer_policy = "clock"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.PoolSize)
	require.Equal(t, "clock", cfg.ReplacerPolicy)
	require.Equal(t, Default().NumInstances, cfg.NumInstances)
}

func TestLoadRejectsUnknownVariable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reldb.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`not_a_real_field = 1`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
