package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.Equal(t, WriteModePortable, cfg.WriteMode)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().WriteMode, cfg.WriteMode)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := "log_level: debug\nwrite_mode: pseudofile\nregion_cache_size: 128\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, WriteModePseudoFile, cfg.WriteMode)
	require.Equal(t, 128, cfg.RegionCacheSize)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PROCTRACE_WRITE_MODE", "portable")
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("write_mode: pseudofile\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, WriteModePortable, cfg.WriteMode)
}
