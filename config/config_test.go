package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 1024, cfg.MaxCallDepth)
	require.Positive(t, cfg.CodeBlockCacheSize)
	require.Positive(t, cfg.InitialRegisterCapacity)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vm.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_call_depth = 64\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.MaxCallDepth)
	// Fields the file omits keep their defaults.
	require.Equal(t, DefaultConfig().CodeBlockCacheSize, cfg.CodeBlockCacheSize)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
