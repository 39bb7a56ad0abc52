package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	os.Unsetenv("TICKWORLD_CONFIG")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 200, cfg.World.GetWidth())
	require.Equal(t, int64(250), cfg.Tick.GetDurationMS())
}

func TestLoadParsesYAML(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("world:\n  width: 64\n  height: 64\n  chunk_size: 16\ntick:\n  duration_ms: 500\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	require.Equal(t, 64, cfg.World.GetWidth())
	require.Equal(t, 16, cfg.World.GetChunkSize())
	require.Equal(t, int64(500), cfg.Tick.GetDurationMS())
}

func TestEnvFallbackAppliesWhenConfigUnset(t *testing.T) {
	os.Setenv("TICKWORLD_REGEN_RATE", "7")
	defer os.Unsetenv("TICKWORLD_REGEN_RATE")

	var a ActionsConfig
	require.Equal(t, 7, a.GetRegenRate())
}
