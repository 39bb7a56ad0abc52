package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	World       WorldConfig       `yaml:"world"`
	Tick        TickConfig        `yaml:"tick"`
	Lease       LeaseConfig       `yaml:"lease"`
	Observation ObservationConfig `yaml:"observation"`
	Actions     ActionsConfig     `yaml:"actions"`
	Server      ServerConfig      `yaml:"server"`
}

type WorldConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	ChunkSize int `yaml:"chunk_size"`
}

type TickConfig struct {
	DurationMS       int64 `yaml:"duration_ms"`
	IntentDeadlineMS int64 `yaml:"intent_deadline_ms"`
}

type LeaseConfig struct {
	DurationMS int64 `yaml:"duration_ms"`
}

type ObservationConfig struct {
	TileRadius int `yaml:"tile_radius"`
}

type ActionsConfig struct {
	RegenRate  int `yaml:"regen_rate"`
	MaxBerries int `yaml:"max_berries"`
}

type ServerConfig struct {
	RPCPort     int `yaml:"rpc_port"`
	ViewerPort  int `yaml:"viewer_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// GetWidth returns the world width, defaulting to 200.
func (w *WorldConfig) GetWidth() int { return intWithEnvFallback(w.Width, "TICKWORLD_WIDTH", 200) }

// GetHeight returns the world height, defaulting to 200.
func (w *WorldConfig) GetHeight() int { return intWithEnvFallback(w.Height, "TICKWORLD_HEIGHT", 200) }

// GetChunkSize returns the fixed chunk side, defaulting to 32.
func (w *WorldConfig) GetChunkSize() int { return intWithEnvFallback(w.ChunkSize, "TICKWORLD_CHUNK_SIZE", 32) }

func (t *TickConfig) GetDurationMS() int64 {
	return int64(intWithEnvFallback(int(t.DurationMS), "TICKWORLD_TICK_DURATION_MS", 250))
}

func (t *TickConfig) GetIntentDeadlineMS() int64 {
	return int64(intWithEnvFallback(int(t.IntentDeadlineMS), "TICKWORLD_INTENT_DEADLINE_MS", 200))
}

func (l *LeaseConfig) GetDurationMS() int64 {
	return int64(intWithEnvFallback(int(l.DurationMS), "TICKWORLD_LEASE_DURATION_MS", 30_000))
}

func (o *ObservationConfig) GetTileRadius() int {
	return intWithEnvFallback(o.TileRadius, "TICKWORLD_TILE_RADIUS", 5)
}

func (a *ActionsConfig) GetRegenRate() int {
	return intWithEnvFallback(a.RegenRate, "TICKWORLD_REGEN_RATE", 10)
}

func (a *ActionsConfig) GetMaxBerries() int {
	return intWithEnvFallback(a.MaxBerries, "TICKWORLD_MAX_BERRIES", 5)
}

// GetRPCPort returns the logical RPC listener port, supporting fallback.
func (s *ServerConfig) GetRPCPort() int {
	return intWithEnvFallback(s.RPCPort, "TICKWORLD_RPC_PORT", 50051)
}

// GetViewerPort returns the viewer websocket listener port.
func (s *ServerConfig) GetViewerPort() int {
	return intWithEnvFallback(s.ViewerPort, "TICKWORLD_VIEWER_PORT", 8765)
}

// GetMetricsPort returns the Prometheus /metrics listener port.
func (s *ServerConfig) GetMetricsPort() int {
	return intWithEnvFallback(s.MetricsPort, "TICKWORLD_METRICS_PORT", 9090)
}

// intWithEnvFallback resolves a setting with priority: config -> env -> default.
func intWithEnvFallback(configured int, envVar string, fallback int) int {
	if configured > 0 {
		return configured
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// Load reads a YAML config file. If path == "", it tries TICKWORLD_CONFIG,
// falling back to an all-defaults Config if neither is set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TICKWORLD_CONFIG")
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
