// Package config provides YAML-based configuration loading for rcgplay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from a YAML file.
type Config struct {
	Playback  PlaybackConfig  `yaml:"playback"`
	Parser    ParserConfig    `yaml:"parser"`
	Transport TransportConfig `yaml:"transport"`
	Server    ServerConfig    `yaml:"server"`
}

// PlaybackConfig configures the playback engine.
type PlaybackConfig struct {
	StalenessThreshold float64 `yaml:"staleness_threshold"` // seconds
	AutoPlay           bool    `yaml:"autoplay"`
	Speed              float64 `yaml:"speed"`
	TickRate           float64 `yaml:"tick_rate"` // engine ticks per second
}

// ParserConfig configures the log parsers.
type ParserConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// TransportConfig configures how log text is fetched.
type TransportConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	ChunksPerSecond float64       `yaml:"chunks_per_second"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
}

// ServerConfig configures the viewer feed server.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	FrameRate      float64  `yaml:"frame_rate"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Playback.StalenessThreshold == 0 {
		c.Playback.StalenessThreshold = 0.5
	}
	if c.Playback.Speed == 0 {
		c.Playback.Speed = 1
	}
	if c.Playback.TickRate == 0 {
		c.Playback.TickRate = 60
	}
	if c.Parser.BatchSize == 0 {
		c.Parser.BatchSize = 100
	}
	if c.Transport.ChunkSize == 0 {
		c.Transport.ChunkSize = 64 * 1024
	}
	if c.Transport.HTTPTimeout == 0 {
		c.Transport.HTTPTimeout = 30 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.FrameRate == 0 {
		c.Server.FrameRate = 25
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
}

// Validate checks that all values are in range. It is exported so callers
// can re-check after applying flag overrides.
func (c *Config) Validate() error {
	var errs []string
	if c.Playback.StalenessThreshold < 0 {
		errs = append(errs, "playback.staleness_threshold must not be negative")
	}
	if c.Playback.Speed <= 0 || c.Playback.Speed > 16 {
		errs = append(errs, "playback.speed must be in (0, 16]")
	}
	if c.Playback.TickRate <= 0 {
		errs = append(errs, "playback.tick_rate must be positive")
	}
	if c.Parser.BatchSize < 1 {
		errs = append(errs, "parser.batch_size must be at least 1")
	}
	if c.Transport.ChunkSize < 1 {
		errs = append(errs, "transport.chunk_size must be at least 1")
	}
	if c.Transport.ChunksPerSecond < 0 {
		errs = append(errs, "transport.chunks_per_second must not be negative")
	}
	if c.Transport.HTTPTimeout < 0 {
		errs = append(errs, "transport.http_timeout must not be negative")
	}
	if c.Server.FrameRate <= 0 {
		errs = append(errs, "server.frame_rate must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
