// Package config loads server configuration from YAML and COUP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Game      GameConfig      `mapstructure:"game"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig configures the network listeners.
type ServerConfig struct {
	GRPC            GRPCConfig      `mapstructure:"grpc"`
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig configures the HTTP listener serving the lobby API and /ws.
type WebSocketConfig struct {
	Address         string   `mapstructure:"address"`
	ReadBufferSize  int      `mapstructure:"read_buffer_size"`
	WriteBufferSize int      `mapstructure:"write_buffer_size"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig configures rooms and the rules engine.
type GameConfig struct {
	PhaseTimeout     time.Duration `mapstructure:"phase_timeout"`
	MinPlayers       int           `mapstructure:"min_players"`
	MaxPlayers       int           `mapstructure:"max_players"`
	Seed             uint64        `mapstructure:"seed"`
	ReplayDir        string        `mapstructure:"replay_dir"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
}

// StorageConfig selects the room store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// TelemetryConfig configures OpenTelemetry tracing. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":17171")
	v.SetDefault("server.grpc.max_concurrent_streams", 1000)
	v.SetDefault("server.websocket.address", ":17172")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.phase_timeout", 60*time.Second)
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 6)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.replay_dir", "")
	v.SetDefault("game.subscriber_buffer", 16)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.dsn", "")

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "coup-server")
}

// Load reads configuration from path (optional) and the environment.
// A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Game.MinPlayers < 2 {
		return fmt.Errorf("game.min_players must be at least 2")
	}
	if c.Game.MaxPlayers > 6 || c.Game.MaxPlayers < c.Game.MinPlayers {
		return fmt.Errorf("game.max_players must be between game.min_players and 6")
	}
	if c.Game.PhaseTimeout < 0 {
		return fmt.Errorf("game.phase_timeout must not be negative")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}
