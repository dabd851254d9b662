package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/muster-live/muster/pkg/rooms/constants"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Port         int           `mapstructure:"port"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
	RoomTTL      time.Duration `mapstructure:"room_ttl"`
	CodeLength   int           `mapstructure:"code_length"`
	Store        string        `mapstructure:"store"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	PostgresDSN  string        `mapstructure:"postgres_dsn"`
	WSReadLimit  int64         `mapstructure:"ws_read_limit"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	LogLevel     string        `mapstructure:"log_level"`
}

// Load reads configuration from the given file (optional), environment
// variables prefixed with MUSTER_, and defaults. The room TTL is
// floored at the minimum the expiry scheduler supports.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("room_ttl", constants.DefaultTTL)
	v.SetDefault("code_length", 6)
	v.SetDefault("store", StoreMemory)
	v.SetDefault("sqlite_path", "muster.db")
	v.SetDefault("ws_read_limit", 32768)
	v.SetDefault("reap_interval", time.Minute)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("MUSTER")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RoomTTL < constants.MinTTL {
		cfg.RoomTTL = constants.MinTTL
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}

	switch cfg.Store {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store)
	}

	return cfg, nil
}
