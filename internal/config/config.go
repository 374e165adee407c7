// Package config holds the node's runtime configuration: a YAML file plus
// environment variable overrides, loaded via viper (AMBIENT STACK,
// SPEC_FULL.md §6), following coordinator/internal/config/{config,loader}.go
// in shape.
package config

import (
	"errors"
	"time"
)

// Config is a storage node's full runtime configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	SocketPool SocketPoolConfig `mapstructure:"socket_pool"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Membership MembershipConfig `mapstructure:"membership"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig covers the node's identity and listener ports.
type ServerConfig struct {
	NodeID     uint16 `mapstructure:"node_id"`
	Host       string `mapstructure:"host"`
	HTTPPort   int    `mapstructure:"http_port"`
	SocketPort int    `mapstructure:"socket_port"`
	AdminPort  int    `mapstructure:"admin_port"`
	DataDir    string `mapstructure:"data_dir"`
}

// SocketPoolConfig sizes the admin client's per-destination connection pool
// (internal/admin.PoolConfig).
type SocketPoolConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxCached       int           `mapstructure:"max_cached"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout_ms"`
	SocketTimeout   time.Duration `mapstructure:"socket_timeout_ms"`
}

// MetadataConfig selects and configures the metadata store's inner backend.
// Backend "memory" needs nothing further; backend "postgres" requires DSN.
type MetadataConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "postgres"
	DSN     string `mapstructure:"dsn"`
}

// RedisConfig configures the optional rebalance idempotency cache (C13). A
// blank Addr disables the cache; the choreographer falls back to always
// re-streaming.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MembershipConfig configures the gossip agent (C11).
type MembershipConfig struct {
	BindPort       int           `mapstructure:"bind_port"`
	SeedNodes      []string      `mapstructure:"seed_nodes"`
	GossipInterval time.Duration `mapstructure:"gossip_interval"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
}

// MetricsConfig configures the Prometheus HTTP endpoint (C10).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks required fields and fills in level/format defaults the
// same way the teacher's Validate does.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.SocketPort <= 0 || c.Server.SocketPort > 65535 {
		return errors.New("server.socket_port must be between 1 and 65535")
	}
	if c.Server.AdminPort <= 0 || c.Server.AdminPort > 65535 {
		return errors.New("server.admin_port must be between 1 and 65535")
	}
	if c.Server.DataDir == "" {
		return errors.New("server.data_dir is required")
	}
	if c.Metadata.Backend != "memory" && c.Metadata.Backend != "postgres" {
		return errors.New("metadata.backend must be one of: memory, postgres")
	}
	if c.Metadata.Backend == "postgres" && c.Metadata.DSN == "" {
		return errors.New("metadata.dsn is required when metadata.backend is postgres")
	}
	if c.SocketPool.MaxConnections <= 0 {
		return errors.New("socket_pool.max_connections must be positive")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns the baseline configuration a single-node
// development cluster can run with unmodified.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			NodeID:     0,
			Host:       "0.0.0.0",
			HTTPPort:   8080,
			SocketPort: 6666,
			AdminPort:  6667,
			DataDir:    "/var/lib/ring/data",
		},
		SocketPool: SocketPoolConfig{
			MaxConnections: 50,
			MaxCached:      10,
			ConnectTimeout: 3 * time.Second,
			SocketTimeout:  5 * time.Second,
		},
		Metadata: MetadataConfig{
			Backend: "memory",
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		Membership: MembershipConfig{
			BindPort:       7946,
			GossipInterval: 200 * time.Millisecond,
			ProbeTimeout:   500 * time.Millisecond,
			ProbeInterval:  time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
