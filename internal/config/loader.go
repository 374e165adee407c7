package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Load reads configPath (YAML) over DefaultConfig, applies environment
// overrides, then validates. The file is optional: a missing file falls
// back to defaults plus whatever environment variables are set.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Warning: could not read config file %s: %v. Using defaults and environment variables.\n", configPath, err)
	} else if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if nodeID := os.Getenv("RING_NODE_ID"); nodeID != "" {
		if v, err := strconv.ParseUint(nodeID, 10, 16); err == nil {
			cfg.Server.NodeID = uint16(v)
		}
	}
	if host := os.Getenv("RING_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("RING_SOCKET_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.SocketPort = p
		}
	}
	if port := os.Getenv("RING_ADMIN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.AdminPort = p
		}
	}
	if dataDir := os.Getenv("RING_DATA_DIR"); dataDir != "" {
		cfg.Server.DataDir = dataDir
	}

	if backend := os.Getenv("RING_METADATA_BACKEND"); backend != "" {
		cfg.Metadata.Backend = backend
	}
	if dsn := os.Getenv("RING_METADATA_DSN"); dsn != "" {
		cfg.Metadata.DSN = dsn
	}

	if addr := os.Getenv("RING_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("RING_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if seedNodes := os.Getenv("RING_SEED_NODES"); seedNodes != "" {
		cfg.Membership.SeedNodes = splitNonEmpty(seedNodes, ',')
	}

	if logLevel := os.Getenv("RING_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
