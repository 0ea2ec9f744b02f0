// backend/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gewnthar/density/backend/models"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type FeedConfig struct {
	URL             string `yaml:"url"`
	PollIntervalStr string `yaml:"poll_interval"`
	TimeoutStr      string `yaml:"timeout"`
	PollInterval    time.Duration `yaml:"-"` // parsed from PollIntervalStr
	Timeout         time.Duration `yaml:"-"` // parsed from TimeoutStr
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Database DatabaseConfig   `yaml:"database"`
	Feed     FeedConfig       `yaml:"feed"`
	Logging  LoggingConfig    `yaml:"logging"`
	Parents  models.ParentMap `yaml:"parents"`
}

// Load reads the YAML config file, then overlays environment variables (a
// .env file is honored if present) and, when CONSUL_HTTP_ADDR is set, the
// density/* keys from the Consul KV store. The parent mapping must be
// complete relative to every parent_id the collector may supply; an empty
// mapping is a startup error, not something to discover at insert time.
func Load(configPath string) (*Config, error) {
	// Best effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	if configPath == "" {
		potentialPaths := []string{
			"config.yaml",
			"config/config.yaml",
		}
		for _, p := range potentialPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("config.yaml not found in standard locations")
		}
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if os.Getenv("CONSUL_HTTP_ADDR") != "" {
		if err := applyConsulOverrides(&cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from consul: %w", err)
		}
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}

	cfg.Feed.PollInterval = time.Minute
	if cfg.Feed.PollIntervalStr != "" {
		cfg.Feed.PollInterval, err = time.ParseDuration(cfg.Feed.PollIntervalStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed poll_interval: %w", err)
		}
	}
	cfg.Feed.Timeout = 30 * time.Second
	if cfg.Feed.TimeoutStr != "" {
		cfg.Feed.Timeout, err = time.ParseDuration(cfg.Feed.TimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed timeout: %w", err)
		}
	}

	if len(cfg.Parents) == 0 {
		return nil, fmt.Errorf("no parent buildings configured; the parents mapping is required")
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envOverride(&cfg.Server.Port, "DENSITY_SERVER_PORT")
	envOverride(&cfg.Database.Host, "DENSITY_DB_HOST")
	envOverride(&cfg.Database.Port, "DENSITY_DB_PORT")
	envOverride(&cfg.Database.User, "DENSITY_DB_USER")
	envOverride(&cfg.Database.Password, "DENSITY_DB_PASSWORD")
	envOverride(&cfg.Database.DBName, "DENSITY_DB_NAME")
	envOverride(&cfg.Feed.URL, "DENSITY_FEED_URL")
	envOverride(&cfg.Logging.Level, "DENSITY_LOG_LEVEL")
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// consulKeys maps KV keys under the density/ root to config fields. The key
// set mirrors the deployment's KV layout; keys absent from the store leave
// the file/env value in place.
func applyConsulOverrides(cfg *Config) error {
	client, err := consulapi.NewClient(consulapi.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create consul client: %w", err)
	}
	kv := client.KV()

	consulKeys := []struct {
		key    string
		target *string
	}{
		{"server_port", &cfg.Server.Port},
		{"db_host", &cfg.Database.Host},
		{"db_port", &cfg.Database.Port},
		{"db_user", &cfg.Database.User},
		{"db_password", &cfg.Database.Password},
		{"db_name", &cfg.Database.DBName},
		{"feed_url", &cfg.Feed.URL},
	}

	for _, ck := range consulKeys {
		pair, _, err := kv.Get("density/"+ck.key, nil)
		if err != nil {
			return fmt.Errorf("failed to get density/%s from consul: %w", ck.key, err)
		}
		if pair != nil && len(pair.Value) > 0 {
			*ck.target = string(pair.Value)
		}
	}
	return nil
}
