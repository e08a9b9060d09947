package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// LEELAWATCHER_VIEWER_NOSGF=true.
const EnvPrefix = "LEELAWATCHER"

type Config struct {
	// Harness process configuration
	Harness HarnessConfig `mapstructure:"harness"`

	// Viewer behaviour
	Viewer ViewerConfig `mapstructure:"viewer"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Finished game archive
	Archive ArchiveConfig `mapstructure:"archive"`

	// Per-client throttling of the HTTP API and MCP tools
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

type HarnessConfig struct {
	Command string   `mapstructure:"command"`
	Dir     string   `mapstructure:"dir"`
	Args    []string `mapstructure:"args"`
}

type ViewerConfig struct {
	NoSGF                bool   `mapstructure:"noSGF"`
	BoardOnly            bool   `mapstructure:"boardOnly"`
	PostEndgameThreshold int    `mapstructure:"postEndgameThreshold"`
	SGFDir               string `mapstructure:"sgfDir"`
	PositionalSuperko    bool   `mapstructure:"positionalSuperko"`
}

type ServerConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	HTTPAddr string `mapstructure:"httpAddr"`
	MCP      bool   `mapstructure:"mcp"`
}

type LoggingConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	Prefix      string   `mapstructure:"prefix"`
	OutputPaths []string `mapstructure:"outputPaths"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	// Rendered archived positions kept in memory. 0 disables the cache.
	CacheSize int `mapstructure:"cacheSize"`
}

// RateLimitConfig limits each client to RequestsPerMin with bursts of up to
// BurstSize. PerActionLimits tightens individual MCP tools or HTTP routes
// ("POST /api/focus/next"); keys are matched case-insensitively.
type RateLimitConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	RequestsPerMin  int            `mapstructure:"requestsPerMin"`
	BurstSize       int            `mapstructure:"burstSize"`
	PerActionLimits map[string]int `mapstructure:"perActionLimits"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harness.command", "./autogtp")
	v.SetDefault("harness.dir", ".")
	v.SetDefault("harness.args", []string{})

	v.SetDefault("viewer.noSGF", false)
	v.SetDefault("viewer.boardOnly", false)
	v.SetDefault("viewer.postEndgameThreshold", 300)
	v.SetDefault("viewer.sgfDir", "")
	v.SetDefault("viewer.positionalSuperko", false)

	v.SetDefault("server.name", "leelawatcher")
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("server.httpAddr", ":8080")
	v.SetDefault("server.mcp", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.prefix", "[leelawatcher] ")
	v.SetDefault("logging.outputPaths", []string{"stderr"})

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "")
	v.SetDefault("archive.cacheSize", 128)

	v.SetDefault("rateLimit.enabled", false)
	v.SetDefault("rateLimit.requestsPerMin", 120)
	v.SetDefault("rateLimit.burstSize", 20)
}

// Load reads configuration from defaults, the optional file at configPath
// (JSON, YAML or TOML by extension) and LEELAWATCHER_* environment variables,
// in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Harness.Command == "" {
		return errors.New("harness command must not be empty")
	}

	if c.Viewer.PostEndgameThreshold < 1 {
		c.Viewer.PostEndgameThreshold = 1
	}

	if c.Viewer.SGFDir != "" {
		info, err := os.Stat(c.Viewer.SGFDir)
		if err != nil {
			return fmt.Errorf("sgf directory %s: %w", c.Viewer.SGFDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("sgf directory %s is not a directory", c.Viewer.SGFDir)
		}
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return errors.New("archive enabled without a path")
	}
	if c.Archive.CacheSize < 0 {
		return errors.New("archive cacheSize must not be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 || c.RateLimit.BurstSize < 1 {
			return errors.New("rate limit requires positive requestsPerMin and burstSize")
		}
		for action, limit := range c.RateLimit.PerActionLimits {
			if limit < 1 {
				return fmt.Errorf("rate limit for %s must be positive", action)
			}
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	return nil
}

// GetConfigPath finds a config file when --config is not given.
func GetConfigPath() string {
	if path := os.Getenv("LEELAWATCHER_CONFIG"); path != "" {
		return path
	}

	for _, name := range []string{"leelawatcher.yaml", "leelawatcher.json"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".leelawatcher", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}
