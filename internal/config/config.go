package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hybridex/internal/domain/combination"
)

// Config holds the hybridex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Shards    []ShardConfig   `yaml:"shards"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	// ReadinessTimeout bounds the startup wait for every shard, in seconds.
	ReadinessTimeout int `yaml:"readiness_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ShardConfig holds the connection settings of one shard. Shards are numbered by
// their position in the list.
type ShardConfig struct {
	Driver      string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs       []string `yaml:"addrs"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	Index       string   `yaml:"index"`
	VectorField string   `yaml:"vector_field"` // default: vector
	TextField   string   `yaml:"text_field"`   // default: __content
}

// SearchConfig holds coordinator settings.
type SearchConfig struct {
	Technique           string `yaml:"technique"` // arithmetic_mean, rrf
	AllowPartialResults bool   `yaml:"allow_partial_results"`
	ShardTimeoutSec     int    `yaml:"shard_timeout_sec"`
}

// EmbeddingConfig holds query embedding settings. An empty model disables the embedder;
// semantic sub-queries must then carry their own vectors.
type EmbeddingConfig struct {
	Provider         string      `yaml:"provider"`
	APIKey           string      `yaml:"api_key"`
	BaseURL          string      `yaml:"base_url"`
	Model            string      `yaml:"model"`
	Dimensions       int         `yaml:"dimensions"`
	QueryInstruction string      `yaml:"query_instruction"`
	Cache            CacheConfig `yaml:"cache"`
}

// CacheConfig holds the query embedding cache settings. Vectors are stored on one shard's node.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Shard   int  `yaml:"shard"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// Enabled reports whether a query embedder should be built.
func (c EmbeddingConfig) Enabled() bool { return c.Model != "" }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.ReadinessTimeout <= 0 {
		c.ReadinessTimeout = 10
	}
	for i := range c.Shards {
		if c.Shards[i].Driver == "" {
			c.Shards[i].Driver = "redis"
		}
	}
	if c.Search.Technique == "" {
		c.Search.Technique = combination.Default.String()
	}
	if c.Search.ShardTimeoutSec <= 0 {
		c.Search.ShardTimeoutSec = 5
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 86400
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Shards) == 0 {
		return fmt.Errorf("at least one shard is required")
	}
	for i, s := range c.Shards {
		if len(s.Addrs) == 0 {
			return fmt.Errorf("shards[%d].addrs is required", i)
		}
		if s.Index == "" {
			return fmt.Errorf("shards[%d].index is required", i)
		}
		switch s.Driver {
		case "redis", "valkey":
			// ok
		default:
			return fmt.Errorf("shards[%d].driver must be \"redis\" or \"valkey\", got %q", i, s.Driver)
		}
	}
	// Fail at startup, before any shard is queried.
	if _, err := combination.Parse(c.Search.Technique); err != nil {
		return fmt.Errorf("search.technique: %w", err)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if cache := c.Embedding.Cache; cache.Enabled && (cache.Shard < 0 || cache.Shard >= len(c.Shards)) {
		return fmt.Errorf("embedding.cache.shard must be between 0 and %d, got %d", len(c.Shards)-1, cache.Shard)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
