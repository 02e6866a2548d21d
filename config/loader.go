// Package config loads tradecrew configuration with the precedence
// defaults, then YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full tradecrew configuration.
type Config struct {
	// Extraction configures the semantic extraction facade.
	Extraction ExtractionConfig `yaml:"extraction" env:"EXTRACTION"`

	// Cache configures the extraction result cache.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis configures the shared cache tier connection.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Deliberation configures the session policy.
	Deliberation DeliberationConfig `yaml:"deliberation" env:"DELIBERATION"`

	// Log configures logging output.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ExtractionConfig tunes the model-backed extraction path.
type ExtractionConfig struct {
	// Enabled switches semantic extraction on. When off, or when no
	// provider is wired, every extraction uses the lexical fallback.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Model requested from the provider.
	Model string `yaml:"model" env:"MODEL"`
	// Timeout bounds one extraction call end to end.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// MaxConcurrent caps in-flight provider calls. Zero means unlimited.
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// RateRPS throttles provider calls per second. Zero disables the
	// rate limit.
	RateRPS float64 `yaml:"rate_rps" env:"RATE_RPS"`
	// RateBurst is the rate limiter burst size.
	RateBurst int `yaml:"rate_burst" env:"RATE_BURST"`
	// Temperature for extraction completions.
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// CacheConfig sizes the extraction cache tiers.
type CacheConfig struct {
	// EnableLocal turns the in-process tier on.
	EnableLocal bool `yaml:"enable_local" env:"ENABLE_LOCAL"`
	// LocalCapacity is the in-process entry cap.
	LocalCapacity int `yaml:"local_capacity" env:"LOCAL_CAPACITY"`
	// LocalTTL is the in-process entry lifetime.
	LocalTTL time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	// EnableRedis turns the shared Redis tier on.
	EnableRedis bool `yaml:"enable_redis" env:"ENABLE_REDIS"`
	// RedisTTL is the shared tier entry lifetime.
	RedisTTL time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// RedisConfig is the Redis connection configuration.
type RedisConfig struct {
	// Addr is the host:port address.
	Addr string `yaml:"addr" env:"ADDR"`
	// Password, empty for no auth.
	Password string `yaml:"password" env:"PASSWORD"`
	// DB is the database number.
	DB int `yaml:"db" env:"DB"`
	// PoolSize is the connection pool size.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// MinIdleConns keeps warm connections ready.
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DeliberationConfig is the session policy.
type DeliberationConfig struct {
	// MaxRounds bounds the discussion phase.
	MaxRounds int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	// ConsensusThreshold is the minimum consensus score (0-100) that
	// completes a session without mediation.
	ConsensusThreshold float64 `yaml:"consensus_threshold" env:"CONSENSUS_THRESHOLD"`
	// DefaultWeight replaces non-positive participant weights.
	DefaultWeight float64 `yaml:"default_weight" env:"DEFAULT_WEIGHT"`
	// EnableEarlyConvergence skips remaining rounds once all participants
	// align.
	EnableEarlyConvergence bool `yaml:"enable_early_convergence" env:"ENABLE_EARLY_CONVERGENCE"`
	// MediationTimeout bounds one mediator call.
	MediationTimeout time.Duration `yaml:"mediation_timeout" env:"MEDIATION_TIMEOUT"`
	// EventBuffer sizes the session event channel.
	EventBuffer int `yaml:"event_buffer" env:"EVENT_BUFFER"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths, e.g. stdout or file paths.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with the call site.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// EnableStacktrace attaches stack traces to error entries.
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// Loader builds a Config from defaults, an optional YAML file and the
// environment.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the TRADECREW env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "TRADECREW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file to load.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator registers an extra validation step.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, then the YAML
// file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile merges the YAML file over cfg. A missing file is not an
// error; the defaults stand.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct, building variable names from the
// prefix and the env tags joined with underscores.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration from path and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads the configuration from the environment only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for values the subsystems would
// reject.
func (c *Config) Validate() error {
	var errs []string

	if c.Extraction.Timeout <= 0 {
		errs = append(errs, "extraction timeout must be positive")
	}
	if c.Extraction.MaxConcurrent < 0 {
		errs = append(errs, "extraction max_concurrent must not be negative")
	}
	if c.Extraction.Temperature < 0 || c.Extraction.Temperature > 2 {
		errs = append(errs, "extraction temperature must be between 0 and 2")
	}

	if c.Cache.EnableLocal {
		if c.Cache.LocalCapacity <= 0 {
			errs = append(errs, "cache local_capacity must be positive")
		}
		if c.Cache.LocalTTL <= 0 {
			errs = append(errs, "cache local_ttl must be positive")
		}
	}
	if c.Cache.EnableRedis && c.Cache.RedisTTL <= 0 {
		errs = append(errs, "cache redis_ttl must be positive")
	}

	if c.Deliberation.MaxRounds < 1 {
		errs = append(errs, "deliberation max_rounds must be at least 1")
	}
	if c.Deliberation.ConsensusThreshold <= 0 || c.Deliberation.ConsensusThreshold > 100 {
		errs = append(errs, "deliberation consensus_threshold must be in (0, 100]")
	}
	if c.Deliberation.DefaultWeight <= 0 {
		errs = append(errs, "deliberation default_weight must be positive")
	}
	if c.Deliberation.MediationTimeout <= 0 {
		errs = append(errs, "deliberation mediation_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
