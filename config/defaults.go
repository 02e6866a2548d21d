package config

import "time"

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Extraction:   DefaultExtractionConfig(),
		Cache:        DefaultCacheConfig(),
		Redis:        DefaultRedisConfig(),
		Deliberation: DefaultDeliberationConfig(),
		Log:          DefaultLogConfig(),
	}
}

// DefaultExtractionConfig returns conservative extraction settings.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		Enabled:       true,
		Model:         "gpt-4o-mini",
		Timeout:       10 * time.Second,
		MaxConcurrent: 8,
		RateRPS:       10,
		RateBurst:     20,
		Temperature:   0.1,
		MaxTokens:     512,
	}
}

// DefaultCacheConfig returns a local-only cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		EnableLocal:   true,
		LocalCapacity: 1000,
		LocalTTL:      time.Hour,
		EnableRedis:   false,
		RedisTTL:      24 * time.Hour,
		KeyPrefix:     "tradecrew:extract:",
	}
}

// DefaultRedisConfig returns the default Redis connection settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDeliberationConfig returns the stock session policy.
func DefaultDeliberationConfig() DeliberationConfig {
	return DeliberationConfig{
		MaxRounds:              3,
		ConsensusThreshold:     66,
		DefaultWeight:          1.0,
		EnableEarlyConvergence: true,
		MediationTimeout:       30 * time.Second,
		EventBuffer:            256,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
