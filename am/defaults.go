package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default values
const (
	DefaultDatabasePath    = "strata.db"
	DefaultCacheTTLSeconds = 300
	DefaultRedisPrefix     = "strata"
	DefaultSweepSampleSize = 100
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", DefaultDatabasePath)

	// Schema cache defaults
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.ttl_seconds", DefaultCacheTTLSeconds)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", DefaultRedisPrefix)

	// Similarity policy defaults (0.3/0.3/0.4 weighting, 0.8/0.5 cutoffs)
	v.SetDefault("similarity.type_weight", 0.3)
	v.SetDefault("similarity.keyword_weight", 0.3)
	v.SetDefault("similarity.field_weight", 0.4)
	v.SetDefault("similarity.use_existing_threshold", 0.8)
	v.SetDefault("similarity.variant_threshold", 0.5)
	v.SetDefault("similarity.max_results", 10)

	// Search defaults
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 100)

	// Orphan sweep defaults
	v.SetDefault("sweep.sample_size", DefaultSweepSampleSize)
	v.SetDefault("sweep.max_checks_per_second", 0.0)
}

// Defaults returns the built-in configuration, without reading any file or environment
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults are literals; a decode failure is a programming error
		panic(err)
	}
	return cfg
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "STRATA_DATABASE_PATH")
	v.BindEnv("cache.redis.addr", "STRATA_CACHE_REDIS_ADDR")
	v.BindEnv("cache.redis.password", "STRATA_CACHE_REDIS_PASSWORD")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// CacheTTL returns the schema cache entry lifetime
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return DefaultCacheTTLSeconds * time.Second
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// GetRedisPrefix returns the key prefix for the shared cache
func (c *Config) GetRedisPrefix() string {
	if c.Cache.Redis.Prefix == "" {
		return DefaultRedisPrefix
	}
	return c.Cache.Redis.Prefix
}

// GetSweepSampleSize returns the default orphan sweep sample size
func (c *Config) GetSweepSampleSize() int {
	if c.Sweep.SampleSize <= 0 {
		return DefaultSweepSampleSize
	}
	return c.Sweep.SampleSize
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Cache: {Backend: %s, TTL: %ds}, Search: {Limit: %d/%d}}",
		c.Database.Path, c.Cache.Backend, c.Cache.TTLSeconds, c.Search.DefaultLimit, c.Search.MaxLimit)
}
