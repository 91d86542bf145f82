// Package am loads strata's configuration ("am" is the platform's settings file).
//
// Sources are merged in precedence order: built-in defaults, then
// /etc/strata/am.toml, ~/.strata/am.toml, the nearest project am.toml found by
// walking up from the working directory, and finally STRATA_* environment variables.
package am

// Config represents the strata platform configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" toml:"database"`
	Cache      CacheConfig      `mapstructure:"cache" toml:"cache"`
	Similarity SimilarityConfig `mapstructure:"similarity" toml:"similarity"`
	Search     SearchConfig     `mapstructure:"search" toml:"search"`
	Sweep      SweepConfig      `mapstructure:"sweep" toml:"sweep"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig configures the schema cache
type CacheConfig struct {
	Backend    string      `mapstructure:"backend" toml:"backend"`         // memory or redis
	TTLSeconds int         `mapstructure:"ttl_seconds" toml:"ttl_seconds"` // entry lifetime (default: 300)
	Redis      RedisConfig `mapstructure:"redis" toml:"redis"`
}

// RedisConfig configures the shared schema cache
type RedisConfig struct {
	Addr     string `mapstructure:"addr" toml:"addr"`
	Password string `mapstructure:"password" toml:"password,omitempty"`
	DB       int    `mapstructure:"db" toml:"db"`
	Prefix   string `mapstructure:"prefix" toml:"prefix"`
}

// SimilarityConfig holds the schema similarity policy.
// Weights must sum to 1; scores strictly above a threshold earn its recommendation.
type SimilarityConfig struct {
	TypeWeight           float64 `mapstructure:"type_weight" toml:"type_weight"`
	KeywordWeight        float64 `mapstructure:"keyword_weight" toml:"keyword_weight"`
	FieldWeight          float64 `mapstructure:"field_weight" toml:"field_weight"`
	UseExistingThreshold float64 `mapstructure:"use_existing_threshold" toml:"use_existing_threshold"`
	VariantThreshold     float64 `mapstructure:"variant_threshold" toml:"variant_threshold"`
	MaxResults           int     `mapstructure:"max_results" toml:"max_results"`
}

// SearchConfig bounds search pages
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit" toml:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit" toml:"max_limit"`
}

// SweepConfig configures the orphan sweep
type SweepConfig struct {
	SampleSize         int     `mapstructure:"sample_size" toml:"sample_size"`
	MaxChecksPerSecond float64 `mapstructure:"max_checks_per_second" toml:"max_checks_per_second"` // 0 = unthrottled
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
