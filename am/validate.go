package am

import (
	"math"

	"github.com/teranos/strata/errors"
)

// weightTolerance absorbs float noise in configured weights
const weightTolerance = 1e-6

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Database path is optional - empty defaults to strata.db
	// No validation needed here

	switch c.Cache.Backend {
	case "", CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.NewValidationError("cache.redis.addr cannot be empty when cache.backend is redis")
		}
	default:
		return errors.NewValidationError("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	// 0 = use default, negative = invalid
	if c.Cache.TTLSeconds < 0 {
		return errors.NewValidationError("cache.ttl_seconds must be >= 0, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.Redis.DB < 0 {
		return errors.NewValidationError("cache.redis.db must be >= 0, got %d", c.Cache.Redis.DB)
	}

	s := c.Similarity
	if s.TypeWeight < 0 || s.KeywordWeight < 0 || s.FieldWeight < 0 {
		return errors.NewValidationError("similarity weights must be >= 0, got %.3f/%.3f/%.3f",
			s.TypeWeight, s.KeywordWeight, s.FieldWeight)
	}
	if sum := s.TypeWeight + s.KeywordWeight + s.FieldWeight; math.Abs(sum-1) > weightTolerance {
		return errors.NewValidationError("similarity weights must sum to 1, got %.6f", sum)
	}
	if s.VariantThreshold < 0 || s.UseExistingThreshold > 1 || s.VariantThreshold >= s.UseExistingThreshold {
		return errors.NewValidationError(
			"similarity thresholds must satisfy 0 <= variant_threshold < use_existing_threshold <= 1, got %.3f and %.3f",
			s.VariantThreshold, s.UseExistingThreshold)
	}
	if s.MaxResults < 0 {
		return errors.NewValidationError("similarity.max_results must be >= 0, got %d", s.MaxResults)
	}

	// Search limits: 0 = use default, negative = invalid
	if c.Search.DefaultLimit < 0 {
		return errors.NewValidationError("search.default_limit must be >= 0, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < 0 {
		return errors.NewValidationError("search.max_limit must be >= 0, got %d", c.Search.MaxLimit)
	}
	if c.Search.MaxLimit > 0 && c.Search.DefaultLimit > c.Search.MaxLimit {
		return errors.NewValidationError("search.default_limit (%d) cannot exceed search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}

	if c.Sweep.SampleSize < 0 {
		return errors.NewValidationError("sweep.sample_size must be >= 0, got %d", c.Sweep.SampleSize)
	}
	if c.Sweep.MaxChecksPerSecond < 0 {
		return errors.NewValidationError("sweep.max_checks_per_second must be >= 0, got %f", c.Sweep.MaxChecksPerSecond)
	}

	return nil
}
