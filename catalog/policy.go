package catalog

import (
	"math"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/types"
)

// Default similarity policy
const (
	DefaultTypeWeight           = 0.3
	DefaultKeywordWeight        = 0.3
	DefaultFieldWeight          = 0.4
	DefaultUseExistingThreshold = 0.8
	DefaultVariantThreshold     = 0.5
	DefaultMaxResults           = 10
)

// Weights of the composite similarity score. They must sum to 1.
type Weights struct {
	Type    float64
	Keyword float64
	Field   float64
}

// Policy holds the tunable similarity constants
type Policy struct {
	Weights Weights
	// UseExistingThreshold: scores strictly above it recommend reuse
	UseExistingThreshold float64
	// VariantThreshold: scores strictly above it (and not above UseExisting) recommend a variant
	VariantThreshold float64
	MaxResults       int
}

// DefaultPolicy returns the stock weights and thresholds
func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			Type:    DefaultTypeWeight,
			Keyword: DefaultKeywordWeight,
			Field:   DefaultFieldWeight,
		},
		UseExistingThreshold: DefaultUseExistingThreshold,
		VariantThreshold:     DefaultVariantThreshold,
		MaxResults:           DefaultMaxResults,
	}
}

// Validate checks weights and thresholds
func (p Policy) Validate() error {
	w := p.Weights
	if w.Type < 0 || w.Keyword < 0 || w.Field < 0 {
		return errors.NewValidationError("similarity weights must be non-negative")
	}
	if sum := w.Type + w.Keyword + w.Field; math.Abs(sum-1) > 1e-6 {
		return errors.NewValidationError("similarity weights must sum to 1, got %.6f", sum)
	}
	if p.VariantThreshold < 0 || p.UseExistingThreshold > 1 || p.VariantThreshold >= p.UseExistingThreshold {
		return errors.NewValidationError("similarity thresholds must satisfy 0 <= variant < use_existing <= 1, got %.3f / %.3f",
			p.VariantThreshold, p.UseExistingThreshold)
	}
	if p.MaxResults < 0 {
		return errors.NewValidationError("similarity max results cannot be negative")
	}
	return nil
}

// Recommend maps a composite score to a recommendation. Both bounds are exclusive.
func (p Policy) Recommend(score float64) types.Recommendation {
	switch {
	case score > p.UseExistingThreshold:
		return types.RecommendUseExisting
	case score > p.VariantThreshold:
		return types.RecommendCreateVariant
	default:
		return types.RecommendCreateNew
	}
}
