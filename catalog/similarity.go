package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/teranos/strata/types"
)

// levenshtein calculates edit distance between two strings, case-insensitively, over runes
func levenshtein(s1, s2 string) int {
	r1 := []rune(strings.ToLower(s1))
	r2 := []rune(strings.ToLower(s2))

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}
	if string(r1) == string(r2) {
		return 0
	}

	// Two rolling rows of the edit matrix
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// TypeNameSimilarity is the normalized Levenshtein similarity (maxLen - distance) / maxLen.
// An empty proposed type scores 0.
func TypeNameSimilarity(existing, proposed string) float64 {
	existing = strings.TrimSpace(existing)
	proposed = strings.TrimSpace(proposed)
	if proposed == "" || existing == "" {
		return 0
	}

	maxLen := max(len([]rune(existing)), len([]rune(proposed)))
	return float64(maxLen-levenshtein(existing, proposed)) / float64(maxLen)
}

// KeywordOverlapRatio is the share of the schema's keywords found in the requirement text
func KeywordOverlapRatio(requirementText string, keywords []string) float64 {
	existing := keywordSet(keywords)
	if len(existing) == 0 {
		return 0
	}

	requested := keywordSet(ExtractKeywords(requirementText))
	hits := 0
	for k := range existing {
		if requested[k] {
			hits++
		}
	}
	return float64(hits) / float64(len(existing))
}

// FieldOverlapRatio is the Jaccard index of the normalized field-name sets
func FieldOverlapRatio(proposed, existing []string) float64 {
	p := fieldSet(proposed)
	e := fieldSet(existing)
	if len(p) == 0 && len(e) == 0 {
		return 0
	}

	shared := 0
	for f := range p {
		if e[f] {
			shared++
		}
	}
	union := len(p) + len(e) - shared
	return float64(shared) / float64(union)
}

// fieldDiff splits normalized field names into matched, missing (schema only) and extra (proposal only)
func fieldDiff(proposed, existing []string) (matched, missing, extra []string) {
	p := fieldSet(proposed)
	e := fieldSet(existing)

	matched, missing, extra = []string{}, []string{}, []string{}
	for f := range e {
		if p[f] {
			matched = append(matched, f)
		} else {
			missing = append(missing, f)
		}
	}
	for f := range p {
		if !e[f] {
			extra = append(extra, f)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	sort.Strings(extra)
	return matched, missing, extra
}

func fieldSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if norm := NormalizeFieldName(n); norm != "" {
			set[norm] = true
		}
	}
	return set
}

func keywordSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		for _, tok := range ExtractKeywords(k) {
			set[tok] = true
		}
	}
	return set
}

// NormalizeFieldName lower-cases a field name and maps spaces and hyphens to underscores
func NormalizeFieldName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	return strings.ReplaceAll(name, "-", "_")
}

// scorer computes composite similarity with a fixed policy
type scorer struct {
	policy Policy
}

// score compares one schema against a request. A panic while scoring a record
// degrades that record to zero instead of aborting the search.
func (s scorer) score(def types.SchemaDefinition, req types.SimilarityRequest) (result types.SimilarityResult) {
	result = types.SimilarityResult{
		EntityType:    def.EntityType,
		Name:          def.Name,
		Domain:        def.Domain,
		UsageCount:    def.UsageCount,
		Malformed:     def.Malformed,
		MatchedFields: []string{},
		MissingFields: []string{},
		ExtraFields:   []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			result.Score, result.TypeScore, result.KeywordScore, result.FieldScore = 0, 0, 0, 0
			result.Malformed = true
			result.Recommendation = types.RecommendCreateNew
			result.Reason = fmt.Sprintf("scoring failed: %v", r)
		}
	}()

	result.TypeScore = TypeNameSimilarity(def.EntityType, req.ProposedType)
	result.KeywordScore = KeywordOverlapRatio(req.RequirementText, def.Keywords)
	if !def.Malformed {
		existing := def.FieldNames()
		result.FieldScore = FieldOverlapRatio(req.ProposedFields, existing)
		result.MatchedFields, result.MissingFields, result.ExtraFields = fieldDiff(req.ProposedFields, existing)
	}

	w := s.policy.Weights
	result.Score = roundScore(w.Type*result.TypeScore + w.Keyword*result.KeywordScore + w.Field*result.FieldScore)
	result.Recommendation = s.policy.Recommend(result.Score)
	result.Reason = reason(result, len(def.Fields), len(keywordSet(def.Keywords)))
	return result
}

// roundScore trims float noise so boundary scores classify exactly
func roundScore(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func reason(r types.SimilarityResult, fieldCount, keywordCount int) string {
	parts := []string{fmt.Sprintf("type name %.0f%% similar", r.TypeScore*100)}
	if r.Malformed {
		parts = append(parts, "stored field list unreadable")
	} else {
		parts = append(parts, fmt.Sprintf("%d of %d fields shared", len(r.MatchedFields), fieldCount))
	}
	if keywordCount > 0 {
		parts = append(parts, fmt.Sprintf("%.0f%% of %d keywords matched", r.KeywordScore*100, keywordCount))
	}
	return strings.Join(parts, "; ") + " -> " + string(r.Recommendation)
}

// rank orders results by score, then usage, then type, and truncates to limit
func rank(results []types.SimilarityResult, limit int) []types.SimilarityResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].UsageCount != results[j].UsageCount {
			return results[i].UsageCount > results[j].UsageCount
		}
		return results[i].EntityType < results[j].EntityType
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
