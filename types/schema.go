package types

import (
	"slices"
	"time"
)

// FieldSpec is one field of a schema definition
type FieldSpec struct {
	Name     string `json:"name" toml:"name" yaml:"name"`
	Kind     Kind   `json:"kind" toml:"kind" yaml:"kind"`
	Required bool   `json:"required,omitempty" toml:"required" yaml:"required"`
}

// Definition is the caller-supplied shape of an entity type
type Definition struct {
	Domain      string      `json:"domain,omitempty" toml:"domain" yaml:"domain"`
	Description string      `json:"description,omitempty" toml:"description" yaml:"description"`
	Fields      []FieldSpec `json:"fields" toml:"fields" yaml:"fields"`
	Keywords    []string    `json:"keywords,omitempty" toml:"keywords" yaml:"keywords"`
	Confidence  float64     `json:"confidence,omitempty" toml:"confidence" yaml:"confidence"`
}

// SchemaDefinition is a registered entity type in a tenant's catalog
type SchemaDefinition struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	EntityType  string      `json:"entity_type"`
	Name        string      `json:"name"`
	Domain      string      `json:"domain,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSpec `json:"fields"`
	Keywords    []string    `json:"keywords"`
	UsageCount  int64       `json:"usage_count"`
	AIGenerated bool        `json:"ai_generated"`
	Confidence  float64     `json:"confidence"`
	// Malformed is set when the stored field list could not be decoded
	Malformed bool      `json:"malformed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no slices with s
func (s SchemaDefinition) Clone() SchemaDefinition {
	s.Fields = slices.Clone(s.Fields)
	s.Keywords = slices.Clone(s.Keywords)
	return s
}

// FieldNames returns the field names in definition order
func (s SchemaDefinition) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Recommendation is the similarity engine's advice for a proposed type
type Recommendation string

const (
	RecommendUseExisting   Recommendation = "use_existing"
	RecommendCreateVariant Recommendation = "create_variant"
	RecommendCreateNew     Recommendation = "create_new"
)

// SimilarityRequest describes a proposed entity type to compare against the catalog
type SimilarityRequest struct {
	RequirementText string   `json:"requirement_text"`
	ProposedType    string   `json:"proposed_type,omitempty"`
	ProposedFields  []string `json:"proposed_fields,omitempty"`
}

// SimilarityResult scores one existing schema against a request
type SimilarityResult struct {
	EntityType     string         `json:"entity_type"`
	Name           string         `json:"name"`
	Domain         string         `json:"domain,omitempty"`
	Score          float64        `json:"score"`
	TypeScore      float64        `json:"type_score"`
	KeywordScore   float64        `json:"keyword_score"`
	FieldScore     float64        `json:"field_score"`
	Recommendation Recommendation `json:"recommendation"`
	// MatchedFields are in both the proposal and the schema
	MatchedFields []string `json:"matched_fields"`
	// MissingFields are in the schema but not the proposal
	MissingFields []string `json:"missing_fields"`
	// ExtraFields are in the proposal but not the schema
	ExtraFields []string `json:"extra_fields"`
	UsageCount  int64    `json:"usage_count"`
	Malformed   bool     `json:"malformed,omitempty"`
	Reason      string   `json:"reason"`
}
