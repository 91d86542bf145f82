package catalog

import (
	"encoding/json"

	"github.com/teranos/strata/attrs"
	"github.com/teranos/strata/types"
)

// storedSchema is the attribute layout of a schema entity
type storedSchema struct {
	EntityType  string            `attr:"entity_type"`
	Domain      string            `attr:"domain"`
	Description string            `attr:"description"`
	Fields      []types.FieldSpec `attr:"fields"`
	Keywords    []string          `attr:"keywords"`
	UsageCount  int64             `attr:"usage_count"`
	AIGenerated bool              `attr:"ai_generated"`
	Confidence  float64           `attr:"confidence"`
}

// Attribute names a schema definition is persisted under
const (
	attrFields     = "fields"
	attrKeywords   = "keywords"
	attrUsageCount = "usage_count"
)

// schemaLayout is the write order and kind of every stored attribute
var schemaLayout = []struct {
	name string
	kind types.Kind
}{
	{"entity_type", types.KindText},
	{"domain", types.KindText},
	{"description", types.KindText},
	{attrFields, types.KindJSON},
	{attrKeywords, types.KindJSON},
	{attrUsageCount, types.KindNumber},
	{"ai_generated", types.KindBoolean},
	{"confidence", types.KindNumber},
}

type encodedField struct {
	name  string
	value string
	kind  types.Kind
}

// encodeDefinition flattens a definition into attribute writes, in write order
func encodeDefinition(entityType string, def types.Definition, aiGenerated bool) []encodedField {
	values := attrs.From(storedSchema{
		EntityType:  entityType,
		Domain:      def.Domain,
		Description: def.Description,
		Fields:      def.Fields,
		Keywords:    def.Keywords,
		AIGenerated: aiGenerated,
		Confidence:  def.Confidence,
	})

	out := make([]encodedField, len(schemaLayout))
	for i, l := range schemaLayout {
		out[i] = encodedField{name: l.name, value: values[l.name], kind: l.kind}
	}
	return out
}

// decodeDefinition rebuilds a schema from its entity and attributes.
// It never fails: unreadable field lists mark the schema Malformed, and other
// unreadable attributes fall back to their zero value.
func decodeDefinition(e *types.Entity, fields []types.Attribute) types.SchemaDefinition {
	def := types.SchemaDefinition{
		ID:         e.ID,
		TenantID:   e.TenantID,
		EntityType: e.Code,
		Name:       e.Name,
		Fields:     []types.FieldSpec{},
		Keywords:   []string{},
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}

	var stored storedSchema
	_ = attrs.Scan(fields, &stored)

	def.Domain = stored.Domain
	def.Description = stored.Description
	def.UsageCount = stored.UsageCount
	def.AIGenerated = stored.AIGenerated
	def.Confidence = stored.Confidence
	if stored.Keywords != nil {
		def.Keywords = stored.Keywords
	}

	var raw *types.Attribute
	for i := range fields {
		if fields[i].UpdatedAt.After(def.UpdatedAt) {
			def.UpdatedAt = fields[i].UpdatedAt
		}
		if fields[i].Name == attrFields {
			raw = &fields[i]
		}
	}

	if raw == nil || json.Unmarshal([]byte(raw.Value), &def.Fields) != nil {
		def.Fields = []types.FieldSpec{}
		def.Malformed = true
	} else if def.Fields == nil {
		def.Fields = []types.FieldSpec{}
	}

	return def
}
