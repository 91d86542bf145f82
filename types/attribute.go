package types

import "time"

// Kind is the inferred type tag of a dynamic attribute
type Kind string

const (
	KindText    Kind = "text"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindDate    Kind = "date"
	KindJSON    Kind = "json"
)

// Kinds lists every valid attribute kind
var Kinds = []Kind{KindText, KindNumber, KindBoolean, KindDate, KindJSON}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindBoolean, KindDate, KindJSON:
		return true
	}
	return false
}

// Rule formats
const (
	FormatEmail = "email"
	FormatPhone = "phone"
)

// ValidationRules is the baseline rule set generated when an attribute is written
type ValidationRules struct {
	Format    string `json:"format,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	MinLength int    `json:"min_length"`
	MaxLength int    `json:"max_length"`
}

// Attribute is one dynamic (name, value) pair attached to an entity.
// Value is always persisted as text; Kind records what the writer's value looked like.
type Attribute struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entity_id"`
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	Value     string          `json:"value"`
	Kind      Kind            `json:"kind"`
	Order     int             `json:"order"`
	Required  bool            `json:"required"`
	Rules     ValidationRules `json:"validation_rules"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Problem is set on read when the stored text no longer passes its kind or rules
	Problem string `json:"problem,omitempty"`
}

// Typed decodes the stored text according to its kind.
// The store does not guarantee the text still matches the kind, so readers call this on access.
func (a Attribute) Typed() (Value, error) {
	return DecodeValue(a.Kind, a.Value)
}
