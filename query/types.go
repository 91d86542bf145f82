package query

import "github.com/teranos/strata/types"

// Op is a filter comparison
type Op string

// Filter operations
const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
	OpExists   Op = "exists"
)

// Ops lists every supported operation
var Ops = []Op{OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpExists}

// Valid reports whether o is a supported operation
func (o Op) Valid() bool {
	for _, op := range Ops {
		if o == op {
			return true
		}
	}
	return false
}

// Filter matches one dynamic attribute. Value is decoded with the attribute's kind.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value string `json:"value,omitempty"`
}

// Direction selects which side of a relationship Related walks
type Direction string

const (
	DirectionChildren Direction = "children"
	DirectionParents  Direction = "parents"
)

// Related restricts candidates to entities linked to EntityID.
// An empty Type follows links of any type.
type Related struct {
	Type      string    `json:"type,omitempty"`
	EntityID  string    `json:"entity_id"`
	Direction Direction `json:"direction,omitempty"`
}

// Sort orders results by an entity column (name, code, created_at, updated_at)
// or by any attribute name
type Sort struct {
	Field string `json:"field,omitempty"`
	Desc  bool   `json:"desc,omitempty"`
}

// Page is an offset window. A zero limit means the configured default.
type Page struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// Request describes a search within one tenant
type Request struct {
	Type            string   `json:"type,omitempty"`
	Text            string   `json:"text,omitempty"`
	Filters         []Filter `json:"filters,omitempty"`
	Related         *Related `json:"related,omitempty"`
	Sort            Sort     `json:"sort,omitempty"`
	Page            Page     `json:"page,omitempty"`
	IncludeInactive bool     `json:"include_inactive,omitempty"`
}

// Record is an entity joined with its attributes
type Record struct {
	Entity *types.Entity     `json:"entity"`
	Fields []types.Attribute `json:"fields"`
}

// Field returns the attribute named name
func (r Record) Field(name string) (types.Attribute, bool) {
	for _, a := range r.Fields {
		if a.Name == name {
			return a, true
		}
	}
	return types.Attribute{}, false
}

// Result is one page of matches. Total counts every match before paging.
type Result struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
}
