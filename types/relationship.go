package types

import (
	"encoding/json"
	"time"
)

// Relationship is a typed, directed link between two entities of the same tenant.
// Endpoints are plain ids; nothing in the store enforces that they exist.
type Relationship struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Type      string          `json:"type"`
	ParentID  string          `json:"parent_id"`
	ChildID   string          `json:"child_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrphanReport counts dangling references found by a sampled sweep. No repair is performed.
type OrphanReport struct {
	TenantID          string `json:"tenant_id"`
	AttributesSampled int    `json:"attributes_sampled"`
	OrphanAttributes  int    `json:"orphan_attributes"`
	LinksSampled      int    `json:"links_sampled"`
	OrphanLinks       int    `json:"orphan_links"`
	// CrossTenantLinks have an endpoint that resolves, but in another tenant
	CrossTenantLinks int `json:"cross_tenant_links"`
}

// Clean reports whether the sweep found nothing dangling
func (r OrphanReport) Clean() bool {
	return r.OrphanAttributes == 0 && r.OrphanLinks == 0 && r.CrossTenantLinks == 0
}
