// Package types defines the records shared by the storage, catalog and query layers.
package types

import "time"

// ReservedTypePrefix marks entity types owned by the platform itself.
// Untyped searches skip them; user-facing creates may not use them.
const ReservedTypePrefix = "_"

// SchemaEntityType is the entity type the catalog persists definitions under
const SchemaEntityType = "_schema"

// Entity is a tenant-scoped, typed business record.
// TenantID and Type are fixed at creation.
type Entity struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReserved reports whether the entity belongs to a platform-owned type
func (e Entity) IsReserved() bool {
	return IsReservedType(e.Type)
}

// IsReservedType reports whether an entity type is platform-owned
func IsReservedType(entityType string) bool {
	return len(entityType) > 0 && entityType[:1] == ReservedTypePrefix
}

// EntityPatch describes a partial entity update. Nil fields are left unchanged.
// TenantID and Type exist so callers that send them get a validation error
// instead of a silent no-op.
type EntityPatch struct {
	Name     *string `json:"name,omitempty"`
	Active   *bool   `json:"active,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`
	Type     *string `json:"type,omitempty"`
}

// ListOptions filters entity listings
type ListOptions struct {
	TenantID        string
	Type            string
	IncludeInactive bool
	// IncludeReserved lists platform-owned types when Type is empty
	IncludeReserved bool
	// IDs restricts the listing to these entity ids when non-nil
	IDs []string
}
