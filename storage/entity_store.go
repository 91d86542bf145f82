package storage

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/types"
)

var entityTypePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// generatedCodeAttempts bounds retries when a generated code collides
const generatedCodeAttempts = 3

const entityColumns = `id, tenant_id, entity_type, name, code, active, created_at, updated_at`

// EntityStore handles tenant-scoped entity records
type EntityStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewEntityStore creates a new entity storage instance
func NewEntityStore(db *sql.DB, log *zap.SugaredLogger) *EntityStore {
	return &EntityStore{
		db:     db,
		logger: logger.OrNop(log),
	}
}

// ValidateEntityType checks an entity type tag
func ValidateEntityType(entityType string) error {
	if entityType == "" {
		return errors.NewValidationError("entity type cannot be empty")
	}
	if !entityTypePattern.MatchString(entityType) {
		return errors.NewValidationError("invalid entity type %q", entityType)
	}
	return nil
}

// Create inserts a new active entity. When code is empty a code is generated.
// A supplied code that already exists for (tenant, type) fails with a conflict error.
func (es *EntityStore) Create(ctx context.Context, tenantID, entityType, name, code string) (*types.Entity, error) {
	tenantID = strings.TrimSpace(tenantID)
	entityType = strings.TrimSpace(entityType)
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)

	if tenantID == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}
	if err := ValidateEntityType(entityType); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.NewValidationError("entity name cannot be empty")
	}

	ts := now()
	e := &types.Entity{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Type:      entityType,
		Name:      name,
		Code:      code,
		Active:    true,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	generated := code == ""
	attempts := 1
	if generated {
		attempts = generatedCodeAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if generated {
			e.Code = GenerateCode(entityType, name)
		}
		_, err = es.db.ExecContext(ctx, `
			INSERT INTO entities (`+entityColumns+`)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			e.ID, e.TenantID, e.Type, e.Name, e.Code, formatTime(ts), formatTime(ts))
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, errors.WithOp(errors.WrapStore(err, "failed to insert entity"), "create entity", tenantID, "", "")
		}
	}
	if err != nil {
		return nil, errors.WithOp(
			errors.NewConflictError("code %q already exists for type %s", e.Code, entityType),
			"create entity", tenantID, "", "")
	}

	es.logger.Debugw("Created entity",
		logger.FieldTenantID, tenantID,
		logger.FieldEntityID, e.ID,
		logger.FieldEntityType, entityType,
	)

	return e, nil
}

// Get returns an entity by id
func (es *EntityStore) Get(ctx context.Context, id string) (*types.Entity, error) {
	row := es.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithOp(errors.NewNotFoundError("entity %s not found", id), "get entity", "", id, "")
	}
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to get entity"), "get entity", "", id, "")
	}
	return e, nil
}

// GetByCode returns an entity by its (tenant, type, code) key
func (es *EntityStore) GetByCode(ctx context.Context, tenantID, entityType, code string) (*types.Entity, error) {
	row := es.db.QueryRowContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE tenant_id = ? AND entity_type = ? AND code = ?`,
		tenantID, entityType, code)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithOp(
			errors.NewNotFoundError("entity %s/%s not found", entityType, code),
			"get entity by code", tenantID, "", "")
	}
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to get entity by code"), "get entity by code", tenantID, "", "")
	}
	return e, nil
}

// List returns a tenant's entities in creation order
func (es *EntityStore) List(ctx context.Context, opts types.ListOptions) ([]*types.Entity, error) {
	if opts.TenantID == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}

	// An explicit but empty id set matches nothing
	if opts.IDs != nil && len(opts.IDs) == 0 {
		return []*types.Entity{}, nil
	}

	var qb queryBuilder
	qb.addClause("tenant_id = ?", opts.TenantID)
	if opts.Type != "" {
		qb.addClause("entity_type = ?", opts.Type)
	} else if !opts.IncludeReserved {
		qb.addClause("substr(entity_type, 1, 1) != ?", types.ReservedTypePrefix)
	}
	if !opts.IncludeInactive {
		qb.addClause("active = 1")
	}
	// Large id sets are filtered after the scan instead of bound as parameters
	var keep map[string]bool
	if len(opts.IDs) > maxInArgs {
		keep = make(map[string]bool, len(opts.IDs))
		for _, id := range opts.IDs {
			keep[id] = true
		}
	} else if len(opts.IDs) > 0 {
		qb.addIn("id", opts.IDs)
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE ` + qb.build() + ` ORDER BY created_at, rowid`
	args := qb.args

	rows, err := es.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to list entities"), "list entities", opts.TenantID, "", "")
	}
	defer rows.Close()

	entities := []*types.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, errors.WrapStore(err, "failed to scan entity")
		}
		if keep != nil && !keep[e.ID] {
			continue
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "failed to iterate entities")
	}

	return entities, nil
}

// Update applies a patch to an entity's name and active flag.
// Patches that try to change tenant or type are rejected.
func (es *EntityStore) Update(ctx context.Context, id string, patch types.EntityPatch) (*types.Entity, error) {
	if patch.TenantID != nil {
		return nil, errors.WithOp(errors.NewValidationError("tenant id is immutable"), "update entity", "", id, "tenant_id")
	}
	if patch.Type != nil {
		return nil, errors.WithOp(
			errors.WithHint(errors.NewValidationError("entity type is immutable"), "create a new entity to retype"),
			"update entity", "", id, "type")
	}

	e, err := es.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, errors.WithOp(errors.NewValidationError("entity name cannot be empty"), "update entity", e.TenantID, id, "name")
		}
		e.Name = name
	}
	if patch.Active != nil {
		e.Active = *patch.Active
	}
	e.UpdatedAt = now()

	if err := es.save(ctx, e); err != nil {
		return nil, errors.WithOp(err, "update entity", e.TenantID, id, "")
	}
	return e, nil
}

// SoftDelete marks an entity inactive. The row is never removed.
func (es *EntityStore) SoftDelete(ctx context.Context, id string) error {
	res, err := es.db.ExecContext(ctx,
		`UPDATE entities SET active = 0, updated_at = ? WHERE id = ?`,
		formatTime(now()), id)
	if err != nil {
		return errors.WithOp(errors.WrapStore(err, "failed to soft delete entity"), "delete entity", "", id, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStore(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.WithOp(errors.NewNotFoundError("entity %s not found", id), "delete entity", "", id, "")
	}

	es.logger.Debugw("Soft deleted entity", logger.FieldEntityID, id)
	return nil
}

func (es *EntityStore) save(ctx context.Context, e *types.Entity) error {
	res, err := es.db.ExecContext(ctx, `
		UPDATE entities SET name = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, boolToInt(e.Active), formatTime(e.UpdatedAt), e.ID)
	if err != nil {
		return errors.WrapStore(err, "failed to update entity")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStore(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.NewNotFoundError("entity %s not found", e.ID)
	}
	return nil
}

// scanEntity scans a single row into an Entity
func scanEntity(row rowScanner) (*types.Entity, error) {
	var e types.Entity
	var active int
	var createdAt, updatedAt string

	if err := row.Scan(&e.ID, &e.TenantID, &e.Type, &e.Name, &e.Code, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e.Active = active == 1

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}

// entityRef is the minimal view of an entity used for tenant checks
type entityRef struct {
	ID       string
	TenantID string
	Type     string
	Active   bool
}

// lookupEntity returns the tenant, type and active flag of an entity, or sql.ErrNoRows
func lookupEntity(ctx context.Context, q querier, id string) (*entityRef, error) {
	var ref entityRef
	var active int
	err := q.QueryRowContext(ctx,
		`SELECT id, tenant_id, entity_type, active FROM entities WHERE id = ?`, id).
		Scan(&ref.ID, &ref.TenantID, &ref.Type, &active)
	if err != nil {
		return nil, err
	}
	ref.Active = active == 1
	return &ref, nil
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
