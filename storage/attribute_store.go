package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/strata/attrs"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/types"
)

const attributeColumns = `id, entity_id, tenant_id, field_name, value, kind, validation_rules, required, field_order, created_at, updated_at`

// maxInArgs keeps IN (...) lists under SQLite's bound-variable limit
const maxInArgs = 500

// AttributeStore handles dynamic (name, value) pairs attached to entities
type AttributeStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewAttributeStore creates a new attribute storage instance
func NewAttributeStore(db *sql.DB, log *zap.SugaredLogger) *AttributeStore {
	return &AttributeStore{
		db:     db,
		logger: logger.OrNop(log),
	}
}

// FieldOption adjusts a single SetField call
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	required    *bool
	kind        types.Kind
	hasOverride bool
}

// WithRequired marks the field required
func WithRequired() FieldOption {
	return func(o *fieldOptions) {
		t := true
		o.required = &t
	}
}

// WithOptional clears the required flag
func WithOptional() FieldOption {
	return func(o *fieldOptions) {
		f := false
		o.required = &f
	}
}

// WithKind overrides inference; the value must decode as kind
func WithKind(kind types.Kind) FieldOption {
	return func(o *fieldOptions) {
		o.kind = kind
		o.hasOverride = true
	}
}

// SetField upserts one attribute keyed by (entity id, field name).
// The kind is inferred from the value unless WithKind is given.
// New fields are appended after the entity's existing fields; updates keep their order.
// Returns the stored attribute and whether it was newly created.
func (as *AttributeStore) SetField(ctx context.Context, entityID, name, value string, opts ...FieldOption) (*types.Attribute, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, errors.WithOp(errors.NewValidationError("field name cannot be empty"), "set field", "", entityID, "")
	}

	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}

	kind := attrs.Infer(value)
	if o.hasOverride {
		if !o.kind.Valid() {
			return nil, false, errors.WithOp(errors.NewValidationError("unknown attribute kind %q", o.kind), "set field", "", entityID, name)
		}
		if _, err := attrs.Decode(o.kind, value); err != nil {
			return nil, false, errors.WithOp(err, "set field", "", entityID, name)
		}
		kind = o.kind
	}

	tx, err := as.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errors.WithOp(errors.WrapStore(err, "failed to begin transaction"), "set field", "", entityID, name)
	}
	defer tx.Rollback() // Rollback if not committed

	ref, err := lookupEntity(ctx, tx, entityID)
	if err == sql.ErrNoRows {
		return nil, false, errors.WithOp(errors.NewNotFoundError("entity %s not found", entityID), "set field", "", entityID, name)
	}
	if err != nil {
		return nil, false, errors.WithOp(errors.WrapStore(err, "failed to look up entity"), "set field", "", entityID, name)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+attributeColumns+` FROM attributes WHERE entity_id = ? AND field_name = ?`,
		entityID, name)
	existing, err := scanAttribute(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, errors.WithOp(errors.WrapStore(err, "failed to read attribute"), "set field", ref.TenantID, entityID, name)
	}

	ts := now()
	created := existing == nil

	var a types.Attribute
	if created {
		var maxOrder int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(field_order), 0) FROM attributes WHERE entity_id = ?`, entityID).Scan(&maxOrder); err != nil {
			return nil, false, errors.WithOp(errors.WrapStore(err, "failed to read field order"), "set field", ref.TenantID, entityID, name)
		}
		a = types.Attribute{
			ID:        uuid.New().String(),
			EntityID:  entityID,
			TenantID:  ref.TenantID,
			Name:      name,
			Order:     maxOrder + 1,
			CreatedAt: ts,
		}
	} else {
		a = *existing
	}

	if o.required != nil {
		a.Required = *o.required
	}
	a.Value = value
	a.Kind = kind
	a.Rules = attrs.Rules(name, value, kind, a.Required)
	a.UpdatedAt = ts

	rules, err := json.Marshal(a.Rules)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to marshal validation rules")
	}

	if created {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attributes (`+attributeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.EntityID, a.TenantID, a.Name, a.Value, string(a.Kind), string(rules),
			boolToInt(a.Required), a.Order, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE attributes
			SET value = ?, kind = ?, validation_rules = ?, required = ?, updated_at = ?
			WHERE id = ?`,
			a.Value, string(a.Kind), string(rules), boolToInt(a.Required), formatTime(a.UpdatedAt), a.ID)
	}
	if err != nil {
		return nil, false, errors.WithOp(errors.WrapStore(err, "failed to write attribute"), "set field", ref.TenantID, entityID, name)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, errors.WithOp(errors.WrapStore(err, "failed to commit transaction"), "set field", ref.TenantID, entityID, name)
	}

	as.logger.Debugw("Set field",
		logger.FieldTenantID, a.TenantID,
		logger.FieldEntityID, entityID,
		logger.FieldField, name,
		"kind", a.Kind,
		"created", created,
	)

	return &a, created, nil
}

// GetFields returns an entity's attributes ordered by (order, name).
// Soft-deleted entities keep their attributes.
func (as *AttributeStore) GetFields(ctx context.Context, entityID string) ([]types.Attribute, error) {
	if _, err := lookupEntity(ctx, as.db, entityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.WithOp(errors.NewNotFoundError("entity %s not found", entityID), "get fields", "", entityID, "")
		}
		return nil, errors.WithOp(errors.WrapStore(err, "failed to look up entity"), "get fields", "", entityID, "")
	}

	rows, err := as.db.QueryContext(ctx, `
		SELECT `+attributeColumns+`
		FROM attributes
		WHERE entity_id = ?
		ORDER BY field_order, field_name`,
		entityID)
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to get fields"), "get fields", "", entityID, "")
	}
	defer rows.Close()

	fields := []types.Attribute{}
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, errors.WrapStore(err, "failed to scan attribute")
		}
		fields = append(fields, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "failed to iterate attributes")
	}
	return fields, nil
}

// GetFieldsFor returns the ordered attributes of many entities, keyed by entity id.
// Entities without attributes are absent from the map.
func (as *AttributeStore) GetFieldsFor(ctx context.Context, entityIDs []string) (map[string][]types.Attribute, error) {
	out := make(map[string][]types.Attribute, len(entityIDs))

	for start := 0; start < len(entityIDs); start += maxInArgs {
		end := min(start+maxInArgs, len(entityIDs))
		chunk := entityIDs[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := as.db.QueryContext(ctx, `
			SELECT `+attributeColumns+`
			FROM attributes
			WHERE entity_id IN (`+placeholders(len(chunk))+`)
			ORDER BY entity_id, field_order, field_name`,
			args...)
		if err != nil {
			return nil, errors.WithOp(errors.WrapStore(err, "failed to get fields"), "get fields for", "", "", "")
		}

		for rows.Next() {
			a, err := scanAttribute(rows)
			if err != nil {
				rows.Close()
				return nil, errors.WrapStore(err, "failed to scan attribute")
			}
			out[a.EntityID] = append(out[a.EntityID], *a)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.WrapStore(err, "failed to iterate attributes")
		}
	}

	return out, nil
}

// BulkSet upserts several fields one at a time in sorted name order.
// It is not atomic: on failure the fields already written stay committed and
// are returned alongside the error, which names the failing field.
func (as *AttributeStore) BulkSet(ctx context.Context, entityID string, values map[string]string, opts ...FieldOption) ([]types.Attribute, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]types.Attribute, 0, len(names))
	for _, name := range names {
		a, _, err := as.SetField(ctx, entityID, name, values[name], opts...)
		if err != nil {
			return written, errors.Wrapf(err, "bulk set stopped at field %q after %d writes", name, len(written))
		}
		written = append(written, *a)
	}
	return written, nil
}

// DeleteField removes one attribute row
func (as *AttributeStore) DeleteField(ctx context.Context, entityID, name string) error {
	res, err := as.db.ExecContext(ctx,
		`DELETE FROM attributes WHERE entity_id = ? AND field_name = ?`, entityID, name)
	if err != nil {
		return errors.WithOp(errors.WrapStore(err, "failed to delete field"), "delete field", "", entityID, name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStore(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.WithOp(errors.NewNotFoundError("field %s not found", name), "delete field", "", entityID, name)
	}
	return nil
}

// scanAttribute scans a single row into an Attribute
func scanAttribute(row rowScanner) (*types.Attribute, error) {
	var a types.Attribute
	var kind, rules, createdAt, updatedAt string
	var required int

	if err := row.Scan(&a.ID, &a.EntityID, &a.TenantID, &a.Name, &a.Value, &kind, &rules,
		&required, &a.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.Kind = types.Kind(kind)
	a.Required = required == 1
	if rules != "" {
		if err := json.Unmarshal([]byte(rules), &a.Rules); err != nil {
			return nil, errors.Wrapf(err, "failed to decode validation rules for %s", a.Name)
		}
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &a, nil
}

// Increment adds delta to a numeric attribute and returns the new value.
// A missing attribute starts from zero. The read and write share one transaction.
func (as *AttributeStore) Increment(ctx context.Context, entityID, name string, delta int64) (int64, error) {
	tx, err := as.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.WithOp(errors.WrapStore(err, "failed to begin transaction"), "increment field", "", entityID, name)
	}
	defer tx.Rollback() // Rollback if not committed

	ref, err := lookupEntity(ctx, tx, entityID)
	if err == sql.ErrNoRows {
		return 0, errors.WithOp(errors.NewNotFoundError("entity %s not found", entityID), "increment field", "", entityID, name)
	}
	if err != nil {
		return 0, errors.WithOp(errors.WrapStore(err, "failed to look up entity"), "increment field", "", entityID, name)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+attributeColumns+` FROM attributes WHERE entity_id = ? AND field_name = ?`,
		entityID, name)
	existing, err := scanAttribute(row)
	if err != nil && err != sql.ErrNoRows {
		return 0, errors.WithOp(errors.WrapStore(err, "failed to read attribute"), "increment field", ref.TenantID, entityID, name)
	}

	var current int64
	if existing != nil {
		v, err := existing.Typed()
		if err != nil || v.Kind != types.KindNumber {
			return 0, errors.WithOp(errors.NewValidationError("field %s is not numeric", name), "increment field", ref.TenantID, entityID, name)
		}
		current = int64(v.Number)
	}

	next := current + delta
	value := strconv.FormatInt(next, 10)
	rules, err := json.Marshal(attrs.Rules(name, value, types.KindNumber, false))
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal validation rules")
	}
	ts := formatTime(now())

	if existing == nil {
		var maxOrder int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(field_order), 0) FROM attributes WHERE entity_id = ?`, entityID).Scan(&maxOrder); err != nil {
			return 0, errors.WithOp(errors.WrapStore(err, "failed to read field order"), "increment field", ref.TenantID, entityID, name)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attributes (`+attributeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			uuid.New().String(), entityID, ref.TenantID, name, value, string(types.KindNumber), string(rules),
			maxOrder+1, ts, ts)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE attributes SET value = ?, validation_rules = ?, updated_at = ? WHERE id = ?`,
			value, string(rules), ts, existing.ID)
	}
	if err != nil {
		return 0, errors.WithOp(errors.WrapStore(err, "failed to write attribute"), "increment field", ref.TenantID, entityID, name)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.WithOp(errors.WrapStore(err, "failed to commit transaction"), "increment field", ref.TenantID, entityID, name)
	}
	return next, nil
}
