package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/types"
)

const relationshipColumns = `id, tenant_id, link_type, parent_id, child_id, payload, active, created_at, updated_at`

// RelationshipStore handles typed links between entities.
// Links are resolved by equality filters; the store enforces no foreign keys,
// so tenant agreement of both endpoints is checked here on every write.
type RelationshipStore struct {
	db      *sql.DB
	logger  *zap.SugaredLogger
	limiter *rate.Limiter
}

// RelationshipOption configures a RelationshipStore
type RelationshipOption func(*RelationshipStore)

// WithSweepRate throttles orphan-sweep lookups to perSecond checks. Zero or less disables throttling.
func WithSweepRate(perSecond float64) RelationshipOption {
	return func(rs *RelationshipStore) {
		if perSecond > 0 {
			rs.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
		} else {
			rs.limiter = nil
		}
	}
}

// NewRelationshipStore creates a new relationship storage instance
func NewRelationshipStore(db *sql.DB, log *zap.SugaredLogger, opts ...RelationshipOption) *RelationshipStore {
	rs := &RelationshipStore{
		db:     db,
		logger: logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Link creates a relationship between two existing, active entities of tenantID
func (rs *RelationshipStore) Link(ctx context.Context, tenantID, linkType, parentID, childID string, payload json.RawMessage) (*types.Relationship, error) {
	tenantID = strings.TrimSpace(tenantID)
	linkType = strings.TrimSpace(linkType)

	if tenantID == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}
	if linkType == "" {
		return nil, errors.NewValidationError("relationship type cannot be empty")
	}
	if parentID == "" || childID == "" {
		return nil, errors.NewValidationError("relationship endpoints cannot be empty")
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, errors.WithOp(errors.NewValidationError("relationship payload is not valid JSON"), "link", tenantID, parentID, "payload")
	}

	for _, id := range []string{parentID, childID} {
		ref, err := lookupEntity(ctx, rs.db, id)
		if err == sql.ErrNoRows {
			return nil, errors.WithOp(errors.NewNotFoundError("entity %s not found", id), "link", tenantID, id, "")
		}
		if err != nil {
			return nil, errors.WithOp(errors.WrapStore(err, "failed to look up endpoint"), "link", tenantID, id, "")
		}
		if ref.TenantID != tenantID {
			return nil, errors.WithOp(
				errors.NewTenantMismatchError("entity %s does not belong to tenant %s", id, tenantID),
				"link", tenantID, id, "")
		}
		if !ref.Active {
			return nil, errors.WithOp(errors.NewValidationError("entity %s is inactive", id), "link", tenantID, id, "")
		}
	}

	ts := now()
	r := &types.Relationship{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Type:      linkType,
		ParentID:  parentID,
		ChildID:   childID,
		Payload:   payload,
		Active:    true,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	var payloadArg any
	if len(payload) > 0 {
		payloadArg = string(payload)
	}

	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		r.ID, r.TenantID, r.Type, r.ParentID, r.ChildID, payloadArg, formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to insert relationship"), "link", tenantID, parentID, "")
	}

	rs.logger.Debugw("Linked entities",
		logger.FieldTenantID, tenantID,
		logger.FieldLinkType, linkType,
		"parent_id", parentID,
		"child_id", childID,
	)

	return r, nil
}

// Get returns a relationship by id
func (rs *RelationshipStore) Get(ctx context.Context, id string) (*types.Relationship, error) {
	row := rs.db.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE id = ?`, id)
	r, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("relationship %s not found", id)
	}
	if err != nil {
		return nil, errors.WrapStore(err, "failed to get relationship")
	}
	return r, nil
}

// Resolve returns the distinct child ids linked from parentID by linkType,
// filtered to the parent's tenant. An empty linkType matches every type.
func (rs *RelationshipStore) Resolve(ctx context.Context, parentID, linkType string) ([]string, error) {
	return rs.resolve(ctx, parentID, linkType, "parent_id", "child_id")
}

// ResolveParents returns the distinct parent ids linking to childID by linkType
func (rs *RelationshipStore) ResolveParents(ctx context.Context, childID, linkType string) ([]string, error) {
	return rs.resolve(ctx, childID, linkType, "child_id", "parent_id")
}

func (rs *RelationshipStore) resolve(ctx context.Context, id, linkType, fromCol, toCol string) ([]string, error) {
	ref, err := lookupEntity(ctx, rs.db, id)
	if err == sql.ErrNoRows {
		return nil, errors.WithOp(errors.NewNotFoundError("entity %s not found", id), "resolve", "", id, "")
	}
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to look up entity"), "resolve", "", id, "")
	}

	query := `SELECT ` + toCol + ` FROM relationships WHERE tenant_id = ? AND ` + fromCol + ` = ? AND active = 1`
	args := []any{ref.TenantID, id}
	if linkType != "" {
		query += ` AND link_type = ?`
		args = append(args, linkType)
	}
	query += ` GROUP BY ` + toCol + ` ORDER BY MIN(rowid)`

	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to resolve relationships"), "resolve", ref.TenantID, id, "")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return nil, errors.WrapStore(err, "failed to scan relationship endpoint")
		}
		ids = append(ids, other)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "failed to iterate relationships")
	}
	return ids, nil
}

// Links returns every active relationship of tenantID touching entityID
func (rs *RelationshipStore) Links(ctx context.Context, tenantID, entityID string) ([]types.Relationship, error) {
	rows, err := rs.db.QueryContext(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE tenant_id = ? AND (parent_id = ? OR child_id = ?) AND active = 1
		ORDER BY created_at, rowid`,
		tenantID, entityID, entityID)
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to list relationships"), "links", tenantID, entityID, "")
	}
	defer rows.Close()

	links := []types.Relationship{}
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, errors.WrapStore(err, "failed to scan relationship")
		}
		links = append(links, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "failed to iterate relationships")
	}
	return links, nil
}

// Unlink deactivates a relationship. The row is kept.
func (rs *RelationshipStore) Unlink(ctx context.Context, id string) error {
	res, err := rs.db.ExecContext(ctx,
		`UPDATE relationships SET active = 0, updated_at = ? WHERE id = ?`,
		formatTime(now()), id)
	if err != nil {
		return errors.WrapStore(err, "failed to unlink")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStore(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.NewNotFoundError("relationship %s not found", id)
	}
	return nil
}

// scanRelationship scans a single row into a Relationship
func scanRelationship(row rowScanner) (*types.Relationship, error) {
	var r types.Relationship
	var payload sql.NullString
	var active int
	var createdAt, updatedAt string

	if err := row.Scan(&r.ID, &r.TenantID, &r.Type, &r.ParentID, &r.ChildID, &payload, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if payload.Valid && payload.String != "" {
		r.Payload = json.RawMessage(payload.String)
	}
	r.Active = active == 1

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &r, nil
}
