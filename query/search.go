// Package query searches a tenant's entities by type, text, dynamic attribute
// filters and relationships.
//
// Candidates are read from the entity registry and equi-joined with their
// attributes by entity id; attribute filters are evaluated in process on the
// decoded values. No cursor is kept: pages are offsets over the current state.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/types"
)

// Default page sizes
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Entities is the subset of the entity registry search reads
type Entities interface {
	Get(ctx context.Context, id string) (*types.Entity, error)
	List(ctx context.Context, opts types.ListOptions) ([]*types.Entity, error)
}

// Attributes is the subset of the attribute store search reads
type Attributes interface {
	GetFieldsFor(ctx context.Context, entityIDs []string) (map[string][]types.Attribute, error)
}

// Relations is the subset of the relationship index search reads
type Relations interface {
	Resolve(ctx context.Context, parentID, linkType string) ([]string, error)
	ResolveParents(ctx context.Context, childID, linkType string) ([]string, error)
}

// Limits bound page sizes
type Limits struct {
	Default int
	Max     int
}

// Service runs searches
type Service struct {
	entities   Entities
	attributes Attributes
	relations  Relations
	limits     Limits
	logger     *zap.SugaredLogger
}

// NewService creates a search service. Zero limits fall back to the defaults.
func NewService(entities Entities, attributes Attributes, relations Relations, limits Limits, log *zap.SugaredLogger) *Service {
	if limits.Max <= 0 {
		limits.Max = MaxLimit
	}
	if limits.Default <= 0 {
		limits.Default = DefaultLimit
	}
	if limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return &Service{
		entities:   entities,
		attributes: attributes,
		relations:  relations,
		limits:     limits,
		logger:     logger.OrNop(log),
	}
}

// Search returns one page of a tenant's matching entities
func (s *Service) Search(ctx context.Context, tenantID string, req Request) (*Result, error) {
	start := time.Now()

	limit, err := s.validate(tenantID, req)
	if err != nil {
		return nil, errors.WithOp(err, "search", tenantID, "", "")
	}

	opts := types.ListOptions{
		TenantID:        tenantID,
		Type:            req.Type,
		IncludeInactive: req.IncludeInactive,
	}
	if req.Related != nil {
		ids, err := s.related(ctx, tenantID, *req.Related)
		if err != nil {
			return nil, errors.WithOp(err, "search", tenantID, req.Related.EntityID, "")
		}
		opts.IDs = ids
	}

	entities, err := s.entities.List(ctx, opts)
	if err != nil {
		return nil, errors.WithOp(err, "search", tenantID, "", "")
	}

	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	fields, err := s.attributes.GetFieldsFor(ctx, ids)
	if err != nil {
		return nil, errors.WithOp(err, "search", tenantID, "", "")
	}

	text := strings.TrimSpace(req.Text)
	matched := make([]Record, 0, len(entities))
	for _, e := range entities {
		rec := Record{Entity: e, Fields: fields[e.ID]}
		if rec.Fields == nil {
			rec.Fields = []types.Attribute{}
		}
		if text != "" && !matchesText(rec, text) {
			continue
		}
		if !matchesAll(rec, req.Filters) {
			continue
		}
		matched = append(matched, rec)
	}

	sortRecords(matched, req.Sort)

	result := &Result{
		Records: []Record{},
		Total:   len(matched),
		Offset:  req.Page.Offset,
		Limit:   limit,
	}
	if req.Page.Offset < len(matched) {
		end := min(req.Page.Offset+limit, len(matched))
		result.Records = matched[req.Page.Offset:end]
	}

	s.logger.Debugw("Search complete",
		logger.FieldTenantID, tenantID,
		logger.FieldEntityType, req.Type,
		logger.FieldCount, len(result.Records),
		logger.FieldTotalCount, result.Total,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	return result, nil
}

// validate checks a request and returns the effective page limit
func (s *Service) validate(tenantID string, req Request) (int, error) {
	if tenantID == "" {
		return 0, errors.NewValidationError("tenant id cannot be empty")
	}
	if req.Page.Offset < 0 {
		return 0, errors.NewValidationError("offset cannot be negative, got %d", req.Page.Offset)
	}
	if req.Page.Limit < 0 {
		return 0, errors.NewValidationError("limit cannot be negative, got %d", req.Page.Limit)
	}
	for _, f := range req.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return 0, errors.NewValidationError("filter field cannot be empty")
		}
		if !f.Op.Valid() {
			err := errors.NewValidationError("unknown filter op %q on field %s", f.Op, f.Field)
			return 0, errors.WithHint(err, "use one of eq, neq, gt, gte, lt, lte, contains, exists")
		}
	}
	if r := req.Related; r != nil {
		if r.EntityID == "" {
			return 0, errors.NewValidationError("related entity id cannot be empty")
		}
		switch r.Direction {
		case "", DirectionChildren, DirectionParents:
		default:
			return 0, errors.NewValidationError("unknown relationship direction %q", r.Direction)
		}
	}

	limit := req.Page.Limit
	if limit == 0 {
		limit = s.limits.Default
	}
	return min(limit, s.limits.Max), nil
}

// related resolves the ids linked to r.EntityID within the tenant
func (s *Service) related(ctx context.Context, tenantID string, r Related) ([]string, error) {
	anchor, err := s.entities.Get(ctx, r.EntityID)
	if err != nil {
		return nil, err
	}
	if anchor.TenantID != tenantID {
		return nil, errors.NewNotFoundError("entity %s not found", r.EntityID)
	}

	var ids []string
	if r.Direction == DirectionParents {
		ids, err = s.relations.ResolveParents(ctx, r.EntityID, r.Type)
	} else {
		ids, err = s.relations.Resolve(ctx, r.EntityID, r.Type)
	}
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func matchesAll(rec Record, filters []Filter) bool {
	for _, f := range filters {
		if !matches(rec, f) {
			return false
		}
	}
	return true
}

// sortRecords orders records in place. Records missing a sort field go last;
// ties fall back to creation order.
func sortRecords(recs []Record, by Sort) {
	field := by.Field
	if field == "" {
		field = "created_at"
	}

	columnCompare := func(a, b Record) (int, bool) {
		switch field {
		case "name":
			return strings.Compare(a.Entity.Name, b.Entity.Name), true
		case "code":
			return strings.Compare(a.Entity.Code, b.Entity.Code), true
		case "created_at":
			return a.Entity.CreatedAt.Compare(b.Entity.CreatedAt), true
		case "updated_at":
			return a.Entity.UpdatedAt.Compare(b.Entity.UpdatedAt), true
		}
		return 0, false
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]

		c, builtin := columnCompare(a, b)
		if !builtin {
			fa, okA := a.Field(field)
			fb, okB := b.Field(field)
			switch {
			case okA && !okB:
				return true
			case !okA:
				return false
			}
			va, vb := decodeStored(fa), decodeStored(fb)
			var ok bool
			if c, ok = compareValues(va, vb); !ok {
				c = strings.Compare(fa.Value, fb.Value)
			}
		}

		if c != 0 {
			if by.Desc {
				return c > 0
			}
			return c < 0
		}
		return a.Entity.CreatedAt.Before(b.Entity.CreatedAt)
	})
}
