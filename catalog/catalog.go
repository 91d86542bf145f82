// Package catalog tracks the entity-type shapes each tenant has registered
// and scores proposed types against them to discourage near-duplicates.
//
// Definitions are persisted as reserved "_schema" entities (code = entity type)
// whose attributes hold the field list, keywords and usage counter. Reads go
// through an injected TTL cache; registration writes through synchronously, so
// a just-registered type is never reported absent. Usage counters may lag by
// up to the cache TTL.
package catalog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/strata/cache"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/storage"
	"github.com/teranos/strata/types"
)

// winnerReadAttempts bounds how long a losing registration waits for the winner's attributes
const (
	winnerReadAttempts = 5
	winnerReadBackoff  = 10 * time.Millisecond
)

// EntityStore is the subset of the entity registry the catalog needs
type EntityStore interface {
	Create(ctx context.Context, tenantID, entityType, name, code string) (*types.Entity, error)
	GetByCode(ctx context.Context, tenantID, entityType, code string) (*types.Entity, error)
	List(ctx context.Context, opts types.ListOptions) ([]*types.Entity, error)
}

// AttributeStore is the subset of the attribute store the catalog needs
type AttributeStore interface {
	SetField(ctx context.Context, entityID, name, value string, opts ...storage.FieldOption) (*types.Attribute, bool, error)
	GetFields(ctx context.Context, entityID string) ([]types.Attribute, error)
	GetFieldsFor(ctx context.Context, entityIDs []string) (map[string][]types.Attribute, error)
	Increment(ctx context.Context, entityID, name string, delta int64) (int64, error)
}

// Cache holds schema definitions keyed by tenant and type
type Cache = cache.Cache[types.SchemaDefinition]

// Catalog is the schema registry and similarity engine
type Catalog struct {
	entities   EntityStore
	attributes AttributeStore
	cache      Cache
	scorer     scorer
	logger     *zap.SugaredLogger
}

// New creates a catalog. A nil cache uses an in-memory cache with the default TTL.
func New(entities EntityStore, attributes AttributeStore, c Cache, policy Policy, log *zap.SugaredLogger) *Catalog {
	if c == nil {
		c = cache.NewMemory[types.SchemaDefinition](cache.DefaultTTL, nil)
	}
	return &Catalog{
		entities:   entities,
		attributes: attributes,
		cache:      c,
		scorer:     scorer{policy: policy},
		logger:     logger.OrNop(log),
	}
}

// Policy returns the similarity policy in use
func (c *Catalog) Policy() Policy {
	return c.scorer.policy
}

func cacheKey(tenantID, entityType string) string {
	return cache.Key("schema", tenantID, entityType)
}

// RegisterSchema records entityType for a tenant. It is idempotent: when the type
// is already registered the stored definition is returned unchanged and registered
// is false. A concurrent registration that loses the insert race returns the winner.
func (c *Catalog) RegisterSchema(ctx context.Context, tenantID, entityType, name string, def types.Definition, aiGenerated bool) (*types.SchemaDefinition, bool, error) {
	tenantID = strings.TrimSpace(tenantID)
	entityType = strings.TrimSpace(entityType)
	name = strings.TrimSpace(name)

	if tenantID == "" {
		return nil, false, errors.NewValidationError("tenant id cannot be empty")
	}
	if err := storage.ValidateEntityType(entityType); err != nil {
		return nil, false, err
	}
	if types.IsReservedType(entityType) {
		return nil, false, errors.NewValidationError("entity type %q is reserved", entityType)
	}
	if name == "" {
		name = entityType
	}

	normalized, err := normalizeDefinition(entityType, name, def)
	if err != nil {
		return nil, false, errors.WithOp(err, "register schema", tenantID, "", "")
	}

	// Check the store, not the cache: existence must never be stale
	if existing, err := c.load(ctx, tenantID, entityType); err == nil {
		c.store(ctx, existing)
		return existing, false, nil
	} else if !errors.IsNotFoundError(err) {
		return nil, false, err
	}

	e, err := c.entities.Create(ctx, tenantID, types.SchemaEntityType, name, entityType)
	if errors.IsConflictError(err) {
		winner, err := c.awaitWinner(ctx, tenantID, entityType)
		if err != nil {
			return nil, false, err
		}
		c.logger.Debugw("Schema registration lost race, returning winner",
			logger.FieldTenantID, tenantID,
			logger.FieldEntityType, entityType,
		)
		c.store(ctx, winner)
		return winner, false, nil
	}
	if err != nil {
		return nil, false, errors.WithOp(err, "register schema", tenantID, "", "")
	}

	encoded := encodeDefinition(entityType, normalized, aiGenerated)
	written := make([]types.Attribute, 0, len(encoded))
	for _, f := range encoded {
		a, _, err := c.attributes.SetField(ctx, e.ID, f.name, f.value, storage.WithKind(f.kind))
		if err != nil {
			return nil, false, errors.WithOp(err, "register schema", tenantID, e.ID, f.name)
		}
		written = append(written, *a)
	}

	registered := decodeDefinition(e, written)
	c.store(ctx, &registered)

	c.logger.Infow("Registered schema",
		logger.FieldTenantID, tenantID,
		logger.FieldEntityType, entityType,
		"fields", len(registered.Fields),
		"ai_generated", aiGenerated,
	)

	return &registered, true, nil
}

// awaitWinner re-reads a schema whose registration another caller won,
// waiting briefly for the winner's field list to land
func (c *Catalog) awaitWinner(ctx context.Context, tenantID, entityType string) (*types.SchemaDefinition, error) {
	var def *types.SchemaDefinition
	var err error
	for i := 0; i < winnerReadAttempts; i++ {
		def, err = c.load(ctx, tenantID, entityType)
		if err == nil && !def.Malformed {
			return def, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "waiting for concurrent schema registration")
		case <-time.After(winnerReadBackoff):
		}
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

// GetSchema returns a tenant's definition of entityType, reading through the cache.
// Absence is never cached.
func (c *Catalog) GetSchema(ctx context.Context, tenantID, entityType string) (*types.SchemaDefinition, error) {
	if tenantID == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}

	key := cacheKey(tenantID, entityType)
	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warnw("Schema cache read failed, falling back to store",
			logger.FieldTenantID, tenantID,
			logger.FieldEntityType, entityType,
			logger.FieldError, err,
		)
	}
	if ok {
		def := cached.Clone()
		return &def, nil
	}

	def, err := c.load(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}
	c.store(ctx, def)
	return def, nil
}

// ListSchemas returns every definition registered by a tenant, ordered by registration.
// The results refresh the cache.
func (c *Catalog) ListSchemas(ctx context.Context, tenantID string) ([]types.SchemaDefinition, error) {
	if tenantID == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}

	entities, err := c.entities.List(ctx, types.ListOptions{
		TenantID: tenantID,
		Type:     types.SchemaEntityType,
	})
	if err != nil {
		return nil, errors.WithOp(err, "list schemas", tenantID, "", "")
	}
	if len(entities) == 0 {
		return []types.SchemaDefinition{}, nil
	}

	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	fields, err := c.attributes.GetFieldsFor(ctx, ids)
	if err != nil {
		return nil, errors.WithOp(err, "list schemas", tenantID, "", "")
	}

	defs := make([]types.SchemaDefinition, 0, len(entities))
	for _, e := range entities {
		def := decodeDefinition(e, fields[e.ID])
		c.store(ctx, &def)
		defs = append(defs, def)
	}
	return defs, nil
}

// RecordUsage adds delta to a schema's usage counter. The cache is not invalidated,
// so cached counters may lag by up to the TTL.
func (c *Catalog) RecordUsage(ctx context.Context, tenantID, entityType string, delta int64) (int64, error) {
	e, err := c.entities.GetByCode(ctx, tenantID, types.SchemaEntityType, entityType)
	if err != nil {
		return 0, errors.WithOp(err, "record usage", tenantID, "", "")
	}
	n, err := c.attributes.Increment(ctx, e.ID, attrUsageCount, delta)
	if err != nil {
		return 0, errors.WithOp(err, "record usage", tenantID, e.ID, attrUsageCount)
	}
	return n, nil
}

// InvalidateSchema drops a cached definition
func (c *Catalog) InvalidateSchema(ctx context.Context, tenantID, entityType string) error {
	if err := c.cache.Delete(ctx, cacheKey(tenantID, entityType)); err != nil {
		return errors.Wrapf(err, "failed to invalidate schema %s/%s", tenantID, entityType)
	}
	return nil
}

// FindSimilar ranks a tenant's schemas against a proposed type. It never fails:
// store errors are logged and produce an empty list, and malformed definitions
// stay listed with zero field overlap.
func (c *Catalog) FindSimilar(ctx context.Context, tenantID string, req types.SimilarityRequest) []types.SimilarityResult {
	results := []types.SimilarityResult{}
	if tenantID == "" {
		c.logger.Warnw("Similarity search without tenant")
		return results
	}

	defs, err := c.ListSchemas(ctx, tenantID)
	if err != nil {
		c.logger.Errorw("Similarity search could not list schemas",
			logger.FieldTenantID, tenantID,
			logger.FieldError, err,
			logger.FieldErrorKind, errors.Kind(err),
		)
		return results
	}

	for _, def := range defs {
		r := c.scorer.score(def, req)
		if r.Score <= 0 && !r.Malformed {
			continue
		}
		results = append(results, r)
	}

	results = rank(results, c.scorer.policy.MaxResults)

	if len(results) > 0 {
		c.logger.Debugw("Similarity search complete",
			logger.FieldTenantID, tenantID,
			logger.FieldCount, len(results),
			logger.FieldEntityType, results[0].EntityType,
			logger.FieldScore, results[0].Score,
		)
	}
	return results
}

// load reads a definition from the store
func (c *Catalog) load(ctx context.Context, tenantID, entityType string) (*types.SchemaDefinition, error) {
	e, err := c.entities.GetByCode(ctx, tenantID, types.SchemaEntityType, entityType)
	if errors.IsNotFoundError(err) {
		return nil, errors.WithOp(errors.NewNotFoundError("schema %s not registered", entityType), "get schema", tenantID, "", "")
	}
	if err != nil {
		return nil, errors.WithOp(err, "get schema", tenantID, "", "")
	}

	fields, err := c.attributes.GetFields(ctx, e.ID)
	if err != nil {
		return nil, errors.WithOp(err, "get schema", tenantID, e.ID, "")
	}

	def := decodeDefinition(e, fields)
	return &def, nil
}

// store writes a definition to the cache; failures are logged, never returned
func (c *Catalog) store(ctx context.Context, def *types.SchemaDefinition) {
	if err := c.cache.Set(ctx, cacheKey(def.TenantID, def.EntityType), def.Clone()); err != nil {
		c.logger.Warnw("Schema cache write failed",
			logger.FieldTenantID, def.TenantID,
			logger.FieldEntityType, def.EntityType,
			logger.FieldError, err,
		)
	}
}

// normalizeDefinition cleans field names and kinds and fills in missing keywords
func normalizeDefinition(entityType, name string, def types.Definition) (types.Definition, error) {
	out := types.Definition{
		Domain:      strings.TrimSpace(def.Domain),
		Description: strings.TrimSpace(def.Description),
		Confidence:  def.Confidence,
		Fields:      make([]types.FieldSpec, 0, len(def.Fields)),
	}

	if out.Confidence < 0 || out.Confidence > 1 {
		return out, errors.NewValidationError("confidence must be between 0 and 1, got %v", def.Confidence)
	}

	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		fieldName := NormalizeFieldName(f.Name)
		if fieldName == "" {
			return out, errors.NewValidationError("schema field name cannot be empty")
		}
		if seen[fieldName] {
			continue
		}
		seen[fieldName] = true

		kind := types.Kind(strings.ToLower(string(f.Kind)))
		if kind == "" {
			kind = types.KindText
		}
		if !kind.Valid() {
			return out, errors.NewValidationError("field %s has unknown kind %q", fieldName, f.Kind)
		}
		out.Fields = append(out.Fields, types.FieldSpec{Name: fieldName, Kind: kind, Required: f.Required})
	}

	keywords := def.Keywords
	if len(keywords) == 0 {
		keywords = deriveKeywords(entityType, name, out.Domain)
	}
	out.Keywords = ExtractKeywords(strings.Join(keywords, " "))

	return out, nil
}
