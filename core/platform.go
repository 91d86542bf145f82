// Package core wires strata's components into one tenant-scoped platform.
//
// The stores underneath are keyed by entity id; Platform checks that every
// id a caller names belongs to the caller's tenant, and reports entities of
// other tenants as not found.
package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/attrs"
	"github.com/teranos/strata/cache"
	"github.com/teranos/strata/catalog"
	"github.com/teranos/strata/db"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/query"
	"github.com/teranos/strata/storage"
	"github.com/teranos/strata/types"
)

// Platform is the strata facade used by the CLI and the MCP server
type Platform struct {
	DB         *sql.DB
	Entities   *storage.EntityStore
	Attributes *storage.AttributeStore
	Relations  *storage.RelationshipStore
	Catalog    *catalog.Catalog
	Search     *query.Service

	cfg     *am.Config
	logger  *zap.SugaredLogger
	closers []func() error
}

// Open opens the configured database, runs migrations and builds the platform
func Open(ctx context.Context, cfg *am.Config, log *zap.SugaredLogger) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	conn, err := db.OpenWithMigrations(cfg.GetDatabasePath(), log)
	if err != nil {
		return nil, err
	}

	p, err := New(ctx, conn, cfg, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.closers = append(p.closers, conn.Close)
	return p, nil
}

// New builds a platform over an already migrated database. The caller keeps
// ownership of conn.
func New(ctx context.Context, conn *sql.DB, cfg *am.Config, log *zap.SugaredLogger) (*Platform, error) {
	log = logger.OrNop(log)

	policy := PolicyFromConfig(cfg.Similarity)
	if err := policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid similarity policy")
	}

	p := &Platform{DB: conn, cfg: cfg, logger: log.Named("core")}

	schemaCache, err := p.openCache(ctx)
	if err != nil {
		return nil, err
	}

	p.Entities = storage.NewEntityStore(conn, log.Named("entities"))
	p.Attributes = storage.NewAttributeStore(conn, log.Named("attributes"))
	p.Relations = storage.NewRelationshipStore(conn, log.Named("relations"),
		storage.WithSweepRate(cfg.Sweep.MaxChecksPerSecond))
	p.Catalog = catalog.New(p.Entities, p.Attributes, schemaCache, policy, log.Named("catalog"))
	p.Search = query.NewService(p.Entities, p.Attributes, p.Relations, query.Limits{
		Default: cfg.Search.DefaultLimit,
		Max:     cfg.Search.MaxLimit,
	}, log.Named("search"))

	return p, nil
}

// openCache builds the configured schema cache backend
func (p *Platform) openCache(ctx context.Context) (catalog.Cache, error) {
	ttl := p.cfg.CacheTTL()

	if p.cfg.Cache.Backend != am.CacheBackendRedis {
		return cache.NewMemory[types.SchemaDefinition](ttl, nil), nil
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     p.cfg.Cache.Redis.Addr,
		Password: p.cfg.Cache.Redis.Password,
		DB:       p.cfg.Cache.Redis.DB,
	})
	if err != nil {
		return nil, errors.WithHint(err, "set cache.backend = \"memory\" to run without redis")
	}
	p.closers = append(p.closers, client.Close)

	p.logger.Infow("Using redis schema cache",
		logger.FieldAddress, p.cfg.Cache.Redis.Addr,
		"ttl", ttl.String(),
	)
	return cache.NewRedis[types.SchemaDefinition](client, p.cfg.GetRedisPrefix(), ttl), nil
}

// PolicyFromConfig converts the similarity settings into a catalog policy
func PolicyFromConfig(s am.SimilarityConfig) catalog.Policy {
	return catalog.Policy{
		Weights: catalog.Weights{
			Type:    s.TypeWeight,
			Keyword: s.KeywordWeight,
			Field:   s.FieldWeight,
		},
		UseExistingThreshold: s.UseExistingThreshold,
		VariantThreshold:     s.VariantThreshold,
		MaxResults:           s.MaxResults,
	}
}

// Config returns the configuration the platform was built from
func (p *Platform) Config() *am.Config {
	return p.cfg
}

// Close releases the cache client and the database, in reverse order of opening
func (p *Platform) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	p.closers = nil
	return errs
}

// owned returns the entity id names if it belongs to tenantID
func (p *Platform) owned(ctx context.Context, tenantID, id string) (*types.Entity, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}
	e, err := p.Entities.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.TenantID != tenantID {
		return nil, errors.WithOp(errors.NewNotFoundError("entity %s not found", id), "get entity", tenantID, id, "")
	}
	return e, nil
}

// writable returns the entity id names if it belongs to tenantID and is not platform-managed
func (p *Platform) writable(ctx context.Context, op, tenantID, id string) (*types.Entity, error) {
	e, err := p.owned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if types.IsReservedType(e.Type) {
		return nil, errors.WithOp(reservedTypeError(e.Type), op, tenantID, id, "")
	}
	return e, nil
}

func reservedTypeError(entityType string) error {
	err := errors.NewValidationError("entity type %q is reserved", entityType)
	return errors.WithHint(err, "types starting with "+types.ReservedTypePrefix+" are managed by the platform")
}

// CreateEntity creates an entity of a user type. Reserved types are refused.
func (p *Platform) CreateEntity(ctx context.Context, tenantID, entityType, name, code string) (*types.Entity, error) {
	if types.IsReservedType(strings.TrimSpace(entityType)) {
		return nil, reservedTypeError(entityType)
	}
	return p.Entities.Create(ctx, tenantID, entityType, name, code)
}

// GetEntity returns one of the tenant's entities
func (p *Platform) GetEntity(ctx context.Context, tenantID, id string) (*types.Entity, error) {
	return p.owned(ctx, tenantID, id)
}

// UpdateEntity patches one of the tenant's entities. Reserved types are refused.
func (p *Platform) UpdateEntity(ctx context.Context, tenantID, id string, patch types.EntityPatch) (*types.Entity, error) {
	if _, err := p.writable(ctx, "update entity", tenantID, id); err != nil {
		return nil, err
	}
	return p.Entities.Update(ctx, id, patch)
}

// DeleteEntity soft-deletes one of the tenant's entities. Reserved types are refused.
func (p *Platform) DeleteEntity(ctx context.Context, tenantID, id string) error {
	if _, err := p.writable(ctx, "delete entity", tenantID, id); err != nil {
		return err
	}
	return p.Entities.SoftDelete(ctx, id)
}

// SetField writes one attribute. A newly created attribute counts as usage of
// the entity's registered schema. Entities of reserved types are refused.
func (p *Platform) SetField(ctx context.Context, tenantID, entityID, name, value string, opts ...storage.FieldOption) (*types.Attribute, bool, error) {
	e, err := p.writable(ctx, "set field", tenantID, entityID)
	if err != nil {
		return nil, false, err
	}

	a, created, err := p.Attributes.SetField(ctx, entityID, name, value, opts...)
	if err != nil {
		return nil, false, err
	}
	if created {
		p.recordUsage(ctx, e, 1)
	}
	return a, created, nil
}

// BulkSet writes several attributes in key order. Writes are not atomic: on
// failure the attributes already written are returned with the error.
func (p *Platform) BulkSet(ctx context.Context, tenantID, entityID string, values map[string]string, opts ...storage.FieldOption) ([]types.Attribute, error) {
	e, err := p.writable(ctx, "bulk set", tenantID, entityID)
	if err != nil {
		return nil, err
	}

	before, err := p.Attributes.GetFields(ctx, entityID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(before))
	for _, a := range before {
		existing[a.Name] = true
	}

	written, err := p.Attributes.BulkSet(ctx, entityID, values, opts...)

	var created int64
	for _, a := range written {
		if !existing[a.Name] {
			created++
		}
	}
	if created > 0 {
		p.recordUsage(ctx, e, created)
	}
	return written, err
}

// GetFields returns the attributes of one of the tenant's entities, including soft-deleted ones.
// Each attribute is re-validated; failures are reported in Attribute.Problem.
func (p *Platform) GetFields(ctx context.Context, tenantID, entityID string) ([]types.Attribute, error) {
	if _, err := p.owned(ctx, tenantID, entityID); err != nil {
		return nil, err
	}
	fields, err := p.Attributes.GetFields(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if err := attrs.Validate(fields[i]); err != nil {
			fields[i].Problem = err.Error()
			p.logger.Warnw("Stored attribute failed validation",
				logger.FieldTenantID, tenantID,
				logger.FieldEntityID, entityID,
				logger.FieldField, fields[i].Name,
				logger.FieldError, err,
			)
		}
	}
	return fields, nil
}

// DeleteField removes one attribute
func (p *Platform) DeleteField(ctx context.Context, tenantID, entityID, name string) error {
	if _, err := p.writable(ctx, "delete field", tenantID, entityID); err != nil {
		return err
	}
	return p.Attributes.DeleteField(ctx, entityID, name)
}

// recordUsage bumps the usage counter of e's schema. Types without a schema are skipped.
func (p *Platform) recordUsage(ctx context.Context, e *types.Entity, delta int64) {
	if _, err := p.Catalog.RecordUsage(ctx, e.TenantID, e.Type, delta); err != nil && !errors.IsNotFoundError(err) {
		p.logger.Warnw("Failed to record schema usage",
			logger.FieldTenantID, e.TenantID,
			logger.FieldEntityType, e.Type,
			logger.FieldError, err,
		)
	}
}

// Link connects two of the tenant's entities
func (p *Platform) Link(ctx context.Context, tenantID, linkType, parentID, childID string, payload json.RawMessage) (*types.Relationship, error) {
	return p.Relations.Link(ctx, tenantID, linkType, parentID, childID, payload)
}

// Resolve returns the children linked from one of the tenant's entities
func (p *Platform) Resolve(ctx context.Context, tenantID, parentID, linkType string) ([]string, error) {
	if _, err := p.owned(ctx, tenantID, parentID); err != nil {
		return nil, err
	}
	return p.Relations.Resolve(ctx, parentID, linkType)
}

// ResolveParents returns the parents linking to one of the tenant's entities
func (p *Platform) ResolveParents(ctx context.Context, tenantID, childID, linkType string) ([]string, error) {
	if _, err := p.owned(ctx, tenantID, childID); err != nil {
		return nil, err
	}
	return p.Relations.ResolveParents(ctx, childID, linkType)
}

// Links returns every active link touching one of the tenant's entities
func (p *Platform) Links(ctx context.Context, tenantID, entityID string) ([]types.Relationship, error) {
	if _, err := p.owned(ctx, tenantID, entityID); err != nil {
		return nil, err
	}
	return p.Relations.Links(ctx, tenantID, entityID)
}

// Unlink deactivates one of the tenant's links
func (p *Platform) Unlink(ctx context.Context, tenantID, linkID string) error {
	r, err := p.Relations.Get(ctx, linkID)
	if err != nil {
		return err
	}
	if r.TenantID != tenantID {
		return errors.WithOp(errors.NewNotFoundError("relationship %s not found", linkID), "unlink", tenantID, "", "")
	}
	return p.Relations.Unlink(ctx, linkID)
}

// SweepOrphans samples the tenant's attributes and links for dangling references.
// A sampleSize of zero uses sweep.sample_size.
func (p *Platform) SweepOrphans(ctx context.Context, tenantID string, sampleSize int) (*types.OrphanReport, error) {
	if sampleSize == 0 {
		sampleSize = p.cfg.GetSweepSampleSize()
	}
	return p.Relations.SweepOrphans(ctx, tenantID, sampleSize)
}

// RegisterSchema records an entity type in the tenant's catalog
func (p *Platform) RegisterSchema(ctx context.Context, tenantID, entityType, name string, def types.Definition, aiGenerated bool) (*types.SchemaDefinition, bool, error) {
	return p.Catalog.RegisterSchema(ctx, tenantID, entityType, name, def, aiGenerated)
}

// GetSchema returns one catalog entry
func (p *Platform) GetSchema(ctx context.Context, tenantID, entityType string) (*types.SchemaDefinition, error) {
	return p.Catalog.GetSchema(ctx, tenantID, entityType)
}

// ListSchemas returns the tenant's catalog
func (p *Platform) ListSchemas(ctx context.Context, tenantID string) ([]types.SchemaDefinition, error) {
	return p.Catalog.ListSchemas(ctx, tenantID)
}

// SchemaContext summarizes the tenant's catalog for a language model prompt
func (p *Platform) SchemaContext(ctx context.Context, tenantID string) (string, error) {
	return p.Catalog.GetAIContext(ctx, tenantID)
}

// FindSimilar ranks the tenant's schemas against a proposed type
func (p *Platform) FindSimilar(ctx context.Context, tenantID string, req types.SimilarityRequest) []types.SimilarityResult {
	return p.Catalog.FindSimilar(ctx, tenantID, req)
}

// Query runs a search over the tenant's entities
func (p *Platform) Query(ctx context.Context, tenantID string, req query.Request) (*query.Result, error) {
	return p.Search.Search(ctx, tenantID, req)
}
