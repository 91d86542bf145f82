package storage

import (
	"context"
	"database/sql"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/types"
)

// SweepOrphans samples up to sampleSize attribute rows and sampleSize relationship
// rows of a tenant and checks whether the entity ids they reference still resolve
// in the same tenant. It only counts; nothing is repaired.
func (rs *RelationshipStore) SweepOrphans(ctx context.Context, tenantID string, sampleSize int) (*types.OrphanReport, error) {
	if tenantID == "" {
		return nil, errors.NewValidationError("tenant id cannot be empty")
	}
	if sampleSize <= 0 {
		return nil, errors.NewValidationError("sample size must be positive, got %d", sampleSize)
	}

	report := &types.OrphanReport{TenantID: tenantID}
	seen := make(map[string]*entityRef)

	attrRefs, err := rs.sampleColumn(ctx, `
		SELECT entity_id FROM attributes
		WHERE tenant_id = ?
		ORDER BY RANDOM() LIMIT ?`, tenantID, sampleSize)
	if err != nil {
		return nil, errors.WithOp(err, "sweep orphans", tenantID, "", "")
	}
	report.AttributesSampled = len(attrRefs)

	for _, entityID := range attrRefs {
		ref, err := rs.checkEntity(ctx, seen, entityID)
		if err != nil {
			return nil, errors.WithOp(err, "sweep orphans", tenantID, entityID, "")
		}
		if ref == nil || ref.TenantID != tenantID {
			report.OrphanAttributes++
		}
	}

	rows, err := rs.db.QueryContext(ctx, `
		SELECT parent_id, child_id FROM relationships
		WHERE tenant_id = ?
		ORDER BY RANDOM() LIMIT ?`, tenantID, sampleSize)
	if err != nil {
		return nil, errors.WithOp(errors.WrapStore(err, "failed to sample relationships"), "sweep orphans", tenantID, "", "")
	}
	var links [][2]string
	for rows.Next() {
		var parentID, childID string
		if err := rows.Scan(&parentID, &childID); err != nil {
			rows.Close()
			return nil, errors.WrapStore(err, "failed to scan relationship sample")
		}
		links = append(links, [2]string{parentID, childID})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.WrapStore(err, "failed to iterate relationship sample")
	}
	report.LinksSampled = len(links)

	for _, link := range links {
		missing, foreign := false, false
		for _, id := range link {
			ref, err := rs.checkEntity(ctx, seen, id)
			if err != nil {
				return nil, errors.WithOp(err, "sweep orphans", tenantID, id, "")
			}
			switch {
			case ref == nil:
				missing = true
			case ref.TenantID != tenantID:
				foreign = true
			}
		}
		switch {
		case missing:
			report.OrphanLinks++
		case foreign:
			report.CrossTenantLinks++
		}
	}

	log := rs.logger.With(logger.FieldTenantID, tenantID, logger.FieldSampleSize, sampleSize)
	if report.Clean() {
		log.Debugw("Orphan sweep clean",
			"attributes_sampled", report.AttributesSampled,
			"links_sampled", report.LinksSampled,
		)
	} else {
		log.Warnw("Orphan sweep found dangling references",
			"orphan_attributes", report.OrphanAttributes,
			"orphan_links", report.OrphanLinks,
			"cross_tenant_links", report.CrossTenantLinks,
		)
	}

	return report, nil
}

// sampleColumn runs a single-column sampling query and collects the values
// so no rows stay open while endpoint lookups run
func (rs *RelationshipStore) sampleColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapStore(err, "failed to sample rows")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.WrapStore(err, "failed to scan sample")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "failed to iterate sample")
	}
	return out, nil
}

// checkEntity resolves an entity id once per sweep, waiting on the limiter for each new lookup.
// Returns nil when the entity does not exist.
func (rs *RelationshipStore) checkEntity(ctx context.Context, seen map[string]*entityRef, id string) (*entityRef, error) {
	if ref, ok := seen[id]; ok {
		return ref, nil
	}

	if rs.limiter != nil {
		if err := rs.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "sweep throttle")
		}
	}

	ref, err := lookupEntity(ctx, rs.db, id)
	if err == sql.ErrNoRows {
		seen[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapStore(err, "failed to look up entity")
	}
	seen[id] = ref
	return ref, nil
}
