package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/strata/errors"
)

func TestRelationshipStore_LinkAndResolve(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	order := s.mustEntity(t, "t1", "purchase_order", "PO 1")
	line1 := s.mustEntity(t, "t1", "line_item", "Bolts")
	line2 := s.mustEntity(t, "t1", "line_item", "Nuts")
	vendor := s.mustEntity(t, "t1", "vendor", "Acme")

	r, err := s.relations.Link(ctx, "t1", "contains", order.ID, line1.ID, json.RawMessage(`{"qty":10}`))
	require.NoError(t, err)
	assert.True(t, r.Active)
	assert.JSONEq(t, `{"qty":10}`, string(r.Payload))

	_, err = s.relations.Link(ctx, "t1", "contains", order.ID, line2.ID, nil)
	require.NoError(t, err)
	// Duplicate link: resolve still returns each child once
	_, err = s.relations.Link(ctx, "t1", "contains", order.ID, line1.ID, nil)
	require.NoError(t, err)
	_, err = s.relations.Link(ctx, "t1", "supplied_by", order.ID, vendor.ID, nil)
	require.NoError(t, err)

	children, err := s.relations.Resolve(ctx, order.ID, "contains")
	require.NoError(t, err)
	assert.Equal(t, []string{line1.ID, line2.ID}, children)

	all, err := s.relations.Resolve(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	parents, err := s.relations.ResolveParents(ctx, line2.ID, "contains")
	require.NoError(t, err)
	assert.Equal(t, []string{order.ID}, parents)

	none, err := s.relations.Resolve(ctx, line1.ID, "contains")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.relations.Resolve(ctx, "missing", "contains")
	assert.True(t, errors.IsNotFoundError(err))

	got, err := s.relations.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ParentID)
}

func TestRelationshipStore_TenantMismatch(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	a := s.mustEntity(t, "T1", "person", "A")
	b := s.mustEntity(t, "T1", "person", "B")
	c := s.mustEntity(t, "T2", "person", "C")

	_, err := s.relations.Link(ctx, "T1", "parent_of", a.ID, b.ID, nil)
	require.NoError(t, err)

	_, err = s.relations.Link(ctx, "T2", "parent_of", a.ID, b.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.IsTenantMismatchError(err))

	_, err = s.relations.Link(ctx, "T1", "parent_of", a.ID, c.ID, nil)
	assert.True(t, errors.IsTenantMismatchError(err), "cross-tenant endpoints are rejected")

	// The rejected links were never written
	children, err := s.relations.Resolve(ctx, a.ID, "parent_of")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, children)
}

func TestRelationshipStore_LinkValidation(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	a := s.mustEntity(t, "t1", "person", "A")
	b := s.mustEntity(t, "t1", "person", "B")

	_, err := s.relations.Link(ctx, "", "knows", a.ID, b.ID, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = s.relations.Link(ctx, "t1", "", a.ID, b.ID, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = s.relations.Link(ctx, "t1", "knows", a.ID, b.ID, json.RawMessage(`{broken`))
	assert.True(t, errors.IsValidationError(err))

	_, err = s.relations.Link(ctx, "t1", "knows", a.ID, "missing", nil)
	assert.True(t, errors.IsNotFoundError(err))

	require.NoError(t, s.entities.SoftDelete(ctx, b.ID))
	_, err = s.relations.Link(ctx, "t1", "knows", a.ID, b.ID, nil)
	assert.True(t, errors.IsValidationError(err), "inactive endpoints are rejected")
}

func TestRelationshipStore_LinksAndUnlink(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	a := s.mustEntity(t, "t1", "person", "A")
	b := s.mustEntity(t, "t1", "person", "B")
	c := s.mustEntity(t, "t1", "person", "C")

	ab, err := s.relations.Link(ctx, "t1", "knows", a.ID, b.ID, nil)
	require.NoError(t, err)
	_, err = s.relations.Link(ctx, "t1", "knows", c.ID, a.ID, nil)
	require.NoError(t, err)

	links, err := s.relations.Links(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	require.NoError(t, s.relations.Unlink(ctx, ab.ID))
	assert.True(t, errors.IsNotFoundError(s.relations.Unlink(ctx, "missing")))

	children, err := s.relations.Resolve(ctx, a.ID, "knows")
	require.NoError(t, err)
	assert.Empty(t, children)

	links, err = s.relations.Links(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	other, err := s.relations.Links(ctx, "t2", a.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}
