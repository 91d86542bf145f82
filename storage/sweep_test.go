package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/strata/errors"
)

func TestSweepOrphans_Clean(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	a := s.mustEntity(t, "t1", "person", "A")
	b := s.mustEntity(t, "t1", "person", "B")

	_, _, err := s.attrs.SetField(ctx, a.ID, "age", "30")
	require.NoError(t, err)
	_, err = s.relations.Link(ctx, "t1", "knows", a.ID, b.ID, nil)
	require.NoError(t, err)

	report, err := s.relations.SweepOrphans(ctx, "t1", 10)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.AttributesSampled)
	assert.Equal(t, 1, report.LinksSampled)
}

func TestSweepOrphans_CountsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	a := s.mustEntity(t, "t1", "person", "A")
	b := s.mustEntity(t, "t1", "person", "B")
	c := s.mustEntity(t, "t1", "person", "C")
	foreign := s.mustEntity(t, "t2", "person", "F")

	_, _, err := s.attrs.SetField(ctx, a.ID, "age", "30")
	require.NoError(t, err)
	_, _, err = s.attrs.SetField(ctx, b.ID, "age", "31")
	require.NoError(t, err)
	_, err = s.relations.Link(ctx, "t1", "knows", a.ID, b.ID, nil)
	require.NoError(t, err)
	_, err = s.relations.Link(ctx, "t1", "knows", a.ID, c.ID, nil)
	require.NoError(t, err)

	// Out-of-band damage the store cannot prevent
	_, err = s.db.Exec(`DELETE FROM entities WHERE id = ?`, b.ID)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE relationships SET child_id = ? WHERE child_id = ?`, foreign.ID, c.ID)
	require.NoError(t, err)

	report, err := s.relations.SweepOrphans(ctx, "t1", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, report.AttributesSampled)
	assert.Equal(t, 1, report.OrphanAttributes)
	assert.Equal(t, 2, report.LinksSampled)
	assert.Equal(t, 1, report.OrphanLinks)
	assert.Equal(t, 1, report.CrossTenantLinks)
	assert.False(t, report.Clean())

	// Nothing was repaired
	var remaining int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM attributes`).Scan(&remaining))
	assert.Equal(t, 2, remaining)
}

func TestSweepOrphans_SamplesAtMostSampleSize(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	e := s.mustEntity(t, "t1", "person", "A")

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, _, err := s.attrs.SetField(ctx, e.ID, name, "1")
		require.NoError(t, err)
	}

	report, err := s.relations.SweepOrphans(ctx, "t1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, report.AttributesSampled)
}

func TestSweepOrphans_Validation(t *testing.T) {
	s := newStores(t)

	_, err := s.relations.SweepOrphans(context.Background(), "", 10)
	assert.True(t, errors.IsValidationError(err))

	_, err = s.relations.SweepOrphans(context.Background(), "t1", 0)
	assert.True(t, errors.IsValidationError(err))
}

func TestSweepOrphans_ThrottleHonorsContext(t *testing.T) {
	s := newStores(t)
	throttled := NewRelationshipStore(s.db, nil, WithSweepRate(0.001))
	e := s.mustEntity(t, "t1", "person", "A")

	for _, name := range []string{"a", "b"} {
		_, _, err := s.attrs.SetField(context.Background(), e.ID, name, "1")
		require.NoError(t, err)
	}
	// Second distinct entity so a second limiter token is needed
	other := s.mustEntity(t, "t1", "person", "B")
	_, _, err := s.attrs.SetField(context.Background(), other.ID, "a", "1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = throttled.SweepOrphans(ctx, "t1", 10)
	assert.Error(t, err)
}
