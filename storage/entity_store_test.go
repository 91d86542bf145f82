package storage

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/strata/errors"
	stratatest "github.com/teranos/strata/internal/testing"
	"github.com/teranos/strata/types"
)

func newEntityStore(t *testing.T) *EntityStore {
	t.Helper()
	return NewEntityStore(stratatest.CreateTestDB(t), zaptest.NewLogger(t).Sugar())
}

func TestEntityStore_Create(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	e, err := es.Create(ctx, "t1", "invoice", "  March invoice ", "")
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "t1", e.TenantID)
	assert.Equal(t, "invoice", e.Type)
	assert.Equal(t, "March invoice", e.Name)
	assert.True(t, e.Active)
	assert.Regexp(t, regexp.MustCompile(`^INV-MARCHI-[1-9A-HJ-NP-Za-km-z]+$`), e.Code)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	got, err := es.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Code, got.Code)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
}

func TestEntityStore_CreateValidation(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	tests := []struct {
		name, tenant, entityType, entityName string
	}{
		{"missing tenant", "", "invoice", "x"},
		{"missing type", "t1", "", "x"},
		{"bad type", "t1", "has space", "x"},
		{"missing name", "t1", "invoice", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := es.Create(ctx, tt.tenant, tt.entityType, tt.entityName, "")
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestEntityStore_CodeConflict(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	_, err := es.Create(ctx, "t1", "invoice", "First", "INV-001")
	require.NoError(t, err)

	_, err = es.Create(ctx, "t1", "invoice", "Second", "INV-001")
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))

	// Same code in another tenant or type is fine
	_, err = es.Create(ctx, "t2", "invoice", "Other tenant", "INV-001")
	require.NoError(t, err)
	_, err = es.Create(ctx, "t1", "receipt", "Other type", "INV-001")
	require.NoError(t, err)

	got, err := es.GetByCode(ctx, "t1", "invoice", "INV-001")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)

	_, err = es.GetByCode(ctx, "t1", "invoice", "INV-404")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestEntityStore_GetNotFound(t *testing.T) {
	es := newEntityStore(t)

	_, err := es.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	opErr, ok := errors.OpContext(err)
	require.True(t, ok)
	assert.Equal(t, "missing", opErr.EntityID)
}

func TestEntityStore_Update(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	e, err := es.Create(ctx, "t1", "customer", "Ada", "")
	require.NoError(t, err)

	name := "Ada Lovelace"
	updated, err := es.Update(ctx, e.ID, types.EntityPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.False(t, updated.UpdatedAt.Before(e.UpdatedAt))

	t.Run("tenant is immutable", func(t *testing.T) {
		other := "t2"
		_, err := es.Update(ctx, e.ID, types.EntityPatch{TenantID: &other})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("type is immutable", func(t *testing.T) {
		other := "vendor"
		_, err := es.Update(ctx, e.ID, types.EntityPatch{Type: &other})
		assert.True(t, errors.IsValidationError(err))
		assert.NotEmpty(t, errors.GetAllHints(err))
	})

	t.Run("empty name rejected", func(t *testing.T) {
		blank := " "
		_, err := es.Update(ctx, e.ID, types.EntityPatch{Name: &blank})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := es.Update(ctx, "missing", types.EntityPatch{Name: &name})
		assert.True(t, errors.IsNotFoundError(err))
	})

	got, err := es.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, "customer", got.Type)
}

func TestEntityStore_SoftDelete(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	e, err := es.Create(ctx, "t1", "customer", "Grace", "")
	require.NoError(t, err)

	require.NoError(t, es.SoftDelete(ctx, e.ID))

	// Row remains, inactive
	got, err := es.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.True(t, errors.IsNotFoundError(es.SoftDelete(ctx, "missing")))

	active, err := es.List(ctx, types.ListOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := es.List(ctx, types.ListOptions{TenantID: "t1", IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEntityStore_ListIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := es.Create(ctx, "t1", "customer", name, "")
		require.NoError(t, err)
	}
	_, err := es.Create(ctx, "t1", "invoice", "inv", "")
	require.NoError(t, err)
	_, err = es.Create(ctx, "t2", "customer", "other", "")
	require.NoError(t, err)
	_, err = es.Create(ctx, "t1", types.SchemaEntityType, "customer", "customer")
	require.NoError(t, err)

	customers, err := es.List(ctx, types.ListOptions{TenantID: "t1", Type: "customer"})
	require.NoError(t, err)
	require.Len(t, customers, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{customers[0].Name, customers[1].Name, customers[2].Name})

	all, err := es.List(ctx, types.ListOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, all, 4, "reserved types are skipped by untyped listings")

	withReserved, err := es.List(ctx, types.ListOptions{TenantID: "t1", IncludeReserved: true})
	require.NoError(t, err)
	assert.Len(t, withReserved, 5)

	for _, e := range all {
		assert.Equal(t, "t1", e.TenantID)
	}

	_, err = es.List(ctx, types.ListOptions{})
	assert.True(t, errors.IsValidationError(err))
}

func TestEntityStore_ListByIDs(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	a, err := es.Create(ctx, "t1", "customer", "a", "")
	require.NoError(t, err)
	_, err = es.Create(ctx, "t1", "customer", "b", "")
	require.NoError(t, err)
	c, err := es.Create(ctx, "t1", "customer", "c", "")
	require.NoError(t, err)
	other, err := es.Create(ctx, "t2", "customer", "x", "")
	require.NoError(t, err)

	got, err := es.List(ctx, types.ListOptions{TenantID: "t1", IDs: []string{c.ID, a.ID, other.ID}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID, "creation order, not id order")
	assert.Equal(t, c.ID, got[1].ID)

	none, err := es.List(ctx, types.ListOptions{TenantID: "t1", IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	// Past the bind limit the set is applied after the scan
	many := make([]string, 0, maxInArgs+1)
	for i := 0; i < maxInArgs; i++ {
		many = append(many, "missing")
	}
	many = append(many, c.ID)
	got, err = es.List(ctx, types.ListOptions{TenantID: "t1", IDs: many})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
}

func TestEntityStore_StoreErrorsAreMarked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	es := NewEntityStore(db, nil)

	mock.ExpectExec(`INSERT INTO entities`).WillReturnError(errors.New("disk I/O error"))

	_, err = es.Create(context.Background(), "t1", "invoice", "x", "INV-1")
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
	assert.Contains(t, err.Error(), "disk I/O error")

	mock.ExpectQuery(`SELECT .* FROM entities WHERE id = \?`).WillReturnError(errors.New("connection reset"))
	_, err = es.Get(context.Background(), "abc")
	assert.True(t, errors.IsStoreError(err))
	assert.False(t, errors.IsNotFoundError(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateCode(t *testing.T) {
	code := GenerateCode("invoice", "Café Olé")
	parts := strings.Split(code, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "INV", parts[0])
	assert.Equal(t, "CAFEOL", parts[1])
	assert.NotEmpty(t, parts[2])

	assert.True(t, strings.HasPrefix(GenerateCode("_", "!!!"), "ENT-X-"))
	assert.NotEqual(t, GenerateCode("a", "b"), GenerateCode("a", "b"))
}

func TestTimestampsSortLexically(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC)
	b := time.Date(2024, 1, 1, 0, 0, 0, 40, time.UTC)
	assert.Less(t, formatTime(a), formatTime(b))

	parsed, err := parseTime(formatTime(b))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(b))
}
