package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/strata/types"
)

func TestCompareValues(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c, ok := compareValues(types.Value{Kind: types.KindNumber, Number: 9}, types.Value{Kind: types.KindNumber, Number: 10})
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = compareValues(types.Value{Kind: types.KindDate, Time: day.Add(time.Hour)}, types.Value{Kind: types.KindDate, Time: day})
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = compareValues(types.Value{Kind: types.KindBoolean, Bool: false}, types.Value{Kind: types.KindBoolean, Bool: true})
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = compareValues(types.Value{Kind: types.KindJSON}, types.Value{Kind: types.KindJSON})
	assert.False(t, ok)

	_, ok = compareValues(types.Value{Kind: types.KindText}, types.Value{Kind: types.KindNumber})
	assert.False(t, ok)
}

func TestMatches_JSON(t *testing.T) {
	rec := Record{
		Entity: &types.Entity{Name: "Ada"},
		Fields: []types.Attribute{{Name: "prefs", Value: `{"theme": "dark"}`, Kind: types.KindJSON}},
	}

	assert.True(t, matches(rec, Filter{Field: "prefs", Op: OpEq, Value: `{"theme":"dark"}`}))
	assert.True(t, matches(rec, Filter{Field: "prefs", Op: OpNeq, Value: `{"theme":"light"}`}))
	assert.False(t, matches(rec, Filter{Field: "prefs", Op: OpGt, Value: `{}`}))
	assert.True(t, matches(rec, Filter{Field: "prefs", Op: OpContains, Value: "DARK"}))
}

func TestMatches_CorruptStoredValue(t *testing.T) {
	rec := Record{
		Entity: &types.Entity{Name: "Ada"},
		Fields: []types.Attribute{{Name: "age", Value: "thirty", Kind: types.KindNumber}},
	}

	// A value that no longer decodes as its kind is compared as text
	assert.True(t, matches(rec, Filter{Field: "age", Op: OpEq, Value: "thirty"}))
	assert.False(t, matches(rec, Filter{Field: "age", Op: OpGt, Value: "zzz"}))
}

func TestOp_Valid(t *testing.T) {
	for _, op := range Ops {
		assert.True(t, op.Valid())
	}
	assert.False(t, Op("like").Valid())
	assert.False(t, Op("").Valid())
}
