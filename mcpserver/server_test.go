package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/core"
	"github.com/teranos/strata/db"
	stratatest "github.com/teranos/strata/internal/testing"
	"github.com/teranos/strata/query"
	"github.com/teranos/strata/types"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	p, err := core.New(context.Background(), stratatest.CreateTestDB(t), am.Defaults(), log)
	require.NoError(t, err)
	return New(p, "strata-test", "test", "acme", log)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func createEntity(t *testing.T, s *Server, entityType, name string) *types.Entity {
	t.Helper()
	res, err := s.handleEntityCreate(context.Background(), call(map[string]any{"type": entityType, "name": name}))
	require.NoError(t, err)
	return decode[*types.Entity](t, res)
}

func TestEntityLifecycle(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	e := createEntity(t, s, "customer", "Ada")
	assert.Equal(t, "acme", e.TenantID)
	assert.NotEmpty(t, e.Code)

	res, err := s.handleFieldSet(ctx, call(map[string]any{
		"entity_id": e.ID, "name": "age", "value": "36", "kind": "number", "required": true,
	}))
	require.NoError(t, err)
	set := decode[struct {
		Field   types.Attribute `json:"field"`
		Created bool            `json:"created"`
	}](t, res)
	assert.True(t, set.Created)
	assert.Equal(t, types.KindNumber, set.Field.Kind)
	assert.True(t, set.Field.Required)

	res, err = s.handleEntityGet(ctx, call(map[string]any{"id": e.ID}))
	require.NoError(t, err)
	got := decode[struct {
		ID     string            `json:"id"`
		Fields []types.Attribute `json:"fields"`
		Values map[string]any    `json:"values"`
	}](t, res)
	assert.Equal(t, e.ID, got.ID)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "36", got.Fields[0].Value)
	assert.Equal(t, float64(36), got.Values["age"])

	res, err = s.handleFieldsGet(ctx, call(map[string]any{"entity_id": e.ID}))
	require.NoError(t, err)
	listed := decode[struct {
		Fields []types.Attribute `json:"fields"`
		Values map[string]any    `json:"values"`
	}](t, res)
	require.Len(t, listed.Fields, 1)
	assert.Empty(t, listed.Fields[0].Problem)
	assert.Equal(t, float64(36), listed.Values["age"])

	res, err = s.handleEntityUpdate(ctx, call(map[string]any{"id": e.ID, "name": "Ada L."}))
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", decode[*types.Entity](t, res).Name)

	res, err = s.handleEntityDelete(ctx, call(map[string]any{"id": e.ID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleFieldsGet(ctx, call(map[string]any{"entity_id": e.ID}))
	require.NoError(t, err)
	assert.Len(t, decode[[]types.Attribute](t, res), 1, "fields of a soft-deleted entity stay readable")
}

func TestFieldSet_InvalidValue(t *testing.T) {
	s := newServer(t)
	e := createEntity(t, s, "customer", "Ada")

	res, err := s.handleFieldSet(context.Background(), call(map[string]any{
		"entity_id": e.ID, "name": "age", "value": "old", "kind": "number",
	}))
	require.NoError(t, err, "failures are tool results, not protocol errors")
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "validation")
}

func TestClosedDatabase_ReportsReopenHint(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	conn := stratatest.CreateTestDB(t)
	p, err := core.New(context.Background(), conn, am.Defaults(), log)
	require.NoError(t, err)
	s := New(p, "strata-test", "test", "acme", log)
	require.NoError(t, conn.Close())

	res, err := s.handleEntityGet(context.Background(), call(map[string]any{"id": "e-1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(text(t, res), "store: "))
	assert.Contains(t, text(t, res), "hint: "+db.ReopenHint)
}

func TestTenantScoping(t *testing.T) {
	s := newServer(t)
	e := createEntity(t, s, "customer", "Ada")

	res, err := s.handleEntityGet(context.Background(), call(map[string]any{"id": e.ID, "tenant_id": "globex"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not_found")
}

func TestMissingArgument(t *testing.T) {
	s := newServer(t)

	res, err := s.handleEntityCreate(context.Background(), call(map[string]any{"type": "customer"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestLinks(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	order := createEntity(t, s, "order", "Order 1")
	line := createEntity(t, s, "line_item", "Line 1")

	res, err := s.handleLinkCreate(ctx, call(map[string]any{
		"type": "contains", "parent_id": order.ID, "child_id": line.ID,
		"payload": map[string]any{"qty": 2},
	}))
	require.NoError(t, err)
	link := decode[*types.Relationship](t, res)
	assert.JSONEq(t, `{"qty":2}`, string(link.Payload))

	res, err = s.handleLinkResolve(ctx, call(map[string]any{"entity_id": order.ID, "type": "contains"}))
	require.NoError(t, err)
	assert.Equal(t, []string{line.ID}, decode[[]string](t, res))

	res, err = s.handleLinkResolve(ctx, call(map[string]any{"entity_id": line.ID, "direction": "parents"}))
	require.NoError(t, err)
	assert.Equal(t, []string{order.ID}, decode[[]string](t, res))

	res, err = s.handleLinkResolve(ctx, call(map[string]any{"entity_id": line.ID, "direction": "sideways"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSchemaTools(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	register := call(map[string]any{
		"entity_type": "invoice",
		"name":        "Invoice",
		"domain":      "finance",
		"fields": []any{
			map[string]any{"name": "amount", "kind": "number", "required": true},
			map[string]any{"name": "vendor"},
			map[string]any{"name": "date", "kind": "date"},
		},
		"keywords": []any{"invoice", "bill", "supplier"},
	})
	res, err := s.handleSchemaRegister(ctx, register)
	require.NoError(t, err)
	reg := decode[struct {
		Schema  types.SchemaDefinition `json:"schema"`
		Created bool                   `json:"created"`
	}](t, res)
	assert.True(t, reg.Created)
	assert.Len(t, reg.Schema.Fields, 3)

	res, err = s.handleSchemaRegister(ctx, register)
	require.NoError(t, err)
	again := decode[struct {
		Schema  types.SchemaDefinition `json:"schema"`
		Created bool                   `json:"created"`
	}](t, res)
	assert.False(t, again.Created)
	assert.Equal(t, reg.Schema.ID, again.Schema.ID)

	res, err = s.handleSchemaFindSimilar(ctx, call(map[string]any{
		"requirement_text": "record a supplier invoice",
		"proposed_type":    "invoice",
		"proposed_fields":  []any{"amount", "vendor", "date"},
	}))
	require.NoError(t, err)
	similar := decode[struct {
		Recommendation types.Recommendation     `json:"recommendation"`
		Results        []types.SimilarityResult `json:"results"`
	}](t, res)
	require.NotEmpty(t, similar.Results)
	assert.Equal(t, "invoice", similar.Results[0].EntityType)
	assert.Equal(t, types.RecommendUseExisting, similar.Recommendation)

	res, err = s.handleSchemaContext(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "invoice")
}

func TestSchemaFindSimilar_BadFields(t *testing.T) {
	s := newServer(t)

	res, err := s.handleSchemaFindSimilar(context.Background(), call(map[string]any{
		"requirement_text": "anything",
		"proposed_fields":  "amount",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearch(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	for _, name := range []string{"Ada", "Grace", "Linus"} {
		e := createEntity(t, s, "customer", name)
		_, err := s.handleFieldSet(ctx, call(map[string]any{"entity_id": e.ID, "name": "tier", "value": "gold"}))
		require.NoError(t, err)
	}

	res, err := s.handleSearch(ctx, call(map[string]any{
		"type":    "customer",
		"filters": []any{map[string]any{"field": "tier", "op": "eq", "value": "gold"}},
		"sort":    map[string]any{"field": "name", "desc": true},
		"limit":   2,
	}))
	require.NoError(t, err)
	result := decode[query.Result](t, res)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Linus", result.Records[0].Entity.Name)

	res, err = s.handleSearch(ctx, call(map[string]any{
		"filters": []any{map[string]any{"field": "tier", "op": "like"}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestToolsRegistered(t *testing.T) {
	s := newServer(t)

	resp := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{
		"entity_create", "entity_get", "entity_update", "entity_delete",
		"field_set", "fields_get", "link_create", "link_resolve",
		"schema_register", "schema_find_similar", "schema_context", "search",
	} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
	assert.Contains(t, string(data), "inferred from the value on every write")
	assert.NotContains(t, string(data), "existing kind")
}
