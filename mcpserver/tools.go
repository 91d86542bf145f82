package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teranos/strata/attrs"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/query"
	"github.com/teranos/strata/storage"
	"github.com/teranos/strata/types"
)

// registerTools registers all MCP tools for platform operations
func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("entity_create",
		mcp.WithDescription("Create an entity of any type; a code is generated when omitted"),
		tenantParam(),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type, lower_snake_case")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("code", mcp.Description("Business code, unique per tenant and type")),
	), s.handleEntityCreate)

	s.server.AddTool(mcp.NewTool("entity_get",
		mcp.WithDescription("Get an entity with all of its fields"),
		tenantParam(),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
	), s.handleEntityGet)

	s.server.AddTool(mcp.NewTool("entity_update",
		mcp.WithDescription("Rename or reactivate an entity. Type and tenant cannot change."),
		tenantParam(),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithString("name", mcp.Description("New display name")),
		mcp.WithBoolean("active", mcp.Description("Set the entity active or inactive")),
	), s.handleEntityUpdate)

	s.server.AddTool(mcp.NewTool("entity_delete",
		mcp.WithDescription("Soft-delete an entity; its fields and links stay readable to sweeps"),
		tenantParam(),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
	), s.handleEntityDelete)

	s.server.AddTool(mcp.NewTool("field_set",
		mcp.WithDescription("Set one field on an entity; the value is validated against the field's kind"),
		tenantParam(),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Field name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value as text")),
		mcp.WithString("kind", mcp.Description("text, number, boolean, date or json; the value must decode as this kind (default: inferred from the value on every write)")),
		mcp.WithBoolean("required", mcp.Description("Mark the field required")),
	), s.handleFieldSet)

	s.server.AddTool(mcp.NewTool("fields_get",
		mcp.WithDescription("List an entity's fields in order with their decoded values; fields failing validation carry a problem"),
		tenantParam(),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity id")),
	), s.handleFieldsGet)

	s.server.AddTool(mcp.NewTool("link_create",
		mcp.WithDescription("Link two entities of the same tenant with a typed, directed relationship"),
		tenantParam(),
		mcp.WithString("type", mcp.Required(), mcp.Description("Relationship type, e.g. contains")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent entity id")),
		mcp.WithString("child_id", mcp.Required(), mcp.Description("Child entity id")),
		mcp.WithObject("payload", mcp.Description("Optional JSON payload stored on the link")),
	), s.handleLinkCreate)

	s.server.AddTool(mcp.NewTool("link_resolve",
		mcp.WithDescription("Resolve the children (or parents) linked to an entity"),
		tenantParam(),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity id to start from")),
		mcp.WithString("type", mcp.Description("Only follow links of this type")),
		mcp.WithString("direction", mcp.Description("children (default) or parents")),
	), s.handleLinkResolve)

	s.server.AddTool(mcp.NewTool("schema_register",
		mcp.WithDescription("Register an entity type in the tenant's schema catalog; registering twice returns the existing schema"),
		tenantParam(),
		mcp.WithString("entity_type", mcp.Required(), mcp.Description("Entity type, lower_snake_case")),
		mcp.WithString("name", mcp.Description("Display name (default: the type)")),
		mcp.WithString("domain", mcp.Description("Business domain, e.g. finance")),
		mcp.WithString("description", mcp.Description("What the type represents")),
		mcp.WithArray("fields",
			mcp.Required(),
			mcp.Description("Field specs: {name, kind, required}"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":     map[string]any{"type": "string"},
					"kind":     map[string]any{"type": "string"},
					"required": map[string]any{"type": "boolean"},
				},
				"required": []string{"name"},
			}),
		),
		mcp.WithArray("keywords",
			mcp.Description("Keywords used by similarity search (derived from type, name and domain when omitted)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("confidence", mcp.Description("Generator confidence between 0 and 1")),
		mcp.WithBoolean("ai_generated", mcp.Description("Whether a model proposed this schema")),
	), s.handleSchemaRegister)

	s.server.AddTool(mcp.NewTool("schema_find_similar",
		mcp.WithDescription("Rank registered schemas against a requirement; call before registering a new type"),
		tenantParam(),
		mcp.WithString("requirement_text", mcp.Required(), mcp.Description("Plain-language description of the data to store")),
		mcp.WithString("proposed_type", mcp.Description("Tentative type name")),
		mcp.WithArray("proposed_fields",
			mcp.Description("Tentative field names"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), s.handleSchemaFindSimilar)

	s.server.AddTool(mcp.NewTool("schema_context",
		mcp.WithDescription("Summarize the tenant's registered types for planning"),
		tenantParam(),
	), s.handleSchemaContext)

	s.server.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search entities by type, text, field filters and relationships"),
		tenantParam(),
		mcp.WithString("type", mcp.Description("Entity type")),
		mcp.WithString("text", mcp.Description("Case-insensitive text matched against name, code and field values")),
		mcp.WithArray("filters",
			mcp.Description("Field filters: {field, op, value}; op is one of eq, neq, gt, gte, lt, lte, contains, exists"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"field": map[string]any{"type": "string"},
					"op":    map[string]any{"type": "string"},
					"value": map[string]any{"type": "string"},
				},
				"required": []string{"field", "op"},
			}),
		),
		mcp.WithObject("related", mcp.Description("Restrict to entities linked to {entity_id, type, direction}")),
		mcp.WithObject("sort", mcp.Description("{field, desc}; field is name, code, created_at, updated_at or a field name")),
		mcp.WithNumber("offset", mcp.Description("Records to skip")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
		mcp.WithBoolean("include_inactive", mcp.Description("Include soft-deleted entities")),
	), s.handleSearch)
}

type entityView struct {
	*types.Entity
	Fields []types.Attribute `json:"fields"`
	Values map[string]any    `json:"values"`
}

// fieldsView pairs the stored attributes with their decoded values
type fieldsView struct {
	Fields []types.Attribute `json:"fields"`
	Values map[string]any    `json:"values"`
}

func (s *Server) handleEntityCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	e, err := s.platform.CreateEntity(ctx, s.tenant(request), entityType, name, request.GetString("code", ""))
	if err != nil {
		return s.failure("entity_create", err), nil
	}
	return jsonResult(e)
}

func (s *Server) handleEntityGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tenant := s.tenant(request)
	e, err := s.platform.GetEntity(ctx, tenant, id)
	if err != nil {
		return s.failure("entity_get", err), nil
	}
	fields, err := s.platform.GetFields(ctx, tenant, id)
	if err != nil {
		return s.failure("entity_get", err), nil
	}
	return jsonResult(entityView{Entity: e, Fields: fields, Values: attrs.Values(fields)})
}

func (s *Server) handleEntityUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var patch types.EntityPatch
	args := request.GetArguments()
	if _, ok := args["name"]; ok {
		name := request.GetString("name", "")
		patch.Name = &name
	}
	if _, ok := args["active"]; ok {
		active := request.GetBool("active", true)
		patch.Active = &active
	}

	e, err := s.platform.UpdateEntity(ctx, s.tenant(request), id, patch)
	if err != nil {
		return s.failure("entity_update", err), nil
	}
	return jsonResult(e)
}

func (s *Server) handleEntityDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.platform.DeleteEntity(ctx, s.tenant(request), id); err != nil {
		return s.failure("entity_delete", err), nil
	}
	return jsonResult(map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleFieldSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityID, err := request.RequireString("entity_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts []storage.FieldOption
	if kind := request.GetString("kind", ""); kind != "" {
		opts = append(opts, storage.WithKind(types.Kind(kind)))
	}
	if _, ok := request.GetArguments()["required"]; ok {
		if request.GetBool("required", false) {
			opts = append(opts, storage.WithRequired())
		} else {
			opts = append(opts, storage.WithOptional())
		}
	}

	attr, created, err := s.platform.SetField(ctx, s.tenant(request), entityID, name, value, opts...)
	if err != nil {
		return s.failure("field_set", err), nil
	}
	return jsonResult(map[string]any{"field": attr, "created": created})
}

func (s *Server) handleFieldsGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityID, err := request.RequireString("entity_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fields, err := s.platform.GetFields(ctx, s.tenant(request), entityID)
	if err != nil {
		return s.failure("fields_get", err), nil
	}
	return jsonResult(fieldsView{Fields: fields, Values: attrs.Values(fields)})
}

func (s *Server) handleLinkCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	linkType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parentID, err := request.RequireString("parent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	childID, err := request.RequireString("child_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var payload json.RawMessage
	if _, err := decodeArg(request, "payload", &payload); err != nil {
		return s.failure("link_create", err), nil
	}

	r, err := s.platform.Link(ctx, s.tenant(request), linkType, parentID, childID, payload)
	if err != nil {
		return s.failure("link_create", err), nil
	}
	return jsonResult(r)
}

func (s *Server) handleLinkResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityID, err := request.RequireString("entity_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	linkType := request.GetString("type", "")
	tenant := s.tenant(request)

	var ids []string
	switch direction := query.Direction(request.GetString("direction", string(query.DirectionChildren))); direction {
	case query.DirectionChildren:
		ids, err = s.platform.Resolve(ctx, tenant, entityID, linkType)
	case query.DirectionParents:
		ids, err = s.platform.ResolveParents(ctx, tenant, entityID, linkType)
	default:
		err = errors.NewValidationError("direction %q must be children or parents", direction)
	}
	if err != nil {
		return s.failure("link_resolve", err), nil
	}
	return jsonResult(ids)
}

func (s *Server) handleSchemaRegister(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := request.RequireString("entity_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	def := types.Definition{
		Domain:      request.GetString("domain", ""),
		Description: request.GetString("description", ""),
		Confidence:  request.GetFloat("confidence", 0),
	}
	if _, err := decodeArg(request, "fields", &def.Fields); err != nil {
		return s.failure("schema_register", err), nil
	}
	if def.Keywords, err = stringList(request, "keywords"); err != nil {
		return s.failure("schema_register", err), nil
	}

	schema, created, err := s.platform.RegisterSchema(ctx, s.tenant(request), entityType,
		request.GetString("name", ""), def, request.GetBool("ai_generated", false))
	if err != nil {
		return s.failure("schema_register", err), nil
	}
	return jsonResult(map[string]any{"schema": schema, "created": created})
}

func (s *Server) handleSchemaFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("requirement_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, err := stringList(request, "proposed_fields")
	if err != nil {
		return s.failure("schema_find_similar", err), nil
	}

	results := s.platform.FindSimilar(ctx, s.tenant(request), types.SimilarityRequest{
		RequirementText: text,
		ProposedType:    request.GetString("proposed_type", ""),
		ProposedFields:  fields,
	})

	recommendation := types.RecommendCreateNew
	if len(results) > 0 {
		recommendation = results[0].Recommendation
	}
	return jsonResult(map[string]any{"recommendation": recommendation, "results": results})
}

func (s *Server) handleSchemaContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.platform.SchemaContext(ctx, s.tenant(request))
	if err != nil {
		return s.failure("schema_context", err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := query.Request{
		Type:            request.GetString("type", ""),
		Text:            request.GetString("text", ""),
		IncludeInactive: request.GetBool("include_inactive", false),
		Page: query.Page{
			Offset: request.GetInt("offset", 0),
			Limit:  request.GetInt("limit", 0),
		},
	}
	if _, err := decodeArg(request, "filters", &req.Filters); err != nil {
		return s.failure("search", err), nil
	}
	var related query.Related
	if ok, err := decodeArg(request, "related", &related); err != nil {
		return s.failure("search", err), nil
	} else if ok {
		req.Related = &related
	}
	if _, err := decodeArg(request, "sort", &req.Sort); err != nil {
		return s.failure("search", err), nil
	}

	res, err := s.platform.Query(ctx, s.tenant(request), req)
	if err != nil {
		return s.failure("search", err), nil
	}
	return jsonResult(res)
}
