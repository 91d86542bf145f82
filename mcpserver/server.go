// Package mcpserver exposes the strata platform as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/strata/db"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/query"
	"github.com/teranos/strata/storage"
	"github.com/teranos/strata/types"
)

// Platform is the subset of core.Platform the tools call
type Platform interface {
	CreateEntity(ctx context.Context, tenantID, entityType, name, code string) (*types.Entity, error)
	GetEntity(ctx context.Context, tenantID, id string) (*types.Entity, error)
	UpdateEntity(ctx context.Context, tenantID, id string, patch types.EntityPatch) (*types.Entity, error)
	DeleteEntity(ctx context.Context, tenantID, id string) error
	SetField(ctx context.Context, tenantID, entityID, name, value string, opts ...storage.FieldOption) (*types.Attribute, bool, error)
	GetFields(ctx context.Context, tenantID, entityID string) ([]types.Attribute, error)
	Link(ctx context.Context, tenantID, linkType, parentID, childID string, payload json.RawMessage) (*types.Relationship, error)
	Resolve(ctx context.Context, tenantID, parentID, linkType string) ([]string, error)
	ResolveParents(ctx context.Context, tenantID, childID, linkType string) ([]string, error)
	RegisterSchema(ctx context.Context, tenantID, entityType, name string, def types.Definition, aiGenerated bool) (*types.SchemaDefinition, bool, error)
	FindSimilar(ctx context.Context, tenantID string, req types.SimilarityRequest) []types.SimilarityResult
	SchemaContext(ctx context.Context, tenantID string) (string, error)
	Query(ctx context.Context, tenantID string, req query.Request) (*query.Result, error)
}

// Server wraps a Platform and exposes it via Model Context Protocol
type Server struct {
	platform      Platform
	defaultTenant string
	logger        *zap.SugaredLogger
	server        *server.MCPServer
}

// New creates an MCP server. defaultTenant is used when a call omits tenant_id.
func New(p Platform, name, version, defaultTenant string, log *zap.SugaredLogger) *Server {
	s := &Server{
		platform:      p,
		defaultTenant: defaultTenant,
		logger:        logger.OrNop(log).Named("mcp"),
	}

	s.server = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// MCPServer returns the underlying server for transports other than stdio
func (s *Server) MCPServer() *server.MCPServer {
	return s.server
}

// ServeStdio runs the server over stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	s.logger.Infow("Serving MCP over stdio", logger.FieldTenantID, s.defaultTenant)
	return server.ServeStdio(s.server)
}

func tenantParam() mcp.ToolOption {
	return mcp.WithString("tenant_id",
		mcp.Description("Tenant scope for the call; defaults to the server's tenant"),
	)
}

func (s *Server) tenant(request mcp.CallToolRequest) string {
	if t := strings.TrimSpace(request.GetString("tenant_id", "")); t != "" {
		return t
	}
	return s.defaultTenant
}

// failure converts an error into a tool error result carrying its kind and hints
func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	err = db.WithReopenHint(err)
	kind := errors.Kind(err)
	s.logger.Debugw("Tool call failed",
		"tool", tool,
		logger.FieldErrorKind, kind,
		logger.FieldError, err.Error(),
	)

	msg := fmt.Sprintf("%s: %v", kind, err)
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += "\nhint: " + strings.Join(hints, "\nhint: ")
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringList reads an optional array-of-strings argument
func stringList(request mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.NewValidationError("%s must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, errors.NewValidationError("%s must be an array of strings", key)
		}
		out = append(out, str)
	}
	return out, nil
}

// decodeArg re-encodes an object argument into v
func decodeArg(request mcp.CallToolRequest, key string, v any) (bool, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false, errors.NewValidationError("%s: %v", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.NewValidationError("%s is malformed: %v", key, err)
	}
	return true, nil
}
