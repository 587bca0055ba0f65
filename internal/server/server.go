package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/logger"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/tools"
)

const (
	Name    = "graph-mcp"
	Version = "0.1.0"
)

// New creates a fully configured MCP server with all tools registered.
func New(svc *graph.Service, log *slog.Logger) *mcp.Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Scope("tools"))

	gt := &tools.GraphTools{Graph: svc}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, nil)

	addTool(srv, log, &mcp.Tool{
		Name:        "create_entities",
		Description: "Create one or more entities in the knowledge graph. Each entity gets the Entity label plus its type; its id is the id property, or else the name property",
	}, gt.CreateEntities)

	addTool(srv, log, &mcp.Tool{
		Name:        "create_relations",
		Description: "Create typed, directed relationships between existing entities. Relations whose endpoints do not exist are skipped",
	}, gt.CreateRelations)

	addTool(srv, log, &mcp.Tool{
		Name:        "delete_entities",
		Description: "Delete entities by id. Without cascade, refuses to leave orphaned relationships and only removes entities with no relationships; dry_run previews the impact",
	}, gt.DeleteEntities)

	addTool(srv, log, &mcp.Tool{
		Name:        "search_entities",
		Description: "Search entities by text, type and property names, optionally with their relationships. Matching is fuzzy (case-insensitive substring) unless fuzzy_match is false",
	}, gt.SearchEntities)

	addTool(srv, log, &mcp.Tool{
		Name:        "update_entities",
		Description: "Set or remove properties and add or remove labels on existing entities. Fails without changes if any id does not exist",
	}, gt.UpdateEntities)

	addTool(srv, log, &mcp.Tool{
		Name:        "introspect_schema",
		Description: "List node labels, relationship types and the property keys observed on each",
	}, gt.IntrospectSchema)

	return srv
}

func addTool[In any](srv *mcp.Server, log *slog.Logger, tool *mcp.Tool, h mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(srv, tool, instrument(log, tool.Name, h))
}

// instrument records metrics and a log line for every call of a tool.
func instrument[In any](log *slog.Logger, name string, h mcp.ToolHandlerFor[In, any]) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		start := time.Now()
		callLog := log.With(slog.String("tool", name), slog.String("call_id", uuid.NewString()))
		callLog.Debug("tool call started")

		res, out, err := h(ctx, req, in)

		elapsed := time.Since(start)
		outcome := metrics.OutcomeOK
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case res != nil && res.IsError:
			outcome = metrics.OutcomeToolError
		}
		metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
		metrics.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())

		attrs := []any{slog.String("outcome", outcome), slog.Duration("elapsed", elapsed)}
		switch outcome {
		case metrics.OutcomeError:
			callLog.Error("tool call failed", append(attrs, logger.Error(err))...)
		case metrics.OutcomeToolError:
			callLog.Warn("tool call returned an error", append(attrs, slog.String("message", resultText(res)))...)
		default:
			callLog.Info("tool call finished", attrs...)
		}
		return res, out, err
	}
}

func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			return t.Text
		}
	}
	return ""
}
