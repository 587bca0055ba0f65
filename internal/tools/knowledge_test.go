package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/storage"
)

func setupTools(t *testing.T) *GraphTools {
	t.Helper()
	store, err := storage.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return &GraphTools{Graph: graph.New(store)}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty content")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestFailure(t *testing.T) {
	res := failure("Failed to search entities", fmt.Errorf("%w: bad label", graph.ErrInvalidArgument))
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "Invalid arguments:") {
		t.Errorf("argument error rendered as %q", resultText(t, res))
	}

	res = failure("Failed to search entities", errors.New("connection reset"))
	if !res.IsError || resultText(t, res) != "Failed to search entities: connection reset" {
		t.Errorf("store error rendered as %q", resultText(t, res))
	}
}

func TestSearchEntities_FuzzyByDefault(t *testing.T) {
	gt := setupTools(t)
	ctx := context.Background()

	res, _, err := gt.CreateEntities(ctx, nil, CreateEntitiesInput{Entities: []EntityInput{
		{Type: "Person", Properties: map[string]any{"name": "Grace Hopper"}},
	}})
	if err != nil || res.IsError {
		t.Fatalf("create: %v %s", err, resultText(t, res))
	}

	exact := false
	tests := []struct {
		name  string
		input SearchEntitiesInput
		want  int
	}{
		{"default fuzzy", SearchEntitiesInput{SearchTerm: "hopper"}, 1},
		{"exact miss", SearchEntitiesInput{SearchTerm: "hopper", FuzzyMatch: &exact}, 0},
		{"exact hit", SearchEntitiesInput{SearchTerm: "Grace Hopper", FuzzyMatch: &exact}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := gt.SearchEntities(ctx, nil, tt.input)
			if err != nil || res.IsError {
				t.Fatalf("search: %v %s", err, resultText(t, res))
			}
			var out searchOutput
			if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(out.Results) != tt.want {
				t.Errorf("got %d results, want %d", len(out.Results), tt.want)
			}
		})
	}
}

func TestDeleteEntities_CascadeAppliesToEveryID(t *testing.T) {
	gt := setupTools(t)
	ctx := context.Background()

	gt.CreateEntities(ctx, nil, CreateEntitiesInput{Entities: []EntityInput{
		{Type: "Person", Properties: map[string]any{"name": "Ada"}},
		{Type: "Person", Properties: map[string]any{"name": "Charles"}},
	}})
	gt.CreateRelations(ctx, nil, CreateRelationsInput{Relations: []RelationInput{
		{Type: "KNOWS", From: "Ada", To: "Charles"},
	}})

	res, _, err := gt.DeleteEntities(ctx, nil, DeleteEntitiesInput{EntityIDs: []string{"Ada"}, Cascade: true})
	if err != nil || res.IsError {
		t.Fatalf("delete: %v %s", err, resultText(t, res))
	}
	text := resultText(t, res)
	if !strings.Contains(text, `"success": true`) || !strings.Contains(text, `"relationships_deleted": 1`) {
		t.Errorf("unexpected delete result: %s", text)
	}
}
