package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// GraphTools holds references needed by knowledge graph tool handlers.
type GraphTools struct {
	Graph *graph.Service
}

// --- Input types ---

type CreateEntitiesInput struct {
	Entities []EntityInput `json:"entities" jsonschema:"Array of entities to create"`
}

type EntityInput struct {
	Type       string         `json:"type" jsonschema:"Entity type, stored as a node label (e.g. Person, Company)"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"Entity properties; id (or else name) becomes the entity id"`
}

type CreateRelationsInput struct {
	Relations []RelationInput `json:"relations" jsonschema:"Array of relations to create"`
}

type RelationInput struct {
	Type       string         `json:"type" jsonschema:"Relationship type (e.g. WORKS_AT, KNOWS)"`
	From       string         `json:"from" jsonschema:"Id of the source entity"`
	To         string         `json:"to" jsonschema:"Id of the target entity"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"Optional relationship properties"`
}

type DeleteEntitiesInput struct {
	EntityIDs []string `json:"entity_ids" jsonschema:"Ids of the entities to delete"`
	Cascade   bool     `json:"cascade,omitempty" jsonschema:"Also delete every relationship of the entities (default false)"`
	DryRun    bool     `json:"dry_run,omitempty" jsonschema:"Only report what would be deleted (default false)"`
}

type SearchEntitiesInput struct {
	SearchTerm           string   `json:"search_term,omitempty" jsonschema:"Text to look for in property values"`
	EntityType           string   `json:"entity_type,omitempty" jsonschema:"Only return entities with this type"`
	Properties           []string `json:"properties,omitempty" jsonschema:"Property names to search in; without search_term, entities having any of them"`
	IncludeRelationships bool     `json:"include_relationships,omitempty" jsonschema:"Attach each entity's relationships and the node on the other end"`
	FuzzyMatch           *bool    `json:"fuzzy_match,omitempty" jsonschema:"Case-insensitive substring match (default true); false requires an exact value"`
}

type UpdateEntitiesInput struct {
	Updates []UpdateInput `json:"updates" jsonschema:"Array of entity updates"`
}

type UpdateInput struct {
	ID               string         `json:"id" jsonschema:"Id of the entity to update"`
	Properties       map[string]any `json:"properties,omitempty" jsonschema:"Properties to set or overwrite; a null value removes the property"`
	RemoveProperties []string       `json:"remove_properties,omitempty" jsonschema:"Property names to remove (id and type cannot be removed)"`
	AddLabels        []string       `json:"add_labels,omitempty" jsonschema:"Labels to add"`
	RemoveLabels     []string       `json:"remove_labels,omitempty" jsonschema:"Labels to remove (Entity cannot be removed)"`
}

// --- Output types ---

type entitiesOutput struct {
	Result []models.Entity `json:"result"`
}

type relationsOutput struct {
	Result []models.Relationship `json:"result"`
	Errors []string              `json:"errors,omitempty"`
}

type searchOutput struct {
	Results []models.Entity `json:"results"`
}

type schemaOutput struct {
	Schema *models.Schema `json:"schema"`
}

// --- Handlers ---

func (t *GraphTools) CreateEntities(ctx context.Context, _ *mcp.CallToolRequest, input CreateEntitiesInput) (*mcp.CallToolResult, any, error) {
	entities := make([]graph.EntityInput, len(input.Entities))
	for i, e := range input.Entities {
		entities[i] = graph.EntityInput{Type: e.Type, Properties: e.Properties}
	}

	created, err := t.Graph.CreateEntities(ctx, entities)
	if err != nil {
		return failure("Failed to create entities", err), nil, nil
	}
	return toolJSON(entitiesOutput{Result: created})
}

func (t *GraphTools) CreateRelations(ctx context.Context, _ *mcp.CallToolRequest, input CreateRelationsInput) (*mcp.CallToolResult, any, error) {
	relations := make([]graph.RelationInput, len(input.Relations))
	for i, r := range input.Relations {
		relations[i] = graph.RelationInput{Type: r.Type, From: r.From, To: r.To, Properties: r.Properties}
	}

	created, failures, err := t.Graph.CreateRelations(ctx, relations)
	if err != nil {
		return failure("Failed to create relations", err), nil, nil
	}
	return toolJSON(relationsOutput{Result: created, Errors: failures})
}

func (t *GraphTools) DeleteEntities(ctx context.Context, _ *mcp.CallToolRequest, input DeleteEntitiesInput) (*mcp.CallToolResult, any, error) {
	reqs := make([]graph.DeleteRequest, len(input.EntityIDs))
	for i, id := range input.EntityIDs {
		reqs[i] = graph.DeleteRequest{ID: id, Cascade: input.Cascade}
	}

	result, err := t.Graph.DeleteEntities(ctx, reqs, input.DryRun)
	if err != nil {
		return failure("Failed to delete entities", err), nil, nil
	}
	return toolJSON(result)
}

func (t *GraphTools) SearchEntities(ctx context.Context, _ *mcp.CallToolRequest, input SearchEntitiesInput) (*mcp.CallToolResult, any, error) {
	fuzzy := true
	if input.FuzzyMatch != nil {
		fuzzy = *input.FuzzyMatch
	}

	results, err := t.Graph.Search(ctx, graph.SearchQuery{
		Term:                 input.SearchTerm,
		Type:                 input.EntityType,
		Properties:           input.Properties,
		IncludeRelationships: input.IncludeRelationships,
		Fuzzy:                fuzzy,
	})
	if err != nil {
		return failure("Failed to search entities", err), nil, nil
	}
	return toolJSON(searchOutput{Results: results})
}

func (t *GraphTools) UpdateEntities(ctx context.Context, _ *mcp.CallToolRequest, input UpdateEntitiesInput) (*mcp.CallToolResult, any, error) {
	reqs := make([]graph.UpdateRequest, len(input.Updates))
	for i, u := range input.Updates {
		reqs[i] = graph.UpdateRequest{
			ID:               u.ID,
			Properties:       u.Properties,
			RemoveProperties: u.RemoveProperties,
			AddLabels:        u.AddLabels,
			RemoveLabels:     u.RemoveLabels,
		}
	}

	result, err := t.Graph.UpdateEntities(ctx, reqs)
	if err != nil {
		return failure("Failed to update entities", err), nil, nil
	}
	return toolJSON(result)
}

func (t *GraphTools) IntrospectSchema(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	schema, err := t.Graph.IntrospectSchema(ctx)
	if err != nil {
		return failure("Failed to introspect schema", err), nil, nil
	}
	return toolJSON(schemaOutput{Schema: schema})
}

// failure renders err as a tool error. Argument errors are the caller's to
// fix and are reported as such; anything else is a store fault.
func failure(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, graph.ErrInvalidArgument) {
		return toolError("Invalid arguments: %v", err)
	}
	return toolError("%s: %v", action, err)
}
