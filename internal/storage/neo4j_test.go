package storage

import (
	"context"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
)

// setupNeo4j starts a Neo4j container, or uses NEO4J_URL when set, and
// returns a store with an empty database.
func setupNeo4j(t *testing.T) *Neo4jStore {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Neo4j test in short mode")
	}

	ctx := context.Background()
	cfg := Neo4jConfig{Username: "neo4j", Password: "password"}

	if uri := os.Getenv("NEO4J_URL"); uri != "" {
		cfg.URI = uri
		if u := os.Getenv("NEO4J_USERNAME"); u != "" {
			cfg.Username = u
		}
		if p := os.Getenv("NEO4J_PASSWORD"); p != "" {
			cfg.Password = p
		}
	} else {
		testcontainers.SkipIfProviderIsNotHealthy(t)

		container, err := tcneo4j.Run(ctx,
			"neo4j:5.15.0",
			tcneo4j.WithAdminPassword("testpassword"),
		)
		if err != nil && strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skip("Docker not available")
		}
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := container.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate Neo4j container: %v", err)
			}
		})

		cfg.URI, err = container.BoltUrl(ctx)
		require.NoError(t, err)
		cfg.Password = "testpassword"
	}

	store, err := OpenNeo4j(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(ctx) })

	sess, err := store.Session(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)
	_, err = sess.(*neo4jSession).write(ctx, "MATCH (n) DETACH DELETE n", nil)
	require.NoError(t, err)

	return store
}

func TestNeo4jStore_EntityLifecycle(t *testing.T) {
	store := setupNeo4j(t)
	ctx := context.Background()

	sess, err := store.Session(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)

	alice, err := sess.CreateEntity(ctx, "Person", map[string]any{"id": "alice", "type": "Person", "age": int64(30)})
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.ID)
	assert.ElementsMatch(t, []string{"Entity", "Person"}, alice.Type)
	assert.Equal(t, int64(30), alice.Properties["age"])

	_, err = sess.CreateEntity(ctx, "Person", map[string]any{"id": "bob", "type": "Person"})
	require.NoError(t, err)

	rel, err := sess.CreateRelationship(ctx, "KNOWS", "alice", "bob", map[string]any{"since": int64(2020)})
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "alice", rel.From)
	assert.Equal(t, "bob", rel.To)
	assert.NotEmpty(t, rel.Key)

	missing, err := sess.CreateRelationship(ctx, "KNOWS", "alice", "ghost", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	rels, err := sess.IncidentRelationships(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	isolated, err := sess.DeleteIsolated(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Empty(t, isolated)

	counts, err := sess.DeleteDetached(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, graph.DeleteCounts{Entities: 1, Relationships: 1}, counts)

	left, err := sess.ExistingIDs(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, left)
}

func TestNeo4jStore_SearchAndSchema(t *testing.T) {
	store := setupNeo4j(t)
	ctx := context.Background()

	svc := graph.New(store)
	_, err := svc.CreateEntities(ctx, []graph.EntityInput{
		{Type: "Person", Properties: map[string]any{"name": "John Smith_X", "age": float64(40)}},
		{Type: "Person", Properties: map[string]any{"name": "Jane Smith_X"}},
		{Type: "Company", Properties: map[string]any{"name": "Smith_X Industries"}},
	})
	require.NoError(t, err)

	fuzzy, err := svc.Search(ctx, graph.SearchQuery{Term: "Smith_X", Properties: []string{"name"}, Fuzzy: true})
	require.NoError(t, err)
	assert.Len(t, fuzzy, 3)

	exact, err := svc.Search(ctx, graph.SearchQuery{Term: "John Smith_X", Properties: []string{"name"}})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "John Smith_X", exact[0].ID)

	typed, err := svc.Search(ctx, graph.SearchQuery{Term: "Smith_X", Type: "Person", Fuzzy: true})
	require.NoError(t, err)
	assert.Len(t, typed, 2)

	byNumber, err := svc.Search(ctx, graph.SearchQuery{Term: "40"})
	require.NoError(t, err)
	assert.Len(t, byNumber, 1)

	schema, err := svc.IntrospectSchema(ctx)
	require.NoError(t, err)
	assert.Subset(t, schema.NodeLabels, []string{"Entity", "Person", "Company"})
	assert.True(t, slices.Contains(schema.NodeProperties["Person"], "name"))
}

func TestNeo4jService_UpdateDeleteAndRelationships(t *testing.T) {
	store := setupNeo4j(t)
	ctx := context.Background()
	svc := graph.New(store)

	_, err := svc.CreateEntities(ctx, []graph.EntityInput{
		{Type: "Person", Properties: map[string]any{"name": "Alice", "role": "engineer"}},
		{Type: "Person", Properties: map[string]any{"name": "Bob"}},
		{Type: "Person", Properties: map[string]any{"name": "Loner"}},
		{Type: "Company", Properties: map[string]any{"name": "Acme"}},
	})
	require.NoError(t, err)
	created, failures, err := svc.CreateRelations(ctx, []graph.RelationInput{
		{Type: "WORKS_AT", From: "Alice", To: "Acme", Properties: map[string]any{"since": float64(2021)}},
		{Type: "KNOWS", From: "Bob", To: "Alice"},
	})
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Len(t, created, 2)

	// update: set, null-remove, explicit remove, add and remove labels
	updated, err := svc.UpdateEntities(ctx, []graph.UpdateRequest{
		{ID: "Alice", Properties: map[string]any{"role": nil, "level": "senior"}, AddLabels: []string{"Employee"}},
		{ID: "Bob", RemoveLabels: []string{"Person"}, AddLabels: []string{"Contractor"}},
	})
	require.NoError(t, err)
	require.True(t, updated.Success, "%v", updated.Errors)
	require.Len(t, updated.UpdatedEntities, 2)
	alice := updated.UpdatedEntities[0]
	assert.Equal(t, "senior", alice.Properties["level"])
	assert.NotContains(t, alice.Properties, "role")
	assert.ElementsMatch(t, []string{"Entity", "Person", "Employee"}, alice.Type)
	assert.ElementsMatch(t, []string{"Entity", "Contractor"}, updated.UpdatedEntities[1].Type)

	missing, err := svc.UpdateEntities(ctx, []graph.UpdateRequest{
		{ID: "Alice", Properties: map[string]any{"level": "staff"}},
		{ID: "Ghost", Properties: map[string]any{"level": "none"}},
	})
	require.NoError(t, err)
	assert.False(t, missing.Success)
	assert.Empty(t, missing.UpdatedEntities)

	// search with relationships from both directions
	results, err := svc.Search(ctx, graph.SearchQuery{Term: "Alice", Properties: []string{"name"}, IncludeRelationships: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "senior", results[0].Properties["level"], "failed batch must not apply")
	require.Len(t, results[0].Relationships, 2)
	byType := map[string]string{}
	for _, r := range results[0].Relationships {
		byType[r.Type] = r.Direction + ":" + r.Node.ID
	}
	assert.Equal(t, "outgoing:Acme", byType["WORKS_AT"])
	assert.Equal(t, "incoming:Bob", byType["KNOWS"])

	// non-cascade: refuse to orphan, but delete an isolated entity
	refused, err := svc.DeleteEntities(ctx, []graph.DeleteRequest{{ID: "Alice"}}, false)
	require.NoError(t, err)
	assert.False(t, refused.Success)
	assert.Len(t, refused.OrphanedRelationships, 2)

	isolated, err := svc.DeleteEntities(ctx, []graph.DeleteRequest{{ID: "Loner"}}, false)
	require.NoError(t, err)
	assert.True(t, isolated.Success)
	require.Len(t, isolated.DeletedEntities, 1)
	assert.Equal(t, "Loner", isolated.DeletedEntities[0].ID)
	assert.Equal(t, int64(1), isolated.Stats.EntitiesDeleted)

	// dry run reports and leaves the graph alone
	preview, err := svc.DeleteEntities(ctx, []graph.DeleteRequest{{ID: "Alice", Cascade: true}}, true)
	require.NoError(t, err)
	assert.True(t, preview.Success)
	assert.Len(t, preview.ImpactedRelationships, 2)
	assert.Empty(t, preview.DeletedEntities)

	cascaded, err := svc.DeleteEntities(ctx, []graph.DeleteRequest{{ID: "Alice", Cascade: true}}, false)
	require.NoError(t, err)
	assert.True(t, cascaded.Success)
	assert.Equal(t, int64(1), cascaded.Stats.EntitiesDeleted)
	assert.Equal(t, int64(2), cascaded.Stats.RelationshipsDeleted)

	impact, err := svc.ComputeImpact(ctx, []string{"Alice", "Bob", "Acme", "Loner"})
	require.NoError(t, err)
	assert.Len(t, impact.Entities, 2)
	assert.Empty(t, impact.Relationships)
}
