package storage

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "graph-mcp-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// setupSession opens a fresh SQLite graph in a temp directory and returns a session on it.
func setupSession(t *testing.T) *sqliteSession {
	t.Helper()
	store, err := OpenSQLite(tempDir(t))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })

	sess, err := store.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	t.Cleanup(func() { sess.Close(context.Background()) })
	return sess.(*sqliteSession)
}

func mustCreate(t *testing.T, s *sqliteSession, label, id string, extra map[string]any) models.Entity {
	t.Helper()
	props := map[string]any{"id": id, "type": label}
	for k, v := range extra {
		props[k] = v
	}
	e, err := s.CreateEntity(context.Background(), label, props)
	if err != nil {
		t.Fatalf("CreateEntity(%s): %v", id, err)
	}
	return e
}

func mustLink(t *testing.T, s *sqliteSession, relType, from, to string) models.Relationship {
	t.Helper()
	rel, err := s.CreateRelationship(context.Background(), relType, from, to, nil)
	if err != nil {
		t.Fatalf("CreateRelationship(%s->%s): %v", from, to, err)
	}
	if rel == nil {
		t.Fatalf("CreateRelationship(%s->%s): endpoint not found", from, to)
	}
	return *rel
}

func TestOpenSQLite(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close(context.Background())

	if _, err := os.Stat(filepath.Join(dir, "graph.db")); err != nil {
		t.Errorf("Expected graph.db to exist: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	// Reopening applies the schema again without error
	again, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close(context.Background())
}

func TestCreateEntity(t *testing.T) {
	s := setupSession(t)

	e := mustCreate(t, s, "Person", "alice", map[string]any{"age": int64(30), "active": true, "tags": []any{"a", "b"}})

	if e.ID != "alice" {
		t.Errorf("ID = %q, want %q", e.ID, "alice")
	}
	if !slices.Equal(e.Type, []string{"Entity", "Person"}) {
		t.Errorf("Type = %v, want [Entity Person]", e.Type)
	}
	if e.Properties["age"] != int64(30) {
		t.Errorf("age = %#v, want int64(30)", e.Properties["age"])
	}
	if e.Properties["active"] != true {
		t.Errorf("active = %#v, want true", e.Properties["active"])
	}
	if tags, ok := e.Properties["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v, want two items", e.Properties["tags"])
	}
}

func TestCreateRelationship_MissingEndpoint(t *testing.T) {
	s := setupSession(t)
	mustCreate(t, s, "Person", "alice", nil)

	rel, err := s.CreateRelationship(context.Background(), "KNOWS", "alice", "ghost", nil)
	if err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}
	if rel != nil {
		t.Errorf("Expected nil relationship for missing endpoint, got %+v", rel)
	}
}

func TestCreateRelationship_Duplicates(t *testing.T) {
	s := setupSession(t)
	mustCreate(t, s, "Person", "alice", nil)
	mustCreate(t, s, "Person", "bob", nil)

	first := mustLink(t, s, "KNOWS", "alice", "bob")
	second := mustLink(t, s, "KNOWS", "alice", "bob")
	if first.Key == second.Key {
		t.Error("Expected two distinct edges")
	}

	rels, err := s.IncidentRelationships(context.Background(), []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 {
		t.Errorf("Expected 2 relationships, got %d", len(rels))
	}
}

func TestIncidentRelationships(t *testing.T) {
	s := setupSession(t)
	mustCreate(t, s, "Person", "alice", nil)
	mustCreate(t, s, "Person", "bob", nil)
	mustCreate(t, s, "Person", "carol", nil)
	mustLink(t, s, "KNOWS", "alice", "bob")
	mustLink(t, s, "KNOWS", "carol", "alice")
	mustLink(t, s, "SELF", "alice", "alice")
	mustLink(t, s, "KNOWS", "bob", "carol")

	rels, err := s.IncidentRelationships(context.Background(), []string{"alice", "bob"})
	if err != nil {
		t.Fatal(err)
	}
	// every edge touches alice or bob; each must appear once
	if len(rels) != 4 {
		t.Fatalf("Expected 4 relationships, got %d: %+v", len(rels), rels)
	}
	seen := map[string]bool{}
	for _, r := range rels {
		if seen[r.Key] {
			t.Errorf("Duplicate relationship %s", r.Key)
		}
		seen[r.Key] = true
	}
}

func TestDeleteIsolated(t *testing.T) {
	s := setupSession(t)
	ctx := context.Background()
	mustCreate(t, s, "Person", "alice", nil)
	mustCreate(t, s, "Person", "bob", nil)
	mustCreate(t, s, "Person", "loner", nil)
	mustLink(t, s, "KNOWS", "alice", "bob")

	deleted, err := s.DeleteIsolated(ctx, []string{"alice", "bob", "loner"})
	if err != nil {
		t.Fatalf("DeleteIsolated: %v", err)
	}
	if len(deleted) != 1 || deleted[0].ID != "loner" {
		t.Fatalf("Expected only loner deleted, got %+v", deleted)
	}
	if !slices.Equal(deleted[0].Type, []string{"Entity", "Person"}) {
		t.Errorf("Deleted entity should keep its labels, got %v", deleted[0].Type)
	}

	left, err := s.ExistingIDs(ctx, []string{"alice", "bob", "loner"})
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(left)
	if !slices.Equal(left, []string{"alice", "bob"}) {
		t.Errorf("ExistingIDs = %v, want [alice bob]", left)
	}
}

func TestDeleteDetached(t *testing.T) {
	s := setupSession(t)
	ctx := context.Background()
	mustCreate(t, s, "Person", "alice", nil)
	mustCreate(t, s, "Person", "bob", nil)
	mustCreate(t, s, "Person", "carol", nil)
	mustLink(t, s, "KNOWS", "alice", "bob")
	mustLink(t, s, "KNOWS", "bob", "carol")

	counts, err := s.DeleteDetached(ctx, []string{"bob"})
	if err != nil {
		t.Fatalf("DeleteDetached: %v", err)
	}
	if counts.Entities != 1 || counts.Relationships != 2 {
		t.Errorf("counts = %+v, want 1 entity and 2 relationships", counts)
	}

	rels, err := s.IncidentRelationships(ctx, []string{"alice", "carol"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 0 {
		t.Errorf("Expected no relationships left, got %d", len(rels))
	}
}

func TestApply(t *testing.T) {
	s := setupSession(t)
	ctx := context.Background()
	mustCreate(t, s, "Person", "alice", map[string]any{"age": int64(30), "city": "Lisbon"})

	updated, err := s.Apply(ctx, graph.Mutation{
		ID:           "alice",
		Set:          map[string]any{"age": int64(31), "email": "alice@example.com"},
		Remove:       []string{"city"},
		AddLabels:    []string{"Employee"},
		RemoveLabels: []string{"Person"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if updated == nil {
		t.Fatal("Apply returned nil for an existing entity")
	}
	if updated.Properties["age"] != int64(31) {
		t.Errorf("age = %#v, want 31", updated.Properties["age"])
	}
	if updated.Properties["email"] != "alice@example.com" {
		t.Errorf("email = %#v", updated.Properties["email"])
	}
	if _, ok := updated.Properties["city"]; ok {
		t.Error("city should have been removed")
	}
	if !slices.Equal(updated.Type, []string{"Entity", "Employee"}) {
		t.Errorf("Type = %v, want [Entity Employee]", updated.Type)
	}

	missing, err := s.Apply(ctx, graph.Mutation{ID: "ghost", Set: map[string]any{"x": "y"}})
	if err != nil {
		t.Fatalf("Apply(ghost): %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing entity, got %+v", missing)
	}
}

func TestSearch_StringifiesValues(t *testing.T) {
	s := setupSession(t)
	ctx := context.Background()
	mustCreate(t, s, "Item", "widget", map[string]any{"count": int64(42), "enabled": true})
	mustCreate(t, s, "Item", "gadget", map[string]any{"count": int64(7), "enabled": false})
	mustCreate(t, s, "School", "ens", map[string]any{"title": "École Normale Supérieure"})

	tests := []struct {
		name string
		p    graph.Predicate
		want []string
	}{
		{"number exact", graph.Predicate{Mode: graph.AnyProperty, Term: "42"}, []string{"widget"}},
		{"boolean exact", graph.Predicate{Mode: graph.PropertiesMatch, Properties: []string{"enabled"}, Term: "false"}, []string{"gadget"}},
		{"fuzzy case-insensitive", graph.Predicate{Mode: graph.AnyProperty, Term: "GADG", Fuzzy: true}, []string{"gadget"}},
		{"fuzzy folds non-ASCII", graph.Predicate{Mode: graph.AnyProperty, Term: "école", Fuzzy: true}, []string{"ens"}},
		{"fuzzy words folds non-ASCII", graph.Predicate{Mode: graph.PropertiesMatch, Properties: []string{"title"}, Words: []string{"SUPÉRIEURE"}, Term: "SUPÉRIEURE", Fuzzy: true}, []string{"ens"}},
		{"present", graph.Predicate{Mode: graph.PropertiesPresent, Properties: []string{"count"}}, []string{"gadget", "widget"}},
		{"absent property", graph.Predicate{Mode: graph.PropertiesPresent, Properties: []string{"missing"}}, nil},
		{"label filter", graph.Predicate{Label: "Person"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Search(ctx, tt.p)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			var ids []string
			for _, e := range results {
				ids = append(ids, e.ID)
			}
			slices.Sort(ids)
			if !slices.Equal(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestSearch_IncludeRelationships(t *testing.T) {
	s := setupSession(t)
	mustCreate(t, s, "Person", "alice", nil)
	mustCreate(t, s, "Company", "acme", nil)
	mustLink(t, s, "WORKS_AT", "alice", "acme")

	results, err := s.Search(context.Background(), graph.Predicate{
		Mode:                 graph.PropertiesMatch,
		Properties:           []string{"id"},
		Term:                 "acme",
		IncludeRelationships: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	rels := results[0].Relationships
	if len(rels) != 1 {
		t.Fatalf("Expected 1 relationship, got %d", len(rels))
	}
	if rels[0].Direction != models.DirectionIncoming {
		t.Errorf("Direction = %q, want incoming", rels[0].Direction)
	}
	if rels[0].Node.ID != "alice" || rels[0].Node.Type != "Person" {
		t.Errorf("Node = %+v, want alice/Person", rels[0].Node)
	}
}

func TestPropertyKeys(t *testing.T) {
	s := setupSession(t)
	ctx := context.Background()
	mustCreate(t, s, "Person", "alice", map[string]any{"age": int64(30)})
	mustCreate(t, s, "Person", "bob", map[string]any{"email": "bob@example.com"})

	labels, err := s.Labels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(labels, []string{"Entity", "Person"}) {
		t.Errorf("Labels = %v", labels)
	}

	sampled, err := s.NodePropertyKeys(ctx, "Person", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sampled, []string{"age", "id", "type"}) {
		t.Errorf("sampled keys = %v, want [age id type]", sampled)
	}

	all, err := s.NodePropertyKeys(ctx, "Person", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(all, "email") {
		t.Errorf("keys with larger sample = %v, want email included", all)
	}
}
