package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// Neo4jConfig holds the connection settings of a Neo4j store.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	// Database is the target database; empty selects the server default.
	Database string

	MaxConnectionPoolSize int
	AcquisitionTimeout    time.Duration
}

// Neo4jStore runs the graph operations as Cypher against a Neo4j server.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// OpenNeo4j creates the driver and verifies the server is reachable.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.AcquisitionTimeout > 0 {
				c.ConnectionAcquisitionTimeout = cfg.AcquisitionTimeout
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

func (s *Neo4jStore) Session(ctx context.Context) (graph.Session, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	return &neo4jSession{session: sess}, nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

type neo4jSession struct {
	session neo4j.SessionWithContext
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

func (s *neo4jSession) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	out, err := s.session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (s *neo4jSession) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	out, err := s.session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (s *neo4jSession) CreateEntity(ctx context.Context, label string, props map[string]any) (models.Entity, error) {
	records, err := s.write(ctx, cypherCreateEntity(label), map[string]any{"properties": props})
	if err != nil {
		return models.Entity{}, fmt.Errorf("create node: %w", err)
	}
	if len(records) == 0 {
		return models.Entity{}, fmt.Errorf("create node: no record returned")
	}
	return entityFromRecord(records[0]), nil
}

func (s *neo4jSession) CreateRelationship(ctx context.Context, relType, fromID, toID string, props map[string]any) (*models.Relationship, error) {
	if props == nil {
		props = map[string]any{}
	}
	records, err := s.write(ctx, cypherCreateRelationship(relType), map[string]any{
		"from_id":    fromID,
		"to_id":      toID,
		"properties": props,
	})
	if err != nil {
		return nil, fmt.Errorf("create relationship: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	rel := relationshipFromRecord(records[0])
	return &rel, nil
}

func (s *neo4jSession) MatchEntities(ctx context.Context, ids []string) ([]models.Entity, error) {
	records, err := s.read(ctx, cypherMatchEntities, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}
	return entitiesFromRecords(records), nil
}

func (s *neo4jSession) IncidentRelationships(ctx context.Context, ids []string) ([]models.Relationship, error) {
	records, err := s.read(ctx, cypherIncidentRelationships, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("match relationships: %w", err)
	}
	rels := make([]models.Relationship, len(records))
	for i, rec := range records {
		rels[i] = relationshipFromRecord(rec)
	}
	return rels, nil
}

func (s *neo4jSession) DeleteDetached(ctx context.Context, ids []string) (graph.DeleteCounts, error) {
	out, err := s.session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypherDeleteDetached, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		counters := summary.Counters()
		return graph.DeleteCounts{
			Entities:      int64(counters.NodesDeleted()),
			Relationships: int64(counters.RelationshipsDeleted()),
		}, nil
	})
	if err != nil {
		return graph.DeleteCounts{}, fmt.Errorf("detach delete: %w", err)
	}
	return out.(graph.DeleteCounts), nil
}

func (s *neo4jSession) DeleteIsolated(ctx context.Context, ids []string) ([]models.Entity, error) {
	records, err := s.write(ctx, cypherDeleteIsolated, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("delete isolated: %w", err)
	}
	return entitiesFromRecords(records), nil
}

func (s *neo4jSession) Search(ctx context.Context, p graph.Predicate) ([]models.Entity, error) {
	query, params := cypherSearch(p)
	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return entitiesFromRecords(records), nil
}

func (s *neo4jSession) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	records, err := s.read(ctx, cypherExistingIDs, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("existing ids: %w", err)
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	found, _ := records[0].Get("ids")
	return asStrings(found), nil
}

func (s *neo4jSession) Apply(ctx context.Context, m graph.Mutation) (*models.Entity, error) {
	query, params := cypherApply(m)
	records, err := s.write(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("apply update: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	e := entityFromRecord(records[0])
	return &e, nil
}

func (s *neo4jSession) Labels(ctx context.Context) ([]string, error) {
	return s.column(ctx, cypherLabels, nil, "label")
}

func (s *neo4jSession) RelationshipTypes(ctx context.Context) ([]string, error) {
	return s.column(ctx, cypherRelationshipTypes, nil, "relationshipType")
}

func (s *neo4jSession) NodePropertyKeys(ctx context.Context, label string, sample int) ([]string, error) {
	return s.keys(ctx, cypherNodePropertyKeys(label), sample)
}

func (s *neo4jSession) RelationshipPropertyKeys(ctx context.Context, relType string, sample int) ([]string, error) {
	return s.keys(ctx, cypherRelationshipPropertyKeys(relType), sample)
}

func (s *neo4jSession) column(ctx context.Context, query string, params map[string]any, key string) ([]string, error) {
	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		v, _ := rec.Get(key)
		out = append(out, asString(v))
	}
	return out, nil
}

func (s *neo4jSession) keys(ctx context.Context, query string, sample int) ([]string, error) {
	records, err := s.read(ctx, query, map[string]any{"sample": sample})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	v, _ := records[0].Get("keys")
	return asStrings(v), nil
}

// --- Record decoding ---

func entitiesFromRecords(records []*neo4j.Record) []models.Entity {
	out := make([]models.Entity, len(records))
	for i, rec := range records {
		out[i] = entityFromRecord(rec)
	}
	return out
}

func entityFromRecord(rec *neo4j.Record) models.Entity {
	id, _ := rec.Get("id")
	labels, _ := rec.Get("labels")
	props, _ := rec.Get("properties")
	e := models.Entity{
		ID:         asString(id),
		Type:       asStrings(labels),
		Properties: asMap(props),
	}
	if rels, ok := rec.Get("relationships"); ok {
		e.Relationships = relatedFromValue(rels)
	}
	return e
}

func relationshipFromRecord(rec *neo4j.Record) models.Relationship {
	key, _ := rec.Get("key")
	relType, _ := rec.Get("type")
	from, _ := rec.Get("from_id")
	to, _ := rec.Get("to_id")
	props, _ := rec.Get("properties")
	r := models.Relationship{
		Key:  asString(key),
		Type: asString(relType),
		From: asString(from),
		To:   asString(to),
	}
	if m := asMap(props); len(m) > 0 {
		r.Properties = m
	}
	return r
}

func relatedFromValue(v any) []models.RelatedEntity {
	items, _ := v.([]any)
	out := make([]models.RelatedEntity, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		node := asMap(m["node"])
		out = append(out, models.RelatedEntity{
			Type:      asString(m["type"]),
			Direction: asString(m["direction"]),
			Node: models.NodeSummary{
				ID:         asString(node["id"]),
				Type:       asString(node["type"]),
				Properties: asMap(node["properties"]),
			},
		})
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return graph.Stringify(t)
	}
}

func asStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, asString(item))
		}
	}
	return out
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
