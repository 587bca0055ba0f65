package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// textValue renders a json_each row (aliased p) as text: booleans as
// true/false, numbers in their decimal form, lists and objects as NULL.
const textValue = `CASE p.type WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' ` +
	`WHEN 'integer' THEN CAST(p.value AS TEXT) WHEN 'real' THEN CAST(p.value AS TEXT) ` +
	`WHEN 'text' THEN p.value END`

// compileSearch translates p into a SELECT over nodes returning nodeColumns.
// It relies on the Unicode lower() registered by OpenSQLite.
func compileSearch(p graph.Predicate) (string, []any) {
	clauses := []string{entityFilter}
	var args []any

	if p.Label != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM node_labels tl WHERE tl.node_id = n.id AND tl.label = ?)`)
		args = append(args, p.Label)
	}

	switch p.Mode {
	case graph.PropertiesPresent:
		marks, keyArgs := placeholders(p.Properties)
		clauses = append(clauses, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM json_each(n.properties) p WHERE p.key IN (%s) AND p.type <> 'null')`, marks))
		args = append(args, keyArgs...)

	case graph.PropertiesMatch:
		marks, keyArgs := placeholders(p.Properties)
		cond, condArgs := matchCondition(p)
		clauses = append(clauses, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM json_each(n.properties) p WHERE p.key IN (%s) AND (%s))`, marks, cond))
		args = append(args, keyArgs...)
		args = append(args, condArgs...)

	case graph.AnyProperty:
		cond, condArgs := matchCondition(p)
		clauses = append(clauses, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM json_each(n.properties) p WHERE %s)`, cond))
		args = append(args, condArgs...)
	}

	query := fmt.Sprintf(`SELECT %s FROM nodes n WHERE %s ORDER BY n.id`, nodeColumns, strings.Join(clauses, " AND "))
	return query, args
}

// matchCondition is the per-value test: equality with the whole term in
// exact mode, otherwise case-insensitive containment of any word.
func matchCondition(p graph.Predicate) (string, []any) {
	if !p.Fuzzy {
		return textValue + ` = ?`, []any{p.Term}
	}

	words := p.Words
	if p.Mode == graph.AnyProperty || len(words) == 0 {
		words = []string{p.Term}
	}
	parts := make([]string, len(words))
	args := make([]any, len(words))
	for i, w := range words {
		parts[i] = `instr(lower(` + textValue + `), lower(?)) > 0`
		args[i] = w
	}
	return strings.Join(parts, " OR "), args
}

func (s *sqliteSession) Search(ctx context.Context, p graph.Predicate) ([]models.Entity, error) {
	query, args := compileSearch(p)
	nodes, err := queryNodes(ctx, s.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}

	if p.IncludeRelationships {
		for i := range nodes {
			related, err := s.relatedEntities(ctx, nodes[i].rowID)
			if err != nil {
				return nil, err
			}
			nodes[i].entity.Relationships = related
		}
	}
	return entitiesOf(nodes), nil
}

// relatedEntities lists the relationships of one node with the node on the
// other end. A self-loop is reported once, as outgoing.
func (s *sqliteSession) relatedEntities(ctx context.Context, rowID int64) ([]models.RelatedEntity, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT e.type, e.from_node = ?, o.id, o.entity_id, o.properties
		FROM edges e
		JOIN nodes o ON o.id = CASE WHEN e.from_node = ? THEN e.to_node ELSE e.from_node END
		WHERE e.from_node = ? OR e.to_node = ?
		ORDER BY e.created_at, e.id`,
		rowID, rowID, rowID, rowID,
	)
	if err != nil {
		return nil, fmt.Errorf("query related nodes: %w", err)
	}

	var (
		related []models.RelatedEntity
		others  []nodeRow
	)
	for rows.Next() {
		var (
			rel      models.RelatedEntity
			outgoing bool
			other    nodeRow
			entityID sql.NullString
			raw      string
		)
		if err := rows.Scan(&rel.Type, &outgoing, &other.rowID, &entityID, &raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan related node: %w", err)
		}
		props, err := decodeProperties(raw)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rel.Direction = models.DirectionIncoming
		if outgoing {
			rel.Direction = models.DirectionOutgoing
		}
		other.entity = models.Entity{ID: entityID.String, Properties: props}
		related = append(related, rel)
		others = append(others, other)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate related nodes: %w", err)
	}
	rows.Close()

	if err := attachLabels(ctx, s.conn, others); err != nil {
		return nil, err
	}
	for i, o := range others {
		related[i].Node = models.NodeSummary{
			ID:         o.entity.ID,
			Type:       primaryLabel(o.entity.Type),
			Properties: o.entity.Properties,
		}
	}
	return related, nil
}
