package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/ext/unicode"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// SQLiteStore is an embedded property graph kept in a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) graph.db under dataDir and applies the schema.
// Every connection gets Unicode-aware lower() and upper(), so fuzzy search
// folds case beyond ASCII.
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "graph.db")
	db, err := driver.Open("file:"+dbPath+sqliteDSNPragmas, unicode.Register)
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping graph db: %w", err)
	}
	if _, err := db.Exec(GraphSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate graph db: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Session pins one pooled connection for the lifetime of the session.
func (s *SQLiteStore) Session(ctx context.Context) (graph.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &sqliteSession{conn: conn}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

// queryer is implemented by both *sql.Conn and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteSession struct {
	conn *sql.Conn
}

func (s *sqliteSession) Close(context.Context) error {
	return s.conn.Close()
}

func (s *sqliteSession) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqliteSession) CreateEntity(ctx context.Context, label string, props map[string]any) (models.Entity, error) {
	raw, err := encodeProperties(props)
	if err != nil {
		return models.Entity{}, err
	}

	var created models.Entity
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var nodeID int64
		if err := tx.QueryRowContext(ctx, `INSERT INTO nodes (properties) VALUES (?) RETURNING id`, raw).Scan(&nodeID); err != nil {
			return fmt.Errorf("insert node: %w", err)
		}
		if err := addLabels(ctx, tx, []int64{nodeID}, []string{graph.EntityLabel, label}); err != nil {
			return err
		}
		nodes, err := queryNodes(ctx, tx, `SELECT `+nodeColumns+` FROM nodes n WHERE n.id = ?`, nodeID)
		if err != nil {
			return err
		}
		created = nodes[0].entity
		return nil
	})
	return created, err
}

func (s *sqliteSession) CreateRelationship(ctx context.Context, relType, fromID, toID string, props map[string]any) (*models.Relationship, error) {
	from, ok, err := firstEntityNode(ctx, s.conn, fromID)
	if err != nil || !ok {
		return nil, err
	}
	to, ok, err := firstEntityNode(ctx, s.conn, toID)
	if err != nil || !ok {
		return nil, err
	}

	raw, err := encodeProperties(props)
	if err != nil {
		return nil, err
	}
	key := uuid.New().String()
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO edges (id, type, from_node, to_node, properties) VALUES (?, ?, ?, ?, ?)`,
		key, relType, from, to, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("insert edge: %w", err)
	}

	rel := &models.Relationship{Type: relType, From: fromID, To: toID, Key: key}
	if len(props) > 0 {
		rel.Properties = props
	}
	return rel, nil
}

func (s *sqliteSession) MatchEntities(ctx context.Context, ids []string) ([]models.Entity, error) {
	if len(ids) == 0 {
		return []models.Entity{}, nil
	}
	marks, args := placeholders(ids)
	nodes, err := queryNodes(ctx, s.conn,
		fmt.Sprintf(`SELECT %s FROM nodes n WHERE n.entity_id IN (%s) AND %s ORDER BY n.id`, nodeColumns, marks, entityFilter),
		args...,
	)
	if err != nil {
		return nil, err
	}
	return entitiesOf(nodes), nil
}

func (s *sqliteSession) IncidentRelationships(ctx context.Context, ids []string) ([]models.Relationship, error) {
	if len(ids) == 0 {
		return []models.Relationship{}, nil
	}
	marks, args := placeholders(ids)
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		WITH targets AS (SELECT n.id FROM nodes n WHERE n.entity_id IN (%s) AND %s)
		SELECT e.id, e.type, f.entity_id, t.entity_id, e.properties
		FROM edges e
		JOIN nodes f ON f.id = e.from_node
		JOIN nodes t ON t.id = e.to_node
		WHERE e.from_node IN (SELECT id FROM targets) OR e.to_node IN (SELECT id FROM targets)
		ORDER BY e.created_at, e.id`, marks, entityFilter),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query incident edges: %w", err)
	}
	defer rows.Close()

	rels := []models.Relationship{}
	for rows.Next() {
		var (
			r        models.Relationship
			from, to sql.NullString
			raw      string
		)
		if err := rows.Scan(&r.Key, &r.Type, &from, &to, &raw); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		r.From, r.To = from.String, to.String
		props, err := decodeProperties(raw)
		if err != nil {
			return nil, err
		}
		if len(props) > 0 {
			r.Properties = props
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (s *sqliteSession) DeleteDetached(ctx context.Context, ids []string) (graph.DeleteCounts, error) {
	var counts graph.DeleteCounts
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		targets, err := entityNodeIDs(ctx, tx, ids)
		if err != nil || len(targets) == 0 {
			return err
		}
		marks, args := placeholders(targets)

		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM edges WHERE from_node IN (%[1]s) OR to_node IN (%[1]s)`, marks),
			append(args, args...)...,
		)
		if err != nil {
			return fmt.Errorf("delete edges: %w", err)
		}
		counts.Relationships, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM nodes WHERE id IN (%s)`, marks), args...)
		if err != nil {
			return fmt.Errorf("delete nodes: %w", err)
		}
		counts.Entities, _ = res.RowsAffected()
		return nil
	})
	return counts, err
}

func (s *sqliteSession) DeleteIsolated(ctx context.Context, ids []string) ([]models.Entity, error) {
	if len(ids) == 0 {
		return []models.Entity{}, nil
	}
	var deleted []models.Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		marks, args := placeholders(ids)
		nodes, err := queryNodes(ctx, tx, fmt.Sprintf(`
			SELECT %s FROM nodes n
			WHERE n.entity_id IN (%s) AND %s
			AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.from_node = n.id OR e.to_node = n.id)
			ORDER BY n.id`, nodeColumns, marks, entityFilter),
			args...,
		)
		if err != nil || len(nodes) == 0 {
			return err
		}

		rowIDs := make([]int64, len(nodes))
		for i, n := range nodes {
			rowIDs[i] = n.rowID
		}
		rowMarks, rowArgs := placeholders(rowIDs)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM nodes WHERE id IN (%s)`, rowMarks), rowArgs...); err != nil {
			return fmt.Errorf("delete nodes: %w", err)
		}
		deleted = entitiesOf(nodes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		deleted = []models.Entity{}
	}
	return deleted, nil
}

func (s *sqliteSession) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	marks, args := placeholders(ids)
	return queryStrings(ctx, s.conn,
		fmt.Sprintf(`SELECT DISTINCT n.entity_id FROM nodes n WHERE n.entity_id IN (%s) AND %s`, marks, entityFilter),
		args...,
	)
}

func (s *sqliteSession) Apply(ctx context.Context, m graph.Mutation) (*models.Entity, error) {
	var updated *models.Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		targets, err := entityNodeIDs(ctx, tx, []string{m.ID})
		if err != nil || len(targets) == 0 {
			return err
		}
		marks, args := placeholders(targets)

		if len(m.Set) > 0 {
			raw, err := encodeProperties(m.Set)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE nodes SET properties = json_patch(properties, ?), updated_at = datetime('now') WHERE id IN (%s)`, marks),
				append([]any{raw}, args...)...,
			)
			if err != nil {
				return fmt.Errorf("set properties: %w", err)
			}
		}

		if len(m.Remove) > 0 {
			paths := make([]string, len(m.Remove))
			for i, k := range m.Remove {
				paths[i] = jsonPath(k)
			}
			pathMarks, pathArgs := placeholders(paths)
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE nodes SET properties = json_remove(properties, %s), updated_at = datetime('now') WHERE id IN (%s)`, pathMarks, marks),
				append(pathArgs, args...)...,
			)
			if err != nil {
				return fmt.Errorf("remove properties: %w", err)
			}
		}

		if err := addLabels(ctx, tx, targets, m.AddLabels); err != nil {
			return err
		}

		if len(m.RemoveLabels) > 0 {
			labelMarks, labelArgs := placeholders(m.RemoveLabels)
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM node_labels WHERE node_id IN (%s) AND label IN (%s)`, marks, labelMarks),
				append(args, labelArgs...)...,
			)
			if err != nil {
				return fmt.Errorf("remove labels: %w", err)
			}
		}

		nodes, err := queryNodes(ctx, tx, `SELECT `+nodeColumns+` FROM nodes n WHERE n.id = ?`, targets[0])
		if err != nil {
			return err
		}
		if len(nodes) > 0 {
			updated = &nodes[0].entity
		}
		return nil
	})
	return updated, err
}

func (s *sqliteSession) Labels(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.conn, `SELECT DISTINCT label FROM node_labels ORDER BY label`)
}

func (s *sqliteSession) RelationshipTypes(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.conn, `SELECT DISTINCT type FROM edges ORDER BY type`)
}

func (s *sqliteSession) NodePropertyKeys(ctx context.Context, label string, sample int) ([]string, error) {
	return queryStrings(ctx, s.conn, `
		SELECT DISTINCT p.key
		FROM (SELECT n.properties FROM nodes n
		      JOIN node_labels l ON l.node_id = n.id
		      WHERE l.label = ? ORDER BY n.id LIMIT ?) s,
		     json_each(s.properties) p
		ORDER BY p.key`, label, sample)
}

func (s *sqliteSession) RelationshipPropertyKeys(ctx context.Context, relType string, sample int) ([]string, error) {
	return queryStrings(ctx, s.conn, `
		SELECT DISTINCT p.key
		FROM (SELECT e.properties FROM edges e
		      WHERE e.type = ? ORDER BY e.created_at, e.id LIMIT ?) s,
		     json_each(s.properties) p
		ORDER BY p.key`, relType, sample)
}

// --- Helpers ---

const nodeColumns = `n.id, n.entity_id, n.properties`

type nodeRow struct {
	rowID  int64
	entity models.Entity
}

// queryNodes runs a query selecting nodeColumns and fills in labels.
func queryNodes(ctx context.Context, q queryer, query string, args ...any) ([]nodeRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}

	var nodes []nodeRow
	for rows.Next() {
		var (
			n        nodeRow
			entityID sql.NullString
			raw      string
		)
		if err := rows.Scan(&n.rowID, &entityID, &raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan node: %w", err)
		}
		props, err := decodeProperties(raw)
		if err != nil {
			rows.Close()
			return nil, err
		}
		n.entity = models.Entity{ID: entityID.String, Properties: props}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	rows.Close()

	if err := attachLabels(ctx, q, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func attachLabels(ctx context.Context, q queryer, nodes []nodeRow) error {
	if len(nodes) == 0 {
		return nil
	}
	rowIDs := make([]int64, len(nodes))
	for i, n := range nodes {
		rowIDs[i] = n.rowID
	}
	marks, args := placeholders(rowIDs)
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT node_id, label FROM node_labels WHERE node_id IN (%s) ORDER BY node_id, position`, marks),
		args...,
	)
	if err != nil {
		return fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	labels := make(map[int64][]string, len(nodes))
	for rows.Next() {
		var (
			nodeID int64
			label  string
		)
		if err := rows.Scan(&nodeID, &label); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		labels[nodeID] = append(labels[nodeID], label)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate labels: %w", err)
	}

	for i := range nodes {
		nodes[i].entity.Type = labels[nodes[i].rowID]
		if nodes[i].entity.Type == nil {
			nodes[i].entity.Type = []string{}
		}
	}
	return nil
}

func addLabels(ctx context.Context, q queryer, nodeIDs []int64, labels []string) error {
	for _, id := range nodeIDs {
		for _, label := range labels {
			_, err := q.ExecContext(ctx, `
				INSERT OR IGNORE INTO node_labels (node_id, label, position)
				VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM node_labels WHERE node_id = ?))`,
				id, label, id,
			)
			if err != nil {
				return fmt.Errorf("add label %q: %w", label, err)
			}
		}
	}
	return nil
}

// entityNodeIDs returns the row ids of the Entity nodes matching ids.
func entityNodeIDs(ctx context.Context, q queryer, ids []string) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT n.id FROM nodes n WHERE n.entity_id IN (%s) AND %s ORDER BY n.id`, marks, entityFilter),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query entity nodes: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity node: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func firstEntityNode(ctx context.Context, q queryer, id string) (int64, bool, error) {
	var rowID int64
	err := q.QueryRowContext(ctx,
		`SELECT n.id FROM nodes n WHERE n.entity_id = ? AND `+entityFilter+` ORDER BY n.id LIMIT 1`, id,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup entity %q: %w", id, err)
	}
	return rowID, true, nil
}

func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if s.Valid {
			out = append(out, s.String)
		}
	}
	return out, rows.Err()
}

func entitiesOf(nodes []nodeRow) []models.Entity {
	out := make([]models.Entity, len(nodes))
	for i, n := range nodes {
		out[i] = n.entity
	}
	return out
}

// primaryLabel is the first label other than Entity, or Entity itself.
func primaryLabel(labels []string) string {
	for _, l := range labels {
		if l != graph.EntityLabel {
			return l
		}
	}
	if len(labels) > 0 {
		return labels[0]
	}
	return ""
}
