package storage

// GraphSchema is the SQL schema of the embedded property graph.
//
// Node properties are a JSON object; entity_id mirrors its id key so lookups
// by entity id can use an index. Labels keep their insertion order through
// position. Edges reference nodes without ON DELETE CASCADE: like a graph
// database, a node cannot be removed while relationships still point at it.
const GraphSchema = `
CREATE TABLE IF NOT EXISTS nodes (
    id          INTEGER PRIMARY KEY,
    properties  TEXT NOT NULL DEFAULT '{}' CHECK(json_valid(properties)),
    entity_id   TEXT GENERATED ALWAYS AS (json_extract(properties, '$.id')) VIRTUAL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS node_labels (
    node_id     INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    label       TEXT NOT NULL,
    position    INTEGER NOT NULL,
    PRIMARY KEY (node_id, label)
);

CREATE TABLE IF NOT EXISTS edges (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    from_node   INTEGER NOT NULL REFERENCES nodes(id),
    to_node     INTEGER NOT NULL REFERENCES nodes(id),
    properties  TEXT NOT NULL DEFAULT '{}' CHECK(json_valid(properties)),
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_nodes_entity_id ON nodes(entity_id);
CREATE INDEX IF NOT EXISTS idx_node_labels_label ON node_labels(label);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_node);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_node);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);
`

// sqliteDSNPragmas configures every pooled connection.
const sqliteDSNPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"

// entityFilter restricts a query over nodes aliased n to Entity nodes.
const entityFilter = `EXISTS (SELECT 1 FROM node_labels el WHERE el.node_id = n.id AND el.label = 'Entity')`
