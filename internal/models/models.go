package models

// Entity represents a node in the knowledge graph.
// Type holds every label of the node, the fixed Entity label included.
type Entity struct {
	ID            string          `json:"id"`
	Type          []string        `json:"type"`
	Properties    map[string]any  `json:"properties"`
	Relationships []RelatedEntity `json:"relationships,omitempty"`
}

// RelatedEntity is a relationship seen from one side, as returned by search.
type RelatedEntity struct {
	Type      string      `json:"type"`
	Direction string      `json:"direction"`
	Node      NodeSummary `json:"node"`
}

// NodeSummary describes the node on the other end of a relationship.
type NodeSummary struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// Relationship represents a directed, typed edge between two entities.
type Relationship struct {
	Type       string         `json:"type"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`

	// Key is the store-level identity of the edge, used for deduplication.
	Key string `json:"-"`
}

// DeletionImpact is everything a deletion of a set of entity ids would touch.
type DeletionImpact struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Orphaned      []Relationship `json:"orphaned"`
}

// DeletionStats counts what a deletion actually removed.
type DeletionStats struct {
	EntitiesDeleted      int64 `json:"entities_deleted"`
	RelationshipsDeleted int64 `json:"relationships_deleted"`
}

// DeletionResult is the response of delete_entities.
type DeletionResult struct {
	Success               bool           `json:"success"`
	DeletedEntities       []Entity       `json:"deleted_entities"`
	DeletedRelationships  []Relationship `json:"deleted_relationships"`
	Errors                []string       `json:"errors,omitempty"`
	ImpactedEntities      []Entity       `json:"impacted_entities,omitempty"`
	ImpactedRelationships []Relationship `json:"impacted_relationships,omitempty"`
	OrphanedRelationships []Relationship `json:"orphaned_relationships,omitempty"`
	Stats                 DeletionStats  `json:"stats"`
}

// UpdateResult is the response of update_entities.
type UpdateResult struct {
	Success         bool     `json:"success"`
	UpdatedEntities []Entity `json:"updated_entities"`
	Errors          []string `json:"errors,omitempty"`
}

// Schema describes the labels, relationship types and observed property keys of the graph.
type Schema struct {
	NodeLabels             []string            `json:"node_labels"`
	RelationshipTypes      []string            `json:"relationship_types"`
	NodeProperties         map[string][]string `json:"node_properties"`
	RelationshipProperties map[string][]string `json:"relationship_properties"`
}
