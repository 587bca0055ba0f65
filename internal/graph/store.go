package graph

import (
	"context"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// Store is a property-graph backend. It owns the underlying connection
// pool; only the process that opened it may close it.
type Store interface {
	// Session opens a scoped unit of work. Callers must Close it.
	Session(ctx context.Context) (Session, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// DeleteCounts reports what a detaching delete removed.
type DeleteCounts struct {
	Entities      int64
	Relationships int64
}

// Session runs the primitive graph operations the engines are built from.
// Every lookup by id only considers nodes carrying EntityLabel.
type Session interface {
	// CreateEntity stores a node labeled EntityLabel and label with the given properties.
	CreateEntity(ctx context.Context, label string, props map[string]any) (models.Entity, error)

	// CreateRelationship links the first entities matching fromID and toID.
	// It returns nil without error when either endpoint does not exist.
	CreateRelationship(ctx context.Context, relType, fromID, toID string, props map[string]any) (*models.Relationship, error)

	MatchEntities(ctx context.Context, ids []string) ([]models.Entity, error)

	// IncidentRelationships returns every relationship touching any entity
	// in ids, in either direction, each exactly once.
	IncidentRelationships(ctx context.Context, ids []string) ([]models.Relationship, error)

	// DeleteDetached removes the matching entities and all their relationships.
	DeleteDetached(ctx context.Context, ids []string) (DeleteCounts, error)

	// DeleteIsolated removes only the matching entities that have no
	// relationship at all and returns them as they were before deletion.
	DeleteIsolated(ctx context.Context, ids []string) ([]models.Entity, error)

	Search(ctx context.Context, p Predicate) ([]models.Entity, error)

	// ExistingIDs returns the distinct ids among ids that resolve to an entity.
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)

	// Apply runs m against the entity with m.ID and returns it afterwards,
	// or nil if it no longer exists.
	Apply(ctx context.Context, m Mutation) (*models.Entity, error)

	Labels(ctx context.Context) ([]string, error)
	RelationshipTypes(ctx context.Context) ([]string, error)
	NodePropertyKeys(ctx context.Context, label string, sample int) ([]string, error)
	RelationshipPropertyKeys(ctx context.Context, relType string, sample int) ([]string, error)

	Close(ctx context.Context) error
}
