package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

const (
	msgOrphaned = "Cannot delete entities as it would create orphaned relationships. Use cascade=true to delete relationships as well."
	msgRetained = "No entities were deleted: every matched entity still has relationships. Use cascade=true to delete them together with their relationships."
)

// DeleteRequest names one entity to delete.
type DeleteRequest struct {
	ID      string
	Cascade bool
}

// ClassifyOrphans returns the relationships with exactly one endpoint in ids.
// A relationship with both endpoints in ids is fully cascaded, not orphaned.
func ClassifyOrphans(ids []string, rels []models.Relationship) []models.Relationship {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	orphaned := make([]models.Relationship, 0)
	for _, r := range rels {
		_, from := set[r.From]
		_, to := set[r.To]
		if from != to {
			orphaned = append(orphaned, r)
		}
	}
	return orphaned
}

// ComputeImpact resolves the entities matching ids together with every
// relationship incident to them, and the orphaned subset.
func (s *Service) ComputeImpact(ctx context.Context, ids []string) (*models.DeletionImpact, error) {
	var impact *models.DeletionImpact
	err := s.withSession(ctx, func(sess Session) error {
		var err error
		impact, err = computeImpact(ctx, sess, uniqueIDs(ids))
		return err
	})
	return impact, err
}

func computeImpact(ctx context.Context, sess Session, ids []string) (*models.DeletionImpact, error) {
	entities, err := sess.MatchEntities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}
	rels, err := sess.IncidentRelationships(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("incident relationships: %w", err)
	}
	rels = dedupeRelationships(rels)
	return &models.DeletionImpact{
		Entities:      nonNilEntities(entities),
		Relationships: rels,
		Orphaned:      ClassifyOrphans(ids, rels),
	}, nil
}

// DeleteEntities deletes the requested entities, or previews the deletion
// when dryRun is set.
//
// Cascade applies to the whole batch: if any request asks for it, every
// entity in the batch is deleted with its relationships. Without cascade
// the call refuses to orphan relationships and removes only entities that
// have no relationship at all. Not-found and orphan conditions are reported
// in the result; only store failures are returned as errors.
func (s *Service) DeleteEntities(ctx context.Context, reqs []DeleteRequest, dryRun bool) (*models.DeletionResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one entity id is required", ErrInvalidArgument)
	}

	ids := make([]string, 0, len(reqs))
	cascade := false
	for _, r := range reqs {
		ids = append(ids, r.ID)
		cascade = cascade || r.Cascade
	}
	ids = uniqueIDs(ids)

	result := &models.DeletionResult{
		DeletedEntities:      []models.Entity{},
		DeletedRelationships: []models.Relationship{},
	}

	err := s.withSession(ctx, func(sess Session) error {
		impact, err := computeImpact(ctx, sess, ids)
		if err != nil {
			return err
		}

		switch {
		case len(impact.Entities) == 0:
			result.Errors = []string{fmt.Sprintf("Entity not found: %s", strings.Join(ids, ", "))}

		case dryRun:
			result.Success = true
			result.ImpactedEntities = impact.Entities
			result.ImpactedRelationships = impact.Relationships
			result.OrphanedRelationships = impact.Orphaned

		case !cascade && len(impact.Orphaned) > 0:
			result.Errors = []string{msgOrphaned}
			result.OrphanedRelationships = impact.Orphaned

		case !cascade:
			deleted, err := sess.DeleteIsolated(ctx, ids)
			if err != nil {
				return fmt.Errorf("delete isolated entities: %w", err)
			}
			if len(deleted) == 0 {
				result.Errors = []string{msgRetained}
				return nil
			}
			result.Success = true
			result.DeletedEntities = deleted
			result.Stats.EntitiesDeleted = int64(len(deleted))

		default:
			counts, err := sess.DeleteDetached(ctx, ids)
			if err != nil {
				return fmt.Errorf("cascade delete: %w", err)
			}
			result.Success = counts.Entities > 0
			if !result.Success {
				result.Errors = []string{fmt.Sprintf("Entity not found: %s", strings.Join(ids, ", "))}
				return nil
			}
			result.DeletedEntities = impact.Entities
			result.DeletedRelationships = impact.Relationships
			result.Stats = models.DeletionStats{
				EntitiesDeleted:      counts.Entities,
				RelationshipsDeleted: counts.Relationships,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delete entities",
		slog.Int("requested", len(ids)),
		slog.Bool("cascade", cascade),
		slog.Bool("dry_run", dryRun),
		slog.Bool("success", result.Success),
		slog.Int64("entities_deleted", result.Stats.EntitiesDeleted),
		slog.Int64("relationships_deleted", result.Stats.RelationshipsDeleted),
	)
	return result, nil
}

func dedupeRelationships(rels []models.Relationship) []models.Relationship {
	out := make([]models.Relationship, 0, len(rels))
	seen := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		if r.Key != "" {
			if _, ok := seen[r.Key]; ok {
				continue
			}
			seen[r.Key] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

func nonNilEntities(entities []models.Entity) []models.Entity {
	if entities == nil {
		return []models.Entity{}
	}
	return entities
}
