package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// RelationInput describes one relationship to create.
type RelationInput struct {
	Type       string
	From       string
	To         string
	Properties map[string]any
}

// CreateRelations links existing entities on a best-effort basis.
// A relation whose endpoint does not exist is skipped silently. An invalid
// relation or a store failure is skipped too, with its message collected
// in the returned error list; the rest of the batch still runs.
func (s *Service) CreateRelations(ctx context.Context, inputs []RelationInput) ([]models.Relationship, []string, error) {
	created := make([]models.Relationship, 0, len(inputs))
	var failures []string

	err := s.withSession(ctx, func(sess Session) error {
		for _, in := range inputs {
			rel, err := s.createRelation(ctx, sess, in)
			if err != nil {
				s.logger.Warn("relation skipped",
					slog.String("type", in.Type),
					slog.String("from", in.From),
					slog.String("to", in.To),
					slog.String("error", err.Error()),
				)
				failures = append(failures, fmt.Sprintf("Failed to create relation %s from %q to %q: %v", in.Type, in.From, in.To, err))
				continue
			}
			if rel == nil {
				s.logger.Debug("relation skipped, endpoint not found",
					slog.String("from", in.From),
					slog.String("to", in.To),
				)
				continue
			}
			created = append(created, *rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, failures, nil
}

func (s *Service) createRelation(ctx context.Context, sess Session, in RelationInput) (*models.Relationship, error) {
	if err := ValidateIdentifier("relationship type", in.Type); err != nil {
		return nil, err
	}
	props, err := NormalizeProperties(in.Properties)
	if err != nil {
		return nil, err
	}
	return sess.CreateRelationship(ctx, in.Type, in.From, in.To, props)
}
