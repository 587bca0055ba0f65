package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// EntityInput describes one entity to create.
type EntityInput struct {
	Type       string
	Properties map[string]any
}

// CreateEntities stores each input as a node labeled Entity and its type.
// The id property defaults to the name property when absent, and the type
// property is set to the creation type. Inputs are all validated before
// anything is written; a store failure aborts the rest of the batch.
func (s *Service) CreateEntities(ctx context.Context, inputs []EntityInput) ([]models.Entity, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one entity is required", ErrInvalidArgument)
	}

	prepared := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		if err := ValidateIdentifier("entity type", in.Type); err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		props, err := NormalizeProperties(in.Properties)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		if id := DeriveID(props); id != "" {
			props["id"] = id
		}
		props["type"] = in.Type
		prepared[i] = props
	}

	created := make([]models.Entity, 0, len(inputs))
	err := s.withSession(ctx, func(sess Session) error {
		for i, in := range inputs {
			e, err := sess.CreateEntity(ctx, in.Type, prepared[i])
			if err != nil {
				return fmt.Errorf("create entity %q: %w", DeriveID(prepared[i]), err)
			}
			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("entities created", slog.Int("count", len(created)))
	return created, nil
}
