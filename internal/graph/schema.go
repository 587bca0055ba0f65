package graph

import (
	"context"
	"fmt"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// IntrospectSchema lists labels and relationship types with the property
// keys seen on a sample of each. The sample makes the key lists an
// approximation, not a complete inventory.
func (s *Service) IntrospectSchema(ctx context.Context) (*models.Schema, error) {
	schema := &models.Schema{
		NodeLabels:             []string{},
		RelationshipTypes:      []string{},
		NodeProperties:         map[string][]string{},
		RelationshipProperties: map[string][]string{},
	}

	err := s.withSession(ctx, func(sess Session) error {
		labels, err := sess.Labels(ctx)
		if err != nil {
			return fmt.Errorf("list labels: %w", err)
		}
		if labels != nil {
			schema.NodeLabels = labels
		}
		types, err := sess.RelationshipTypes(ctx)
		if err != nil {
			return fmt.Errorf("list relationship types: %w", err)
		}
		if types != nil {
			schema.RelationshipTypes = types
		}

		for _, label := range schema.NodeLabels {
			keys, err := sess.NodePropertyKeys(ctx, label, s.schemaSample)
			if err != nil {
				return fmt.Errorf("property keys of %s: %w", label, err)
			}
			schema.NodeProperties[label] = nonNilStrings(keys)
		}
		for _, t := range schema.RelationshipTypes {
			keys, err := sess.RelationshipPropertyKeys(ctx, t, s.schemaSample)
			if err != nil {
				return fmt.Errorf("property keys of %s: %w", t, err)
			}
			schema.RelationshipProperties[t] = nonNilStrings(keys)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
