package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// Properties that identify an entity and may not be removed.
var protectedProperties = []string{"id", "type"}

// UpdateRequest describes the modifications to one entity.
type UpdateRequest struct {
	ID               string
	Properties       map[string]any
	RemoveProperties []string
	AddLabels        []string
	RemoveLabels     []string
}

// Mutation is a validated UpdateRequest. Set is merged into the existing
// properties; Remove, AddLabels and RemoveLabels hold checked identifiers.
type Mutation struct {
	ID           string
	Set          map[string]any
	Remove       []string
	AddLabels    []string
	RemoveLabels []string
}

// BuildMutation validates req. A nil value in Properties removes that key.
func BuildMutation(req UpdateRequest) (Mutation, error) {
	if len(req.Properties) == 0 && len(req.RemoveProperties) == 0 &&
		len(req.AddLabels) == 0 && len(req.RemoveLabels) == 0 {
		return Mutation{}, fmt.Errorf("%w: no modifications specified", ErrInvalidArgument)
	}

	m := Mutation{ID: req.ID}

	set := make(map[string]any, len(req.Properties))
	remove := slices.Clone(req.RemoveProperties)
	for k, v := range req.Properties {
		if v == nil {
			remove = append(remove, k)
			continue
		}
		set[k] = v
	}
	set, err := NormalizeProperties(set)
	if err != nil {
		return Mutation{}, err
	}
	if id, ok := set["id"]; ok {
		set["id"] = Stringify(id)
	}
	if len(set) > 0 {
		m.Set = set
	}

	remove = uniqueIDs(remove)
	if err := validateIdentifiers("property", remove); err != nil {
		return Mutation{}, err
	}
	for _, k := range remove {
		if slices.Contains(protectedProperties, k) {
			return Mutation{}, fmt.Errorf("%w: property %q cannot be removed", ErrInvalidArgument, k)
		}
	}
	m.Remove = remove

	m.AddLabels = uniqueIDs(req.AddLabels)
	if err := validateIdentifiers("label", m.AddLabels); err != nil {
		return Mutation{}, err
	}
	m.RemoveLabels = uniqueIDs(req.RemoveLabels)
	if err := validateIdentifiers("label", m.RemoveLabels); err != nil {
		return Mutation{}, err
	}
	if slices.Contains(m.RemoveLabels, EntityLabel) {
		return Mutation{}, fmt.Errorf("%w: label %q cannot be removed", ErrInvalidArgument, EntityLabel)
	}
	return m, nil
}

// UpdateEntities applies each request to its entity. Every id must exist:
// if any is missing, nothing is applied and the result lists the missing
// ids. Otherwise each update runs on its own, and failures are collected
// without stopping the rest of the batch.
func (s *Service) UpdateEntities(ctx context.Context, reqs []UpdateRequest) (*models.UpdateResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one update is required", ErrInvalidArgument)
	}

	result := &models.UpdateResult{UpdatedEntities: []models.Entity{}}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	ids = uniqueIDs(ids)

	err := s.withSession(ctx, func(sess Session) error {
		found, err := sess.ExistingIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("check entities: %w", err)
		}
		var missing []string
		for _, id := range ids {
			if !slices.Contains(found, id) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			result.Errors = []string{fmt.Sprintf("Entities not found: %s", strings.Join(missing, ", "))}
			return nil
		}

		for _, req := range reqs {
			m, err := BuildMutation(req)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to update entity %s: %v", req.ID, err))
				continue
			}
			e, err := sess.Apply(ctx, m)
			if err != nil {
				s.logger.Warn("entity update failed", slog.String("id", req.ID), slog.String("error", err.Error()))
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to update entity %s: %v", req.ID, err))
				continue
			}
			if e == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to update entity %s: entity no longer exists", req.ID))
				continue
			}
			result.UpdatedEntities = append(result.UpdatedEntities, *e)
		}
		result.Success = len(result.Errors) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
