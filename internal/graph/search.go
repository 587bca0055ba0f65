package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/models"
)

// SearchQuery holds the caller-facing search options.
type SearchQuery struct {
	Term                 string
	Type                 string
	Properties           []string
	IncludeRelationships bool
	Fuzzy                bool
}

// PredicateMode selects which property clause a search applies.
type PredicateMode int

const (
	// MatchAll applies no property clause.
	MatchAll PredicateMode = iota
	// PropertiesPresent matches entities where any listed property is set.
	PropertiesPresent
	// PropertiesMatch matches the term against the listed properties.
	PropertiesMatch
	// AnyProperty matches the term against every property of the entity.
	AnyProperty
)

func (m PredicateMode) String() string {
	switch m {
	case PropertiesPresent:
		return "properties-present"
	case PropertiesMatch:
		return "properties-match"
	case AnyProperty:
		return "any-property"
	default:
		return "all"
	}
}

// Predicate is a backend-neutral search filter. Backends compile it to
// their own query language; all property values are compared as text.
type Predicate struct {
	// Label, when set, is required in addition to EntityLabel.
	Label string
	Mode  PredicateMode

	// Properties are the keys inspected by PropertiesPresent and PropertiesMatch.
	Properties []string

	// Words is Term split on whitespace. A fuzzy PropertiesMatch succeeds
	// when any listed property contains any word, ignoring case.
	Words []string

	// Term is compared whole: for exact matches, and for fuzzy AnyProperty.
	Term  string
	Fuzzy bool

	IncludeRelationships bool
}

// BuildPredicate turns q into a Predicate. An empty property list and a
// blank term both count as absent.
func BuildPredicate(q SearchQuery) (Predicate, error) {
	p := Predicate{
		Fuzzy:                q.Fuzzy,
		IncludeRelationships: q.IncludeRelationships,
	}

	if q.Type != "" {
		if err := ValidateIdentifier("entity type", q.Type); err != nil {
			return Predicate{}, err
		}
		p.Label = q.Type
	}

	props := uniqueIDs(q.Properties)
	if err := validateIdentifiers("property", props); err != nil {
		return Predicate{}, err
	}
	hasTerm := strings.TrimSpace(q.Term) != ""

	switch {
	case len(props) > 0 && !hasTerm:
		p.Mode = PropertiesPresent
		p.Properties = props
	case len(props) > 0:
		p.Mode = PropertiesMatch
		p.Properties = props
		p.Term = q.Term
		p.Words = strings.Fields(q.Term)
	case hasTerm:
		p.Mode = AnyProperty
		p.Term = q.Term
	default:
		p.Mode = MatchAll
	}
	return p, nil
}

// Search returns the entities matching q, in the store's native order.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]models.Entity, error) {
	p, err := BuildPredicate(q)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search",
		slog.String("mode", p.Mode.String()),
		slog.String("label", p.Label),
		slog.Any("properties", p.Properties),
		slog.Bool("fuzzy", p.Fuzzy),
		slog.Bool("include_relationships", p.IncludeRelationships),
	)

	var results []models.Entity
	err = s.withSession(ctx, func(sess Session) error {
		var err error
		results, err = sess.Search(ctx, p)
		if err != nil {
			return fmt.Errorf("search entities: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonNilEntities(results), nil
}
