package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// Service groups the entity, relationship, deletion, search, update and
// schema operations over one Store.
type Service struct {
	store        Store
	logger       *slog.Logger
	schemaSample int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for query and batch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSchemaSampleSize sets how many nodes or edges per label or type
// are inspected when collecting property keys.
func WithSchemaSampleSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.schemaSample = n
		}
	}
}

// New creates a Service on top of store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       slog.Default(),
		schemaSample: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backend the service runs against.
func (s *Service) Store() Store {
	return s.store
}

// withSession opens a session, runs fn, and always closes the session.
func (s *Service) withSession(ctx context.Context, fn func(Session) error) (err error) {
	sess, err := s.store.Session(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	return fn(sess)
}

// uniqueIDs drops duplicates while keeping the first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
