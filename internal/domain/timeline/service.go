package timeline

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service handles read-side timeline operations for callers.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new timeline service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, logger: logger}
}

// List returns timeline records, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	if opts.Limit < 0 || opts.Offset < 0 || opts.Before < 0 {
		return nil, ErrInvalidInput
	}
	for _, src := range opts.Sources {
		if _, err := ParseSourceKind(string(src)); err != nil {
			return nil, err
		}
	}
	if opts.Limit == 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	records, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing timeline: %w", err)
	}
	return records, nil
}

// Count returns the number of stored timeline records.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting timeline: %w", err)
	}
	return n, nil
}
