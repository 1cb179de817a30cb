// Package scheduler drives a sync controller from a single goroutine.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/rpggio/feedsync/internal/engine"
)

// Engine is the part of engine.Controller the scheduler drives.
type Engine interface {
	Run(ctx context.Context)
	NextRunTime(now time.Time) int64
	Wake() <-chan struct{}
	RequestRefresh() <-chan engine.Result
}

// Config tunes the scheduler.
type Config struct {
	// RefreshInterval issues a RequestRefresh on every tick. Zero disables it.
	RefreshInterval time.Duration
	// RefreshOnStart issues one RequestRefresh before the first tick.
	RefreshOnStart bool
	Clock          func() time.Time
}

// Scheduler owns the engine goroutine.
type Scheduler struct {
	engine Engine
	cfg    Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(eng Engine, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{engine: eng, cfg: cfg, logger: logger}
}

// Run blocks, invoking the engine whenever it is due, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.RefreshInterval > 0 {
		ticker := time.NewTicker(s.cfg.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	if s.cfg.RefreshOnStart {
		s.refresh(ctx)
	}
	s.logger.Info("scheduler started", "refresh_interval", s.cfg.RefreshInterval)
	defer s.logger.Info("scheduler stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		next := s.engine.NextRunTime(s.cfg.Clock())
		if next == 0 {
			select {
			case <-tick:
				s.refresh(ctx)
			default:
			}
			s.engine.Run(ctx)
			continue
		}

		var timer *time.Timer
		var due <-chan time.Time
		if next != engine.Never {
			timer = time.NewTimer(time.Until(time.UnixMilli(next)))
			due = timer.C
		}
		select {
		case <-ctx.Done():
		case <-s.engine.Wake():
		case <-due:
		case <-tick:
			s.refresh(ctx)
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	res := s.engine.RequestRefresh()
	go func() {
		select {
		case r := <-res:
			if r.Status.OK() {
				s.logger.Debug("scheduled refresh finished", "status", r.Status)
			} else {
				s.logger.Warn("scheduled refresh failed", "status", r.Status, "error", r.Message())
			}
		case <-ctx.Done():
		}
	}()
}
