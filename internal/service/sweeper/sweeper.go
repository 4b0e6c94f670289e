// Package sweeper periodically deletes sessions and refresh token families nobody can use anymore.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

const defaultRetention = 24 * time.Hour

type Config struct {
	// Sweep interval. Has to be positive
	Interval time.Duration

	// Rows are kept for this long after they expired
	// If not set than default is used
	Retention time.Duration

	// Clock, time.Now if not set
	Now func() time.Time

	Logger logger.Logger
}

type Sweeper struct {
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	storage   repository.Storage
	logger    logger.Logger
}

func New(cfg Config, storage repository.Storage) (*Sweeper, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	if cfg.Retention == 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &Sweeper{
		interval:  cfg.Interval,
		retention: cfg.Retention,
		now:       cfg.Now,
		storage:   storage,
		logger:    cfg.Logger.With("component", "sweeper"),
	}, nil
}

// Run sweeps every interval until context is done
// Returned channel is closed when the sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval, "retention", s.retention)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("Failed to sweep expired rows", "error", err)
				}
			}
		}
	}()

	return idleStopped
}

// Sweep deletes sessions and whole token families expired more than retention ago
func (s *Sweeper) Sweep(ctx context.Context) error {
	before := s.now().Add(-s.retention)

	sessions, err := s.storage.Session().DeleteExpired(ctx, before)
	if err != nil {
		return err
	}

	tokens, err := s.storage.Refresh().DeleteExpiredFamilies(ctx, before)
	if err != nil {
		return err
	}

	if sessions > 0 || tokens > 0 {
		s.logger.Info("Expired rows deleted", "sessions", sessions, "refresh_tokens", tokens)
	}
	return nil
}
