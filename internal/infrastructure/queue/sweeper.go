package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

const (
	DefaultSweepSchedule = "@every 1m"
	defaultMaxAttempts   = 5
	defaultBatchSize     = 100
)

// PendingSource lists dead letters that are still eligible for retry.
type PendingSource interface {
	PendingDeadLetters(ctx context.Context, maxAttempts, limit int) ([]domain.DeadLetter, error)
}

// SweeperConfig tunes the retry sweep.
type SweeperConfig struct {
	Schedule    string
	MaxAttempts int
	BatchSize   int
}

// Sweeper periodically loads pending dead letters and hands them to the
// dispatcher.
type Sweeper struct {
	cfg        SweeperConfig
	source     PendingSource
	dispatcher *Dispatcher
	scheduler  *cron.Cron
	log        zerolog.Logger
}

func NewSweeper(cfg SweeperConfig, source PendingSource, dispatcher *Dispatcher, log zerolog.Logger) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Sweeper{
		cfg:        cfg,
		source:     source,
		dispatcher: dispatcher,
		scheduler:  cron.New(),
		log:        log,
	}
}

// Start registers the sweep and starts the scheduler. Sweeps run with ctx.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.scheduler.AddFunc(s.cfg.Schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.cfg.Schedule, err)
	}
	s.scheduler.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Int("max_attempts", s.cfg.MaxAttempts).Msg("dead-letter sweeper started")
	return nil
}

// Stop halts the scheduler and waits up to timeout for a running sweep.
func (s *Sweeper) Stop(timeout time.Duration) {
	done := s.scheduler.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("dead-letter sweep still running at shutdown")
	}
}

// Sweep enqueues one batch of pending letters and returns how many were queued.
func (s *Sweeper) Sweep(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	letters, err := s.source.PendingDeadLetters(ctx, s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load dead letters")
		return 0
	}

	queued := 0
	for _, l := range letters {
		if s.dispatcher.Enqueue(l) {
			queued++
		}
	}
	if len(letters) > 0 {
		s.log.Info().Int("pending", len(letters)).Int("queued", queued).Msg("dead-letter sweep")
	}
	return queued
}
