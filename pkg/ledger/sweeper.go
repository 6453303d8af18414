package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/kaiwa/internal/observability"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultIdleTimeout is how long a session may sit without activity
	// before the sweeper completes it.
	DefaultIdleTimeout = 24 * time.Hour

	// DefaultSweepBatch bounds how many sessions one sweep completes.
	DefaultSweepBatch = 100
)

// SweeperStore is the read surface the sweeper needs from the session store.
type SweeperStore interface {
	StaleSessionStore
	CountOpen(ctx context.Context) (int, error)
}

// Sweeper periodically completes sessions whose last activity is older
// than the idle timeout. It goes through the same CompleteSession path the
// API uses, so a sweep is just a batch of idempotent completions; nothing
// is ever deleted.
type Sweeper struct {
	service     *Service
	store       SweeperStore
	idleTimeout time.Duration
	batch       int
	runner      *cron.Cron
	running     bool
}

// NewSweeper creates a sweeper over the given service and store.
func NewSweeper(service *Service, store SweeperStore, idleTimeout time.Duration, batch int) *Sweeper {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{
		service:     service,
		store:       store,
		idleTimeout: idleTimeout,
		batch:       batch,
	}
}

// Start schedules sweeps on the given cron expression (standard five-field
// syntax) and runs one sweep immediately.
func (s *Sweeper) Start(schedule string) error {
	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	runner := cron.New()
	if _, err := runner.AddFunc(schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.runner = runner
	s.running = true
	runner.Start()

	go func() {
		if err := s.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("Initial sweep failed")
		}
	}()

	log.Info().
		Str("schedule", schedule).
		Dur("idle_timeout", s.idleTimeout).
		Msg("Session sweeper started")
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if !s.running {
		return
	}
	<-s.runner.Stop().Done()
	s.running = false
	log.Info().Msg("Session sweeper stopped")
}

// Sweep completes one batch of idle sessions and refreshes the
// open-sessions gauge. A sweep racing a live append may complete a session
// that just received an event; that is the same outcome as an operator
// hitting the completion endpoint and is accepted.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.idleTimeout)

	ids, err := s.store.FindStale(ctx, cutoff, s.batch)
	if err != nil {
		return fmt.Errorf("find stale sessions: %w", err)
	}

	completed := 0
	for _, id := range ids {
		if _, err := s.service.CompleteSession(ctx, id); err != nil {
			// Not-found cannot happen (sessions are never deleted), so
			// any failure here is a store problem; keep going.
			log.Warn().Str("session_id", id).Err(err).Msg("Failed to complete idle session")
			continue
		}
		completed++
	}

	if open, err := s.store.CountOpen(ctx); err == nil {
		observability.SetOpenSessions(open)
	}

	if completed > 0 {
		log.Info().
			Int("completed", completed).
			Time("cutoff", cutoff).
			Msg("Idle sessions completed")
	}
	return nil
}
