package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-movienight/monitor"
)

// Trigger runs one ingestion. *Runner satisfies it.
type Trigger interface {
	Run(ctx context.Context) (monitor.RunReport, error)
}

// Service re-runs ingestion on a fixed interval under a suture supervisor.
type Service struct {
	trigger    Trigger
	interval   time.Duration
	runOnStart bool
	logger     zerolog.Logger
	name       string
}

func NewService(trigger Trigger, interval time.Duration, runOnStart bool, logger zerolog.Logger) *Service {
	return &Service{
		trigger:    trigger,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With().Str("service", "ingest").Logger(),
		name:       "ingest-service",
	}
}

// Serve implements suture.Service. Failed runs are logged and retried on
// the next tick; only context cancellation stops the loop.
func (s *Service) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_start", s.runOnStart).
		Dur("interval", s.interval).
		Msg("ingestion service starting")

	if s.runOnStart {
		s.run(ctx)
	}

	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("ingestion service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Service) run(ctx context.Context) {
	report, err := s.trigger.Run(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Debug().Msg("scheduled run skipped, another run is in progress")
	case err != nil:
		s.logger.Warn().Err(err).Msg("scheduled ingestion failed")
	default:
		s.logger.Info().Str("run_id", report.RunID).Int("loaded", report.Loaded).Msg("scheduled ingestion complete")
	}
}

func (s *Service) String() string {
	return s.name
}
