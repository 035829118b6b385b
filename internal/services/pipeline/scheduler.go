package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
)

// scheduledRunTimeout bounds one unattended run. Generous because a cold
// cache over a large export pays for every model call.
const scheduledRunTimeout = 2 * time.Hour

// Scheduler runs the pipeline unattended on a cron schedule.
type Scheduler struct {
	pipeline *Pipeline
	cron     *cron.Cron
	running  atomic.Bool
	logger   arbor.ILogger
}

// NewScheduler creates a pipeline scheduler.
func NewScheduler(pipeline *Pipeline, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
}

// Start begins scheduled runs. The schedule uses the six-field cron format
// with a seconds column.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: daily at 06:00
		schedule = "0 0 6 * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runPipeline()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Pipeline scheduler started")

	return nil
}

// Stop stops the scheduler. A run already in flight finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Pipeline scheduler stopped")
}

// RunNow triggers an immediate run outside the schedule.
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate pipeline run")
	common.SafeGo(s.logger, "immediateRun", func() {
		s.runPipeline()
	})
}

func (s *Scheduler) runPipeline() {
	// Overlap guard: a tick that fires while the previous run is still
	// working is skipped, not queued.
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("Previous pipeline run still in progress, skipping this tick")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()

	s.logger.Info().Msg("Starting scheduled pipeline run")

	result, err := s.pipeline.Run(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("Scheduled pipeline run failed")
		return
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("tickets", result.TicketCount).
		Int("fallbacks", result.FallbackCount).
		Dur("elapsed", result.Elapsed).
		Msg("Scheduled pipeline run completed")
}
