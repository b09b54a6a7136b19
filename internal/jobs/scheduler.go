package jobs

import (
	"context"
	"time"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/metrics"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 2 * time.Minute

type RateRefresher interface {
	Refresh(ctx context.Context) (*models.ExchangeRate, error)
}

type BridgeSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs periodic maintenance jobs. A run that is still going when
// its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

func NewScheduler() *Scheduler {
	l := logger.Component("jobs")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
		),
		logger: l,
	}
}

// Register adds a job under name. An empty spec leaves the job disabled.
func (s *Scheduler) Register(name, spec string, run func(ctx context.Context) error) error {
	if spec == "" {
		s.logger.Info().Str("job", name).Msg("job disabled")
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.run(name, run) })
	if err != nil {
		return err
	}
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("job registered")
	return nil
}

// RegisterRateRefresh schedules exchange rate refreshes.
func (s *Scheduler) RegisterRateRefresh(spec string, rates RateRefresher) error {
	return s.Register("rate_refresh", spec, func(ctx context.Context) error {
		rate, err := rates.Refresh(ctx)
		if err != nil {
			return err
		}
		s.logger.Info().Str("rate", rate.RateToUSD.String()).Msg("exchange rate refreshed")
		return nil
	})
}

// RegisterBridgeSweep schedules the bridge recovery sweep.
func (s *Scheduler) RegisterBridgeSweep(spec string, bridge BridgeSweeper) error {
	return s.Register("bridge_sweep", spec, func(ctx context.Context) error {
		n, err := bridge.Sweep(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info().Int("rows", n).Msg("bridge sweep acted")
		}
		return nil
	})
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	metrics.JobRuns.WithLabelValues(name, "success").Inc()
	s.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("jobs still running at shutdown")
	}
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
