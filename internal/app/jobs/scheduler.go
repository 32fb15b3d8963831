package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/logger"
	"github.com/visicontrol/visicontrol/pkg/metrics"
)

const (
	defaultReminderSpec = "@every 1h"
	defaultTokenSpec    = "@daily"
	defaultJobTimeout   = 2 * time.Minute
)

// ReminderGenerator creates the reminder notifications that are due.
type ReminderGenerator interface {
	GenerateDueReminders(ctx context.Context) (services.ReminderRunStats, error)
}

// TokenCleaner purges expired or consumed password reset tokens.
type TokenCleaner interface {
	CleanupResetTokens(ctx context.Context) (int64, error)
}

// Config holds the cron specifications and per-run timeout.
type Config struct {
	ReminderSchedule     string
	TokenCleanupSchedule string
	JobTimeout           time.Duration
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithTokenCleaner enables the reset token cleanup job.
func WithTokenCleaner(cleaner TokenCleaner) Option {
	return func(s *Scheduler) {
		s.tokens = cleaner
	}
}

// Scheduler runs the reminder generation and token cleanup jobs on cron
// schedules. Job errors are logged and never stop the schedule.
type Scheduler struct {
	reminders ReminderGenerator
	tokens    TokenCleaner
	cron      *cron.Cron
	log       *zap.Logger

	reminderSchedule string
	tokenSchedule    string
	timeout          time.Duration

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler constructs a Scheduler. A nil reminders generator disables the
// reminder job.
func NewScheduler(reminders ReminderGenerator, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		reminders:        reminders,
		log:              logger.WithModule("jobs"),
		reminderSchedule: cfg.ReminderSchedule,
		tokenSchedule:    cfg.TokenCleanupSchedule,
		timeout:          cfg.JobTimeout,
	}
	if s.reminderSchedule == "" {
		s.reminderSchedule = defaultReminderSpec
	}
	if s.tokenSchedule == "" {
		s.tokenSchedule = defaultTokenSpec
	}
	if s.timeout <= 0 {
		s.timeout = defaultJobTimeout
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start registers the jobs, starts cron and fires one reminder run immediately
// in the background.
func (s *Scheduler) Start() error {
	if s.reminders != nil {
		if _, err := s.cron.AddFunc(s.reminderSchedule, s.runReminders); err != nil {
			return err
		}
	}
	if s.tokens != nil {
		if _, err := s.cron.AddFunc(s.tokenSchedule, s.runTokenCleanup); err != nil {
			return err
		}
	}

	s.cron.Start()

	if s.reminders != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runReminders()
		}()
	}

	s.log.Info("scheduler started",
		zap.String("reminders", s.reminderSchedule),
		zap.String("token_cleanup", s.tokenSchedule))
	return nil
}

// Stop cancels in-flight runs and halts cron. The returned context is done
// once every running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	cronCtx := s.cron.Stop()

	done, finish := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		finish()
	}()
	return done
}

// RunOnce executes every configured job sequentially and returns their
// combined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.reminders != nil {
		if _, err := s.reminders.GenerateDueReminders(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if s.tokens != nil {
		if _, err := s.tokens.CleanupResetTokens(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	stats, err := s.reminders.GenerateDueReminders(ctx)
	if err != nil {
		metrics.ReminderRuns.WithLabelValues("error").Inc()
		if errors.Is(err, context.Canceled) {
			s.log.Debug("reminder run canceled", zap.Error(err))
			return
		}
		s.log.Warn("reminder run failed",
			zap.Int("candidates", stats.Candidates),
			zap.Int("inserted", stats.Inserted),
			zap.Int("failed", stats.Failed),
			zap.Error(err))
		return
	}

	metrics.ReminderRuns.WithLabelValues("success").Inc()
	s.log.Debug("reminder run finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("inserted", stats.Inserted))
}

func (s *Scheduler) runTokenCleanup() {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	removed, err := s.tokens.CleanupResetTokens(ctx)
	if err != nil {
		s.log.Warn("token cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("reset tokens purged", zap.Int64("removed", removed))
	}
}
