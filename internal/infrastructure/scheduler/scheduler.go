// Package scheduler runs cron-based background jobs such as the periodic
// dashboard resync.
package scheduler

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
)

// Service wraps a gocron scheduler
type Service struct {
	scheduler gocron.Scheduler
	log       *zap.Logger
	stopOnce  sync.Once
	stopErr   error
}

// NewService creates a scheduler. Jobs run in singleton mode: a run that is
// still in progress when the next one is due causes that run to be skipped.
func NewService(log *zap.Logger) (*Service, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error("Scheduler job panicked",
						zap.String("job_id", jobID.String()),
						zap.String("job_name", jobName),
						zap.Any("panic", recoverData),
					)
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Service{scheduler: sched, log: log}, nil
}

// Start begins running scheduled jobs
func (s *Service) Start() {
	if s == nil {
		return
	}
	s.log.Info("Scheduler starting")
	s.scheduler.Start()
}

// Stop shuts down the scheduler. Safe to call more than once.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		s.log.Info("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// AddJob registers a job on a five-field cron expression
func (s *Service) AddJob(name, cronExpr string, task func()) (gocron.Job, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return nil, ErrEmptyCronExpr
	}
	jobLog := s.log.With(zap.String("job_name", name), zap.String("cron", cronExpr))

	wrapped := func() {
		jobLog.Debug("Scheduler job started")
		task()
		jobLog.Debug("Scheduler job completed")
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrapped),
		gocron.WithName(name),
	)
	if err != nil {
		jobLog.Error("Failed to register scheduler job", zap.Error(err))
		return nil, err
	}
	jobLog.Info("Scheduler job registered")
	return job, nil
}
