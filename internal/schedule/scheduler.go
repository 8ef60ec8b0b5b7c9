// Package schedule queues recurring visibility runs on cron expressions.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/orchestrator"
)

const scheduleTimeout = 30 * time.Second

// Scheduler owns the cron entries that create recurring runs. Execution is
// the worker's job; the scheduler only queues.
type Scheduler struct {
	cron    *cron.Cron
	service *orchestrator.RunService
	log     logger.Logger
}

// New builds a Scheduler from the configured schedule entries.
func New(service *orchestrator.RunService, schedules []config.ScheduleConfig, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		service: service,
		log:     log,
	}

	for _, sched := range schedules {
		sched := sched
		_, err := s.cron.AddFunc(sched.Cron, func() { s.queueRun(sched) })
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("run scheduler started", logger.Int("entries", len(s.cron.Entries())))
}

// Stop stops the cron loop and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("run scheduler stopped")
}

func (s *Scheduler) queueRun(sched config.ScheduleConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), scheduleTimeout)
	defer cancel()

	resp, err := s.service.CreateRun(ctx, orchestrator.CreateRunRequest{
		AuditID:   sched.AuditID,
		ProjectID: sched.ProjectID,
		Domain:    sched.Domain,
		Sources:   sched.Sources,
	})
	if err != nil {
		s.log.Error("scheduled run creation failed",
			logger.String("domain", sched.Domain),
			logger.Error(err))
		return
	}
	s.log.Info("scheduled run queued",
		logger.String("run_id", resp.Run.ID),
		logger.String("domain", sched.Domain),
		logger.Bool("reused", resp.Reused))
}
