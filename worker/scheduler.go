package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/queue"
)

// Scheduler enqueues periodic dataset refreshes on a cron schedule.
type Scheduler struct {
	queue queue.Queue
	spec  string
	cron  *cron.Cron
	log   *logger.Logger
}

// NewScheduler creates a scheduler. An empty cron spec disables it.
func NewScheduler(q queue.Queue, spec string, log *logger.Logger) *Scheduler {
	return &Scheduler{
		queue: q,
		spec:  spec,
		cron:  cron.New(),
		log:   log,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.log.Info("Periodic refresh disabled, no cron expression configured")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.enqueueRefresh); err != nil {
		return fmt.Errorf("failed to add refresh cron job: %w", err)
	}

	s.cron.Start()
	s.log.Info("Scheduler started", "cron", s.spec)
	return nil
}

// Stop stops the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) enqueueRefresh() {
	jobID, err := s.queue.Enqueue(context.Background(), QueueDatasetRefresh, RefreshPayload{
		Reason: "scheduled",
	})
	if err != nil {
		s.log.Warn("Error enqueueing scheduled refresh", "error", err)
		return
	}
	s.log.Info("Enqueued scheduled refresh", "job_id", jobID)
}
