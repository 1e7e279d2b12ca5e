package jobs

import (
	"context"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job schedules. Work order backfill runs on business hours only; the remote
// side throttles after-hours integrations.
const (
	scheduleInventoryAudit    = "0 1 * * *"
	scheduleStaleBatches      = "0 */6 * * *"
	scheduleWorkOrderBackfill = "0 9-17/2 * * 1-5"
)

// Scheduler runs the periodic reconciliation jobs. Each run gets a fresh
// governance monitor and a synthetic system identity, and takes a Redis lock
// so only one instance runs a given job at a time.
type Scheduler struct {
	Logger  *logrus.Logger
	Gateway netsuite.Gateway
	cron    *cron.Cron
}

func NewScheduler(logger *logrus.Logger, gateway netsuite.Gateway) *Scheduler {
	return &Scheduler{
		Logger:  logger,
		Gateway: gateway,
		cron:    cron.New(),
	}
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{"inventory-audit", scheduleInventoryAudit, func(ctx context.Context) error {
			return RunInventoryAudit(ctx, s.Gateway)
		}},
		{"stale-batches", scheduleStaleBatches, RunStaleBatchSweep},
		{"work-order-backfill", scheduleWorkOrderBackfill, func(ctx context.Context) error {
			return RunWorkOrderBackfill(ctx, s.Gateway)
		}},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.schedule, func() {
			s.runJob(job.name, job.run)
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) runJob(name string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Best effort leader election. If Redis is down, run anyway; jobs are
	// idempotent and a doubled run is better than no run.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "job:"+name, 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(context.Background())
		}
	}

	ctx = utils.SetUserNameInContext(ctx, "system/"+name)
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	ctx = governance.SetInContext(ctx, governance.NewMonitor(governance.BudgetFromEnv()))

	start := time.Now()
	err := run(ctx)
	fields := logrus.Fields{"field": "jobs", "job": name, "duration": time.Since(start).String()}
	if monitor, ok := governance.FromContext(ctx); ok {
		fields["governance_used"] = monitor.Used()
	}
	if err != nil {
		s.Logger.WithFields(fields).Error("job failed: " + err.Error())
		return
	}
	s.Logger.WithFields(fields).Info("job finished")
}
