package runtime

import (
	"context"
	"time"

	Logger "github.com/postmux/postmux/utils/log"
)

type SchedulerConfig struct {
	// Name of the scheduler module.
	Name string

	// Interval between task runs.
	Interval time.Duration

	// RunAtStart fires the task once immediately instead of waiting a full
	// interval first.
	RunAtStart bool
}

// Scheduler is a Module that invokes a task on a fixed interval, decoupling
// cron-style triggers from the business logic they drive. A failing task run
// is logged and the schedule keeps going.
type Scheduler struct {
	Config SchedulerConfig

	task func(ctx context.Context) error
}

// NewScheduler returns a new instance of Scheduler driving the given task.
func NewScheduler(config SchedulerConfig, task func(ctx context.Context) error) *Scheduler {
	return &Scheduler{
		Config: config,
		task:   task,
	}
}

func (s *Scheduler) RunModule(ctx context.Context) error {
	if s.Config.RunAtStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.task(ctx); err != nil {
		Logger.Log.Errorf("scheduled task %s failed: %v", s.Config.Name, err)
	}
}

func (s *Scheduler) Name() string {
	return s.Config.Name
}

func (s *Scheduler) Shutdown() {
	Logger.Log.Infoln("Module ", s.Config.Name, " gracefully shutdown")
}
