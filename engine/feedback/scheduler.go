package feedback

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/lexiscope/lexiscope/pkg/logger"
)

// DefaultSchedule runs the mining cycle every six hours.
const DefaultSchedule = "0 */6 * * *"

// Scheduler drives the mining engine on a cron schedule. Cycle failures are
// logged and swallowed so a bad pass never takes the scheduler down.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{cron: cron.New(), engine: engine}
}

// Start registers the cycle and begins the cron loop. The supplied context
// flows into every cycle invocation.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	log := logger.FromContext(ctx)
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.engine.RunCycle(ctx); err != nil {
			log.Error("feedback mining cycle failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Info("feedback mining scheduler started", "schedule", schedule)
	return nil
}

// RunOnce triggers a cycle outside the schedule, for the manual endpoint.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.engine.RunCycle(ctx)
}

// Stop halts the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
