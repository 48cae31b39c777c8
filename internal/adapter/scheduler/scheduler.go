package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	JOB_KEY_POLL      = "inverter_poll"
	JOB_KEY_DISCOVERY = "ha_discovery_republish"
)

// Sender delivers scheduled messages. Both actor.RootContext and actor.Context implement it,
// but only the root context may be used from the scheduler goroutines.
type Sender interface {
	Send(pid *actor.PID, message interface{})
}

// sendJob posts a fixed message to an actor every time its trigger fires.
type sendJob struct {
	sender      Sender
	target      *actor.PID
	message     func() any
	description string
}

func (j *sendJob) Execute(_ context.Context) error {
	j.sender.Send(j.target, j.message())
	return nil
}

func (j *sendJob) Description() string {
	return j.description
}

type Scheduler struct {
	scheduler quartz.Scheduler
	sender    Sender
	cancel    context.CancelFunc
	logger    *zap.Logger
}

func NewScheduler(sender Sender, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: quartz.NewStdScheduler(),
		sender:    sender,
		logger:    logger,
	}
}

// SchedulePoll sends InverterPollTick to target every interval.
func (s *Scheduler) SchedulePoll(target *actor.PID, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", interval)
	}
	job := &sendJob{
		sender:      s.sender,
		target:      target,
		message:     func() any { return domain.InverterPollTick{} },
		description: fmt.Sprintf("poll inverter every %s", interval),
	}
	s.logger.Debug("scheduler: poll job", zap.Duration("interval", interval))
	return s.scheduler.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(JOB_KEY_POLL)), quartz.NewSimpleTrigger(interval))
}

// ScheduleDiscovery sends RepublishDiscoveryRequest to target on a quartz cron expression
// (seconds field first).
func (s *Scheduler) ScheduleDiscovery(target *actor.PID, expression string) error {
	trigger, err := quartz.NewCronTrigger(expression)
	if err != nil {
		return fmt.Errorf("invalid discovery cron %q: %w", expression, err)
	}
	job := &sendJob{
		sender:      s.sender,
		target:      target,
		message:     func() any { return domain.RepublishDiscoveryRequest{} },
		description: fmt.Sprintf("republish discovery (%s)", expression),
	}
	s.logger.Debug("scheduler: discovery job", zap.String("cron", expression))
	return s.scheduler.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(JOB_KEY_DISCOVERY)), trigger)
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.scheduler.Start(ctx)
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.scheduler.Stop()
	s.cancel()
	s.cancel = nil
}

func (s *Scheduler) IsStarted() bool {
	return s.scheduler.IsStarted()
}
