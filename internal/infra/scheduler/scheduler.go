// internal/infra/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// tickTimeout bounds a single tick so a hung Telegram call cannot wedge a
// loop forever.
const tickTimeout = 5 * time.Minute

// TickRunner is implemented by the poll-loop services.
type TickRunner interface {
	RunTick(ctx context.Context) error
}

// PollScheduler drives the broadcast and payment reminder loops on cron
// schedules. Each loop is guarded: a panicking tick is recovered, and a tick
// that is still running when the next one comes due delays it instead of
// overlapping.
type PollScheduler struct {
	cronEngine *cron.Cron
	logger     *logrus.Logger

	broadcaster   TickRunner
	reminder      TickRunner
	broadcastSpec string
	reminderSpec  string
}

func NewPollScheduler(
	logger *logrus.Logger,
	broadcaster TickRunner,
	reminder TickRunner,
	broadcastSpec string,
	reminderSpec string,
) *PollScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &PollScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(
				cron.Recover(cronLogger),
				cron.DelayIfStillRunning(cronLogger),
			),
		),
		logger:        logger,
		broadcaster:   broadcaster,
		reminder:      reminder,
		broadcastSpec: broadcastSpec,
		reminderSpec:  reminderSpec,
	}
}

// Start registers both loops and starts the cron engine. The passed context
// is the base for every tick: cancelling it aborts in-flight work.
func (s *PollScheduler) Start(ctx context.Context) error {
	if _, err := s.cronEngine.AddFunc(s.broadcastSpec, func() {
		s.runTick(ctx, "broadcast", s.broadcaster)
	}); err != nil {
		return err
	}

	if _, err := s.cronEngine.AddFunc(s.reminderSpec, func() {
		s.runTick(ctx, "payment_reminder", s.reminder)
	}); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"broadcast_spec": s.broadcastSpec,
		"reminder_spec":  s.reminderSpec,
	}).Info("Poll scheduler started")
	return nil
}

func (s *PollScheduler) runTick(ctx context.Context, name string, runner TickRunner) {
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	if err := runner.RunTick(tickCtx); err != nil {
		s.logger.WithError(err).WithField("loop", name).Error("Tick failed")
	}
}

// Stop halts the cron engine and waits for running ticks to finish.
func (s *PollScheduler) Stop() {
	stopCtx := s.cronEngine.Stop()
	<-stopCtx.Done()
	s.logger.Info("Poll scheduler stopped")
}
