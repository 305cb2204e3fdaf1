package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/pkg/queue"
)

// DefaultSyncSchedule runs every enabled sync every 15 minutes.
const DefaultSyncSchedule = "*/15 * * * *"

// UserLister returns users whose calendar sync is enabled.
type UserLister interface {
	EnabledUsers(ctx context.Context) ([]uuid.UUID, error)
}

// SyncEnqueuer queues a sync job.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, payload queue.SyncPayload) error
}

// Scheduler triggers periodic syncs for every enabled user.
type Scheduler struct {
	cron    *cron.Cron
	users   UserLister
	enqueue SyncEnqueuer
	inline  Syncer
	timeout time.Duration
	logger  *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInlineSync runs syncs in the scheduler goroutine instead of queueing them.
func WithInlineSync(s Syncer) SchedulerOption {
	return func(sc *Scheduler) { sc.inline = s }
}

// WithRunTimeout bounds one scheduled pass.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(sc *Scheduler) { sc.timeout = d }
}

// NewScheduler parses spec (standard 5-field cron) and registers the sync pass.
func NewScheduler(spec string, users UserLister, enqueue SyncEnqueuer, logger *zap.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = DefaultSyncSchedule
	}
	s := &Scheduler{users: users, enqueue: enqueue, timeout: 10 * time.Minute, logger: logger}
	for _, o := range opts {
		o(s)
	}
	if s.inline == nil && s.enqueue == nil {
		return nil, fmt.Errorf("scheduler needs a queue or an inline syncer")
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled sync pass failed", zap.Error(err))
	}
}

// RunOnce dispatches a sync for every enabled user and returns how many were dispatched.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ids, err := s.users.EnabledUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled users: %w", err)
	}
	n := 0
	for _, id := range ids {
		if s.inline != nil {
			res := s.inline.SyncUserCalendar(ctx, id)
			if !res.Success {
				s.logger.Warn("scheduled sync failed", zap.String("user_id", id.String()), zap.Strings("errors", res.Errors))
			}
			n++
			continue
		}
		if err := s.enqueue.EnqueueSync(ctx, queue.SyncPayload{UserID: id, Reason: "cron"}); err != nil {
			s.logger.Error("enqueue scheduled sync", zap.String("user_id", id.String()), zap.Error(err))
			continue
		}
		n++
	}
	s.logger.Info("scheduled sync pass", zap.Int("users", len(ids)), zap.Int("dispatched", n))
	return n, nil
}

// Start begins the schedule in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
