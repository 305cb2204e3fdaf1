package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/calendarsync"
	"github.com/ontour-app/backend/internal/events"
	"github.com/ontour-app/backend/pkg/queue"
	"github.com/ontour-app/backend/pkg/storage"
)

// JobQueue is the queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Syncer runs one user's calendar sync.
type Syncer interface {
	SyncUserCalendar(ctx context.Context, userID uuid.UUID) calendarsync.SyncResult
}

// BackupStore receives rendered ICS backups.
type BackupStore interface {
	UploadBackup(ctx context.Context, key, ics string) error
	PresignBackupURL(ctx context.Context, key string) (string, error)
}

// Processor executes calendar sync and backup jobs.
type Processor struct {
	syncer  Syncer
	events  events.Lister
	backups BackupStore
	queue   JobQueue
	logger  *zap.Logger
	now     func() time.Time
	backoff time.Duration
}

// NewProcessor creates a job processor. backups may be nil, in which case backup jobs fail.
func NewProcessor(syncer Syncer, eventList events.Lister, backups BackupStore, q JobQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		syncer:  syncer,
		events:  eventList,
		backups: backups,
		queue:   q,
		logger:  logger,
		now:     time.Now,
		backoff: queue.RetryBackoff,
	}
}

// Process executes one job. A returned error means the job should be retried.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeCalendarSync:
		var payload queue.SyncPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.sync(ctx, payload)
	case queue.JobTypeCalendarBackup:
		var payload queue.BackupPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.backup(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) sync(ctx context.Context, payload queue.SyncPayload) error {
	res := p.syncer.SyncUserCalendar(ctx, payload.UserID)
	log := p.logger.With(zap.String("user_id", payload.UserID.String()), zap.String("reason", payload.Reason))
	if res.Success {
		log.Info("calendar sync job done", zap.Int("imported", res.Imported), zap.Int("exported", res.Exported),
			zap.Int("conflicts", res.Conflicts), zap.Int("errors", len(res.Errors)))
		return nil
	}
	if res.Retryable() {
		return res.Err
	}
	log.Info("calendar sync job skipped", zap.Error(res.Err))
	return nil
}

func (p *Processor) backup(ctx context.Context, payload queue.BackupPayload) error {
	if p.backups == nil {
		return fmt.Errorf("backup storage is not configured")
	}
	at := p.now().UTC()
	text, err := events.RenderCalendar(ctx, p.events, payload.OrganizationID, "On Tour backup", at, p.logger)
	if err != nil {
		return fmt.Errorf("render calendar: %w", err)
	}
	key := storage.BackupKey(payload.OrganizationID.String(), at)
	if err := p.backups.UploadBackup(ctx, key, text); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	url, err := p.backups.PresignBackupURL(ctx, key)
	if err != nil {
		// The backup is stored; only the link failed.
		p.logger.Warn("presign backup", zap.String("s3_key", key), zap.Error(err))
	}
	p.logger.Info("calendar backup completed",
		zap.String("organization_id", payload.OrganizationID.String()),
		zap.String("requested_by", payload.RequestedBy.String()),
		zap.String("s3_key", key),
		zap.Int("bytes", len(text)),
		zap.String("url", url),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("calendar worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
