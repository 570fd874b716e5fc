package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/mailer"
	"github.com/membership-portal/backend/pkg/queue"
)

// dequeueWait bounds each blocking pop so shutdown is noticed promptly.
const dequeueWait = 5 * time.Second

// JobSource is the queue the processor drains.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// EmailProcessor processes email jobs: render the template and hand it to the sender.
type EmailProcessor struct {
	jobs    JobSource
	sender  Sender
	baseURL string
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor. baseURL is the portal front-end used in links.
func NewEmailProcessor(jobs JobSource, sender Sender, baseURL string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{jobs: jobs, sender: sender, baseURL: baseURL, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeVerificationEmail:
		var payload queue.VerificationEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		msg, err := mailer.Verification(p.baseURL, payload.Recipient, payload.FirstName, payload.AccessCode)
		if err != nil {
			return err
		}
		if err := p.sender.Send(ctx, msg); err != nil {
			return err
		}
		p.logger.Info("verification email sent", zap.String("job_id", job.ID), zap.String("user_id", payload.UserID.String()))
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx, dequeueWait)
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
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
