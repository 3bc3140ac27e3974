package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/notifications"
	"github.com/learnhub/backend/internal/payments"
	"github.com/learnhub/backend/pkg/queue"
)

// Processor consumes background jobs: transactional email delivery,
// transaction reconciliation for callbacks that never arrived, and
// enrollment grants that failed inline during settlement.
type Processor struct {
	payments  *payments.Service
	userRepo  *auth.Repository
	mailer    *notifications.Mailer
	emailRepo *notifications.Repository
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewProcessor creates the job processor.
func NewProcessor(paySvc *payments.Service, userRepo *auth.Repository,
	mailer *notifications.Mailer, emailRepo *notifications.Repository,
	q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		payments:  paySvc,
		userRepo:  userRepo,
		mailer:    mailer,
		emailRepo: emailRepo,
		queue:     q,
		logger:    logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeEmail:
		var payload queue.EmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal email payload: %w", err)
		}
		return p.processEmail(ctx, payload)
	case queue.JobTypeReconcile:
		var payload queue.ReconcilePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal reconcile payload: %w", err)
		}
		tx, err := p.payments.GetByID(ctx, payload.TransactionID)
		if err != nil {
			return fmt.Errorf("transaction not found: %s", payload.TransactionID)
		}
		return p.payments.Reconcile(ctx, tx)
	case queue.JobTypeEnroll:
		var payload queue.EnrollPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal enroll payload: %w", err)
		}
		return p.payments.EnsureEnrollment(ctx, payload.TransactionID)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processEmail(ctx context.Context, payload queue.EmailPayload) error {
	tx, err := p.payments.GetByID(ctx, payload.TransactionID)
	if err != nil {
		return fmt.Errorf("transaction not found: %s", payload.TransactionID)
	}

	recipient := payload.RecipientEmail
	name := payload.RecipientName
	if recipient == "" {
		user, err := p.userRepo.GetByID(ctx, tx.UserID)
		if err != nil {
			return fmt.Errorf("buyer lookup: %w", err)
		}
		recipient = user.Email
		name = user.FullName
	}

	subject, body, err := notifications.RenderEmail(payload.EmailType, name, payload.CourseTitle, tx)
	if err != nil {
		return err
	}

	var attachments []notifications.Attachment
	if payload.EmailType == notifications.EmailTypeReceipt {
		pdf, err := p.payments.RenderReceiptFor(ctx, tx)
		if err != nil {
			p.logger.Warn("receipt render for email failed",
				zap.String("transaction_id", tx.TransactionID), zap.Error(err))
		} else {
			attachments = append(attachments, notifications.Attachment{
				Filename:    "receipt-" + tx.TransactionID + ".pdf",
				ContentType: "application/pdf",
				Data:        pdf,
			})
		}
	}

	log := &models.EmailLog{
		EmailType:     payload.EmailType,
		Recipient:     recipient,
		Subject:       subject,
		TransactionID: &tx.ID,
	}

	sendErr := p.mailer.Send(recipient, subject, body, attachments...)
	now := time.Now()
	switch {
	case sendErr == nil:
		log.Status = models.EmailStatusSent
		log.SentAt = &now
	case errors.Is(sendErr, notifications.ErrSMTPUnconfigured):
		log.Status = models.EmailStatusSkipped
	default:
		log.Status = models.EmailStatusFailed
		msg := sendErr.Error()
		log.Error = &msg
	}
	if err := p.emailRepo.Record(ctx, log); err != nil {
		p.logger.Error("email log record failed", zap.Error(err))
	}

	// Unconfigured SMTP is a deliberate dev setup, not a retryable failure.
	if sendErr != nil && !errors.Is(sendErr, notifications.ErrSMTPUnconfigured) {
		return sendErr
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, source, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job, source); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
