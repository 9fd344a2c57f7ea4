package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-email-queue/app/entity"
	"github.com/vibast-solutions/ms-go-email-queue/app/provider"
	"github.com/vibast-solutions/ms-go-email-queue/app/repository"
)

var (
	ErrMissingRecipient = errors.New("recipient is required")
	ErrMissingSubject   = errors.New("subject is required")
	ErrMissingBody      = errors.New("html body is required")
	ErrInvalidPriority  = errors.New("priority must be low, normal, or high")
)

const (
	defaultMaxAttempts    = 3
	statsFailureLookback  = 24 * time.Hour
	statsFailureLimit     = 10
	defaultCleanupAgeDays = 30
)

// Waker pokes the background processor to run ahead of its next poll tick.
// Implemented by queue.Processor.
type Waker interface {
	Wake()
}

// EnqueueInput is the producer-facing enqueue contract.
type EnqueueInput struct {
	To           string
	Subject      string
	HTMLBody     string
	TextBody     string
	Metadata     map[string]string
	Priority     entity.Priority
	ScheduledFor *time.Time
	MaxAttempts  int
}

// EmailQueueService is the public surface of the queue: enqueue for
// producers, stats/retry/cancel/cleanup for operators.
type EmailQueueService struct {
	repo     *repository.EmailQueueRepository
	provider provider.EmailProvider
	waker    Waker
	log      *logrus.Logger
	now      func() time.Time
}

// NewEmailQueueService builds the service with its dependencies. The waker
// may be nil when no processor runs in this process.
func NewEmailQueueService(repo *repository.EmailQueueRepository, prov provider.EmailProvider, waker Waker, log *logrus.Logger) *EmailQueueService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EmailQueueService{
		repo:     repo,
		provider: prov,
		waker:    waker,
		log:      log,
		now:      time.Now,
	}
}

// Enqueue validates the message and either sends it immediately (high
// priority against a healthy transport) or persists it for the processor.
// Returns the queue row ID, or the provider message ID when the message was
// delivered synchronously and never persisted.
func (s *EmailQueueService) Enqueue(ctx context.Context, in EnqueueInput) (string, error) {
	if in.To == "" {
		return "", ErrMissingRecipient
	}
	if in.Subject == "" {
		return "", ErrMissingSubject
	}
	if in.HTMLBody == "" {
		return "", ErrMissingBody
	}

	if in.Priority == "" {
		in.Priority = entity.PriorityNormal
	}
	if !in.Priority.Valid() {
		return "", ErrInvalidPriority
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = defaultMaxAttempts
	}

	now := s.now()
	scheduledFor := now
	if in.ScheduledFor != nil {
		scheduledFor = *in.ScheduledFor
	}

	if in.Priority == entity.PriorityHigh && !scheduledFor.After(now) {
		providerID, err := s.provider.Send(ctx, provider.Email{
			To:       in.To,
			Subject:  in.Subject,
			HTMLBody: in.HTMLBody,
			TextBody: in.TextBody,
			Metadata: in.Metadata,
		})
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"to":                  in.To,
				"provider_message_id": providerID,
			}).Info("high priority email sent immediately")
			return providerID, nil
		}
		// Transport trouble is not the producer's problem; fall through to
		// the durable path.
		s.log.WithError(err).WithField("to", in.To).Warn("immediate send failed, queueing")
	}

	msg := &entity.EmailMessage{
		ID:           uuid.NewString(),
		To:           in.To,
		Subject:      in.Subject,
		HTMLBody:     in.HTMLBody,
		TextBody:     in.TextBody,
		Metadata:     in.Metadata,
		Priority:     in.Priority,
		Attempts:     0,
		MaxAttempts:  in.MaxAttempts,
		Status:       entity.StatusPending,
		ScheduledFor: scheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return "", fmt.Errorf("insert queued email: %w", err)
	}

	if in.Priority == entity.PriorityHigh {
		s.wakeProcessor()
	}

	return msg.ID, nil
}

// Stats aggregates queue counts and the most recent failures. The view is a
// point-in-time read; it is not serialized against the processor.
func (s *EmailQueueService) Stats(ctx context.Context) (entity.QueueStats, error) {
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("count by status: %w", err)
	}
	byPriority, err := s.repo.CountByPriority(ctx)
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("count by priority: %w", err)
	}
	failures, err := s.repo.RecentFailures(ctx, s.now().Add(-statsFailureLookback), statsFailureLimit)
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("recent failures: %w", err)
	}
	return entity.QueueStats{
		ByStatus:       byStatus,
		ByPriority:     byPriority,
		RecentFailures: failures,
	}, nil
}

// RetryFailed revives failed messages (all of them when ids is empty) and
// wakes the processor. Messages not in the failed state are untouched.
func (s *EmailQueueService) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	reset, err := s.repo.ResetFailed(ctx, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("reset failed emails: %w", err)
	}
	if reset > 0 {
		s.wakeProcessor()
	}
	return reset, nil
}

// Cancel transitions pending and sending messages to cancelled. Idempotent on
// terminal rows: cancelling a sent message is a no-op.
func (s *EmailQueueService) Cancel(ctx context.Context, ids []string) (int64, error) {
	cancelled, err := s.repo.CancelByIDs(ctx, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("cancel emails: %w", err)
	}
	return cancelled, nil
}

// Cleanup deletes sent and cancelled rows older than daysOld (default 30).
// Failed rows are retained for audit regardless of age.
func (s *EmailQueueService) Cleanup(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		daysOld = defaultCleanupAgeDays
	}
	cutoff := s.now().AddDate(0, 0, -daysOld)
	deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old emails: %w", err)
	}
	return deleted, nil
}

func (s *EmailQueueService) wakeProcessor() {
	if s.waker != nil {
		s.waker.Wake()
	}
}
