package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-email-queue/app/entity"
	"github.com/vibast-solutions/ms-go-email-queue/app/lock"
	"github.com/vibast-solutions/ms-go-email-queue/app/provider"
)

// ProcessLockKey guards a processing run across worker processes.
const ProcessLockKey = "email-queue:process"

// Store is the persistence surface the processor needs. Implemented by
// repository.EmailQueueRepository.
type Store interface {
	SelectDue(ctx context.Context, now time.Time, limit int) ([]entity.EmailMessage, error)
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id string, providerMessageID string, now time.Time) error
	Reschedule(ctx context.Context, id string, errMsg string, nextAttempt time.Time, now time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, now time.Time) error
}

// Options tunes a Processor. Zero values fall back to defaults.
type Options struct {
	BatchSize    int           // default 10
	PollInterval time.Duration // default 30s
	SendTimeout  time.Duration // per-transport-call deadline, default 30s
	Locker       lock.Locker   // optional cross-process run guard
	Logger       *logrus.Logger
	Now          func() time.Time // injectable clock for tests
}

// Processor drains due messages from the store and hands them to the
// provider. One Processor is constructed per process and driven by a poll
// timer plus explicit wake-ups; a single-flight guard ensures runs never
// overlap within the process.
type Processor struct {
	store   Store
	sender  provider.EmailProvider
	locker  lock.Locker
	log     *logrus.Logger
	now     func() time.Time
	wake    chan struct{}
	running atomic.Bool

	batchSize    int
	pollInterval time.Duration
	sendTimeout  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcessor constructs a processor over the given store and provider.
func NewProcessor(store Store, sender provider.EmailProvider, opts Options) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Processor{
		store:        store,
		sender:       sender,
		locker:       opts.Locker,
		log:          opts.Logger,
		now:          opts.Now,
		wake:         make(chan struct{}, 1),
		batchSize:    opts.BatchSize,
		pollInterval: opts.PollInterval,
		sendTimeout:  opts.SendTimeout,
	}
}

// Start launches the background loop. It returns an error if the processor is
// already running.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("processor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)

	p.log.WithFields(logrus.Fields{
		"batch_size":    p.batchSize,
		"poll_interval": p.pollInterval,
	}).Info("email queue processor started")

	return nil
}

// Stop halts the loop and waits for an in-flight run to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Info("email queue processor stopped")
}

// Wake asks the loop to process as soon as possible instead of waiting for
// the next poll tick. Safe to call from any goroutine; never blocks.
func (p *Processor) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.wake:
		}

		if _, _, err := p.ProcessQueue(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Error("queue processing run failed")
		}
	}
}

// ProcessQueue performs one processing run: claim due messages, dispatch them
// sequentially, and record each outcome. If a run is already in progress in
// this process the call is a no-op. Returns the number of messages delivered
// and the number whose attempt failed.
func (p *Processor) ProcessQueue(ctx context.Context) (processed, failed int, err error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, 0, nil
	}
	defer p.running.Store(false)

	if p.locker != nil {
		lockErr := p.locker.Acquire(ctx, ProcessLockKey, 2*p.pollInterval)
		if lockErr == lock.ErrNotAcquired || lockErr == lock.ErrAlreadyHeld {
			return 0, 0, nil
		}
		if lockErr != nil {
			return 0, 0, fmt.Errorf("acquire process lock: %w", lockErr)
		}
		defer func() {
			_ = p.locker.Release(context.Background(), ProcessLockKey)
		}()
	}

	due, err := p.store.SelectDue(ctx, p.now(), p.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("select due messages: %w", err)
	}

	for _, msg := range due {
		select {
		case <-ctx.Done():
			return processed, failed, ctx.Err()
		default:
		}

		claimed, err := p.store.Claim(ctx, msg.ID, p.now())
		if err != nil {
			p.log.WithError(err).WithField("id", msg.ID).Error("claim failed")
			continue
		}
		if !claimed {
			// Another worker got there first.
			continue
		}

		if p.handleMessage(ctx, msg) {
			processed++
		} else {
			failed++
		}
	}

	return processed, failed, nil
}

// handleMessage dispatches one claimed message and records the outcome.
// Returns true when the message was delivered. Errors from the transport and
// from the store are confined to this message; the rest of the batch runs on.
func (p *Processor) handleMessage(ctx context.Context, msg entity.EmailMessage) bool {
	attempt := msg.Attempts + 1 // claim incremented the stored counter

	providerID, sendErr := p.deliver(ctx, msg)
	if sendErr == nil {
		if err := p.store.MarkSent(ctx, msg.ID, providerID, p.now()); err != nil {
			// The email went out; the next attempt may deliver it again.
			// At-least-once is the contract.
			p.log.WithError(err).WithField("id", msg.ID).Error("mark sent failed")
			return false
		}
		p.log.WithFields(logrus.Fields{
			"id":                  msg.ID,
			"attempt":             attempt,
			"provider_message_id": providerID,
		}).Info("email sent")
		return true
	}

	if attempt >= msg.MaxAttempts {
		if err := p.store.MarkFailed(ctx, msg.ID, sendErr.Error(), p.now()); err != nil {
			p.log.WithError(err).WithField("id", msg.ID).Error("mark failed failed")
		}
		p.log.WithFields(logrus.Fields{
			"id":      msg.ID,
			"attempt": attempt,
		}).WithError(sendErr).Warn("email permanently failed")
		return false
	}

	next := p.now().Add(Backoff(attempt))
	if err := p.store.Reschedule(ctx, msg.ID, sendErr.Error(), next, p.now()); err != nil {
		p.log.WithError(err).WithField("id", msg.ID).Error("reschedule failed")
		return false
	}
	p.log.WithFields(logrus.Fields{
		"id":       msg.ID,
		"attempt":  attempt,
		"retry_at": next,
	}).WithError(sendErr).Warn("email send failed, rescheduled")
	return false
}

// deliver invokes the provider with a per-call deadline. A panic inside the
// provider is converted into an error so one message cannot kill the batch.
func (p *Processor) deliver(ctx context.Context, msg entity.EmailMessage) (providerID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in provider: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	return p.sender.Send(sendCtx, provider.Email{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
		Metadata: msg.Metadata,
	})
}
