package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-email-queue/app/entity"
	"github.com/vibast-solutions/ms-go-email-queue/app/provider"
	"github.com/vibast-solutions/ms-go-email-queue/app/repository"
)

type fakeProvider struct {
	err   error
	id    string
	calls int
}

func (p *fakeProvider) Send(_ context.Context, _ provider.Email) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.id, nil
}

type fakeWaker struct {
	wakes int
}

func (w *fakeWaker) Wake() { w.wakes++ }

func newService(t *testing.T, prov provider.EmailProvider, waker Waker) (*EmailQueueService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := NewEmailQueueService(repository.NewEmailQueueRepository(db), prov, waker, log)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, mock, func() { _ = db.Close() }
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	svc, _, cleanup := newService(t, &fakeProvider{}, nil)
	defer cleanup()

	cases := []struct {
		name string
		in   EnqueueInput
		want error
	}{
		{"missing recipient", EnqueueInput{Subject: "S", HTMLBody: "<p>H</p>"}, ErrMissingRecipient},
		{"missing subject", EnqueueInput{To: "a@x.com", HTMLBody: "<p>H</p>"}, ErrMissingSubject},
		{"missing body", EnqueueInput{To: "a@x.com", Subject: "S"}, ErrMissingBody},
		{"bad priority", EnqueueInput{To: "a@x.com", Subject: "S", HTMLBody: "<p>H</p>", Priority: "urgent"}, ErrInvalidPriority},
	}

	for _, tc := range cases {
		if _, err := svc.Enqueue(context.Background(), tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEnqueueNormalPriorityPersists(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{id: "ses-1"}
	svc, mock, cleanup := newService(t, prov, nil)
	defer cleanup()

	mock.ExpectExec("INSERT INTO email_queue").
		WithArgs(sqlmock.AnyArg(), "a@x.com", "S", "<p>H</p>", nil, nil,
			"normal", 0, 3, "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := svc.Enqueue(context.Background(), EnqueueInput{To: "a@x.com", Subject: "S", HTMLBody: "<p>H</p>"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	if prov.calls != 0 {
		t.Fatalf("normal priority must not hit the provider, got %d calls", prov.calls)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnqueueHighPriorityImmediateSuccess(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{id: "ses-immediate"}
	waker := &fakeWaker{}
	svc, mock, cleanup := newService(t, prov, waker)
	defer cleanup()

	id, err := svc.Enqueue(context.Background(), EnqueueInput{
		To: "a@x.com", Subject: "S", HTMLBody: "<p>H</p>", Priority: entity.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id != "ses-immediate" {
		t.Fatalf("expected provider message id, got %s", id)
	}
	if waker.wakes != 0 {
		t.Fatalf("immediate success must not wake the processor")
	}

	// No row was written.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnqueueHighPriorityFallsBackToQueue(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{err: errors.New("ses unavailable")}
	waker := &fakeWaker{}
	svc, mock, cleanup := newService(t, prov, waker)
	defer cleanup()

	mock.ExpectExec("INSERT INTO email_queue").
		WithArgs(sqlmock.AnyArg(), "a@x.com", "S", "<p>H</p>", nil, nil,
			"high", 0, 3, "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := svc.Enqueue(context.Background(), EnqueueInput{
		To: "a@x.com", Subject: "S", HTMLBody: "<p>H</p>", Priority: entity.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Enqueue must not surface transport errors, got %v", err)
	}
	if id == "" || id == "ses-immediate" {
		t.Fatalf("expected queue row id, got %q", id)
	}
	if waker.wakes != 1 {
		t.Fatalf("expected one processor wake-up, got %d", waker.wakes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnqueueScheduledHighPrioritySkipsImmediateSend(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{id: "ses-1"}
	svc, mock, cleanup := newService(t, prov, nil)
	defer cleanup()

	future := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO email_queue").
		WithArgs(sqlmock.AnyArg(), "a@x.com", "S", "<p>H</p>", nil, nil,
			"high", 0, 3, "pending", future, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := svc.Enqueue(context.Background(), EnqueueInput{
		To: "a@x.com", Subject: "S", HTMLBody: "<p>H</p>",
		Priority: entity.PriorityHigh, ScheduledFor: &future,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("scheduled message must not be sent immediately")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnqueueInsertFailurePropagates(t *testing.T) {
	t.Parallel()

	svc, mock, cleanup := newService(t, &fakeProvider{}, nil)
	defer cleanup()

	mock.ExpectExec("INSERT INTO email_queue").
		WillReturnError(errors.New("connection refused"))

	if _, err := svc.Enqueue(context.Background(), EnqueueInput{
		To: "a@x.com", Subject: "S", HTMLBody: "<p>H</p>",
	}); err == nil {
		t.Fatalf("expected persistence error to propagate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	svc, mock, cleanup := newService(t, &fakeProvider{}, nil)
	defer cleanup()

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("failed", 1))
	mock.ExpectQuery("SELECT priority, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"priority", "count"}).
			AddRow("normal", 3))
	mock.ExpectQuery("SELECT id, to_address, subject, error, last_attempt").
		WithArgs(time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "to_address", "subject", "error", "last_attempt"}).
			AddRow("id-1", "a@x.com", "S", "SMTP timeout", time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)))

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ByStatus[entity.StatusPending] != 2 || stats.ByStatus[entity.StatusFailed] != 1 {
		t.Fatalf("unexpected status counts: %v", stats.ByStatus)
	}
	if stats.ByPriority[entity.PriorityNormal] != 3 {
		t.Fatalf("unexpected priority counts: %v", stats.ByPriority)
	}
	if len(stats.RecentFailures) != 1 || stats.RecentFailures[0].ID != "id-1" {
		t.Fatalf("unexpected failures: %+v", stats.RecentFailures)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRetryFailedWakesProcessor(t *testing.T) {
	t.Parallel()

	waker := &fakeWaker{}
	svc, mock, cleanup := newService(t, &fakeProvider{}, waker)
	defer cleanup()

	mock.ExpectExec("UPDATE email_queue").
		WillReturnResult(sqlmock.NewResult(0, 2))
	reset, err := svc.RetryFailed(context.Background(), nil)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if reset != 2 {
		t.Fatalf("expected 2 reset, got %d", reset)
	}
	if waker.wakes != 1 {
		t.Fatalf("expected wake after retry, got %d", waker.wakes)
	}

	// Nothing reset, nothing to wake.
	mock.ExpectExec("UPDATE email_queue").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := svc.RetryFailed(context.Background(), []string{"id-9"}); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if waker.wakes != 1 {
		t.Fatalf("expected no additional wake, got %d", waker.wakes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	svc, mock, cleanup := newService(t, &fakeProvider{}, nil)
	defer cleanup()

	mock.ExpectExec("UPDATE email_queue").
		WithArgs(sqlmock.AnyArg(), "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cancelled, err := svc.Cancel(context.Background(), []string{"id-1"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 cancelled, got %d", cancelled)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCleanupDefaultsTo30Days(t *testing.T) {
	t.Parallel()

	svc, mock, cleanup := newService(t, &fakeProvider{}, nil)
	defer cleanup()

	cutoff := time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM email_queue").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := svc.Cleanup(context.Background(), 0)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("expected 5 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
