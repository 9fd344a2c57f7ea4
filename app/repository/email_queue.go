package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-email-queue/app/entity"
)

type EmailQueueRepository struct {
	db *sql.DB
}

// NewEmailQueueRepository constructs a repository backed by MySQL.
func NewEmailQueueRepository(db *sql.DB) *EmailQueueRepository {
	return &EmailQueueRepository{db: db}
}

// Insert persists a new pending message.
func (r *EmailQueueRepository) Insert(ctx context.Context, msg *entity.EmailMessage) error {
	const query = `
		INSERT INTO email_queue
			(id, to_address, subject, html_body, text_body, metadata, priority,
			 attempts, max_attempts, status, scheduled_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query,
		msg.ID, msg.To, msg.Subject, msg.HTMLBody, nullString(msg.TextBody), metadata,
		string(msg.Priority), msg.Attempts, msg.MaxAttempts, string(msg.Status),
		msg.ScheduledFor, msg.CreatedAt, msg.UpdatedAt)
	return err
}

// SelectDue returns up to limit pending messages that are due for processing,
// highest priority first, oldest-due first within a priority.
func (r *EmailQueueRepository) SelectDue(ctx context.Context, now time.Time, limit int) ([]entity.EmailMessage, error) {
	const query = `
		SELECT id, to_address, subject, html_body, text_body, metadata, priority,
		       attempts, max_attempts, status, scheduled_for, last_attempt, error,
		       provider_message_id, created_at, updated_at
		FROM email_queue
		WHERE status = 'pending' AND scheduled_for <= ? AND attempts < max_attempts
		ORDER BY FIELD(priority, 'high', 'normal', 'low'), scheduled_for ASC, created_at ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []entity.EmailMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Claim transitions a message to sending and increments its attempt counter.
// The update is gated on status = 'pending' so that concurrent workers cannot
// claim the same message twice; returns false when another worker won.
func (r *EmailQueueRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
		UPDATE email_queue
		SET status = 'sending', attempts = attempts + 1, last_attempt = ?, updated_at = ?
		WHERE id = ? AND status = 'pending' AND attempts < max_attempts
	`
	res, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkSent records a successful delivery.
func (r *EmailQueueRepository) MarkSent(ctx context.Context, id string, providerMessageID string, now time.Time) error {
	const query = `
		UPDATE email_queue
		SET status = 'sent', provider_message_id = ?, error = NULL, updated_at = ?
		WHERE id = ? AND status = 'sending'
	`
	_, err := r.db.ExecContext(ctx, query, providerMessageID, now, id)
	return err
}

// Reschedule returns a failed attempt to pending with a future retry time.
func (r *EmailQueueRepository) Reschedule(ctx context.Context, id string, errMsg string, nextAttempt time.Time, now time.Time) error {
	const query = `
		UPDATE email_queue
		SET status = 'pending', error = ?, scheduled_for = ?, updated_at = ?
		WHERE id = ? AND status = 'sending'
	`
	_, err := r.db.ExecContext(ctx, query, errMsg, nextAttempt, now, id)
	return err
}

// MarkFailed records a terminal delivery failure.
func (r *EmailQueueRepository) MarkFailed(ctx context.Context, id string, errMsg string, now time.Time) error {
	const query = `
		UPDATE email_queue
		SET status = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status = 'sending'
	`
	_, err := r.db.ExecContext(ctx, query, errMsg, now, id)
	return err
}

// CancelByIDs cancels messages that are still pending or sending. Messages
// already in a terminal state are left untouched.
func (r *EmailQueueRepository) CancelByIDs(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`
		UPDATE email_queue
		SET status = 'cancelled', updated_at = ?
		WHERE id IN (%s) AND status IN ('pending', 'sending')
	`, placeholders(len(ids)))
	res, err := r.db.ExecContext(ctx, query, append([]any{now}, toAnySlice(ids)...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetFailed revives failed messages for another round of processing.
// With no ids, every failed message is reset.
func (r *EmailQueueRepository) ResetFailed(ctx context.Context, ids []string, now time.Time) (int64, error) {
	query := `
		UPDATE email_queue
		SET status = 'pending', error = NULL, scheduled_for = ?, updated_at = ?
		WHERE status = 'failed'
	`
	args := []any{now, now}
	if len(ids) > 0 {
		query += fmt.Sprintf(" AND id IN (%s)", placeholders(len(ids)))
		args = append(args, toAnySlice(ids)...)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns message counts grouped by status.
func (r *EmailQueueRepository) CountByStatus(ctx context.Context) (map[entity.Status]int, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM email_queue
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[entity.Status(status)] = count
	}
	return counts, rows.Err()
}

// CountByPriority returns message counts grouped by priority.
func (r *EmailQueueRepository) CountByPriority(ctx context.Context) (map[entity.Priority]int, error) {
	const query = `
		SELECT priority, COUNT(*)
		FROM email_queue
		GROUP BY priority
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.Priority]int)
	for rows.Next() {
		var priority string
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		counts[entity.Priority(priority)] = count
	}
	return counts, rows.Err()
}

// RecentFailures lists the most recently failed messages since the given time.
func (r *EmailQueueRepository) RecentFailures(ctx context.Context, since time.Time, limit int) ([]entity.FailedEmail, error) {
	const query = `
		SELECT id, to_address, subject, error, last_attempt
		FROM email_queue
		WHERE status = 'failed' AND last_attempt >= ?
		ORDER BY last_attempt DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []entity.FailedEmail
	for rows.Next() {
		var f entity.FailedEmail
		var errMsg sql.NullString
		var lastAttempt sql.NullTime
		if err := rows.Scan(&f.ID, &f.To, &f.Subject, &errMsg, &lastAttempt); err != nil {
			return nil, err
		}
		f.Error = errMsg.String
		if lastAttempt.Valid {
			t := lastAttempt.Time
			f.FailedAt = &t
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// DeleteTerminalBefore removes sent and cancelled rows last touched before the
// cutoff. Failed rows are kept for audit regardless of age.
func (r *EmailQueueRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM email_queue
		WHERE status IN ('sent', 'cancelled') AND updated_at < ?
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (entity.EmailMessage, error) {
	var msg entity.EmailMessage
	var textBody, errMsg, providerID sql.NullString
	var metadata []byte
	var priority, status string
	var lastAttempt sql.NullTime

	err := row.Scan(&msg.ID, &msg.To, &msg.Subject, &msg.HTMLBody, &textBody,
		&metadata, &priority, &msg.Attempts, &msg.MaxAttempts, &status,
		&msg.ScheduledFor, &lastAttempt, &errMsg, &providerID,
		&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return entity.EmailMessage{}, err
	}

	msg.TextBody = textBody.String
	msg.Priority = entity.Priority(priority)
	msg.Status = entity.Status(status)
	if lastAttempt.Valid {
		t := lastAttempt.Time
		msg.LastAttempt = &t
	}
	if errMsg.Valid {
		s := errMsg.String
		msg.Error = &s
	}
	if providerID.Valid {
		s := providerID.String
		msg.ProviderMessageID = &s
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return entity.EmailMessage{}, fmt.Errorf("unmarshal metadata for %s: %w", msg.ID, err)
		}
	}
	return msg, nil
}

func marshalMetadata(metadata map[string]string) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
