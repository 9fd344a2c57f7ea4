package entity

import "time"

// Status of a queued email. Sent and cancelled are terminal; failed is
// terminal for the processor but can be reset to pending by an operator.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Priority controls processing order and immediate-send eligibility.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether the priority is one of the known values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// EmailMessage is one row of the email_queue table.
type EmailMessage struct {
	ID                string
	To                string
	Subject           string
	HTMLBody          string
	TextBody          string
	Metadata          map[string]string
	Priority          Priority
	Attempts          int
	MaxAttempts       int
	Status            Status
	ScheduledFor      time.Time
	LastAttempt       *time.Time
	Error             *string
	ProviderMessageID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FailedEmail is a stats view of a recently failed message.
type FailedEmail struct {
	ID       string     `json:"id"`
	To       string     `json:"to"`
	Subject  string     `json:"subject"`
	Error    string     `json:"error"`
	FailedAt *time.Time `json:"failed_at"`
}

// QueueStats aggregates queue state for operators.
type QueueStats struct {
	ByStatus       map[Status]int   `json:"by_status"`
	ByPriority     map[Priority]int `json:"by_priority"`
	RecentFailures []FailedEmail    `json:"recent_failures"`
}
