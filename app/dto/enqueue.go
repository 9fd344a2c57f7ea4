package dto

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-email-queue/app/entity"
)

var (
	ErrMissingFields      = errors.New("to, subject, and html are required")
	ErrInvalidRecipient   = errors.New("to must be a valid email address")
	ErrInvalidPriority    = errors.New("priority must be low, normal, or high")
	ErrInvalidSchedule    = errors.New("scheduled_for must be an RFC 3339 timestamp")
	ErrInvalidMaxAttempts = errors.New("max_attempts must be a positive integer")
)

type EnqueueRequest struct {
	To           string            `json:"to"`
	Subject      string            `json:"subject"`
	HTML         string            `json:"html"`
	Text         string            `json:"text,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	ScheduledFor string            `json:"scheduled_for,omitempty"`
	MaxAttempts  int               `json:"max_attempts,omitempty"`
}

// EnqueueFromEchoContext binds and normalizes an enqueue request.
func EnqueueFromEchoContext(ctx echo.Context) (EnqueueRequest, error) {
	var req EnqueueRequest
	if err := ctx.Bind(&req); err != nil {
		return EnqueueRequest{}, err
	}
	req.normalize()
	return req, nil
}

// Validate checks required fields and format constraints.
func (r *EnqueueRequest) Validate() error {
	if r.To == "" || r.Subject == "" || r.HTML == "" {
		return ErrMissingFields
	}
	if _, err := mail.ParseAddress(r.To); err != nil {
		return ErrInvalidRecipient
	}
	if r.Priority != "" && !entity.Priority(r.Priority).Valid() {
		return ErrInvalidPriority
	}
	if r.ScheduledFor != "" {
		if _, err := time.Parse(time.RFC3339, r.ScheduledFor); err != nil {
			return ErrInvalidSchedule
		}
	}
	if r.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// ScheduledAt returns the parsed schedule time, or nil when unset.
// Call Validate first.
func (r *EnqueueRequest) ScheduledAt() *time.Time {
	if r.ScheduledFor == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, r.ScheduledFor)
	if err != nil {
		return nil
	}
	return &t
}

// normalize trims whitespace from addressing fields.
func (r *EnqueueRequest) normalize() {
	r.To = strings.TrimSpace(r.To)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
	r.ScheduledFor = strings.TrimSpace(r.ScheduledFor)
}

type IDsRequest struct {
	IDs []string `json:"ids"`
}

type CleanupRequest struct {
	DaysOld int `json:"days_old,omitempty"`
}
