package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-email-queue/app/dto"
	"github.com/vibast-solutions/ms-go-email-queue/app/entity"
	"github.com/vibast-solutions/ms-go-email-queue/app/service"
)

type EmailController struct {
	emails *service.EmailQueueService
}

// NewEmailController constructs the HTTP email queue controller.
func NewEmailController(emails *service.EmailQueueService) *EmailController {
	return &EmailController{emails: emails}
}

// Enqueue validates and accepts an email for delivery.
func (c *EmailController) Enqueue(ctx echo.Context) error {
	req, err := dto.EnqueueFromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	id, err := c.emails.Enqueue(ctx.Request().Context(), service.EnqueueInput{
		To:           req.To,
		Subject:      req.Subject,
		HTMLBody:     req.HTML,
		TextBody:     req.Text,
		Metadata:     req.Metadata,
		Priority:     entity.Priority(req.Priority),
		ScheduledFor: req.ScheduledAt(),
		MaxAttempts:  req.MaxAttempts,
	})
	if err != nil {
		if isInputError(err) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue email"})
	}

	return ctx.JSON(http.StatusOK, map[string]string{"id": id})
}

// Stats returns queue counts and recent failures.
func (c *EmailController) Stats(ctx echo.Context) error {
	stats, err := c.emails.Stats(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read queue stats"})
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Retry revives failed messages; with an empty body all failed messages are
// retried.
func (c *EmailController) Retry(ctx echo.Context) error {
	var req dto.IDsRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	retried, err := c.emails.RetryFailed(ctx.Request().Context(), req.IDs)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to retry emails"})
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"retried": retried})
}

// Cancel cancels pending or in-flight messages.
func (c *EmailController) Cancel(ctx echo.Context) error {
	var req dto.IDsRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.IDs) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "ids are required"})
	}

	cancelled, err := c.emails.Cancel(ctx.Request().Context(), req.IDs)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to cancel emails"})
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"cancelled": cancelled})
}

// Cleanup deletes old sent and cancelled rows.
func (c *EmailController) Cleanup(ctx echo.Context) error {
	var req dto.CleanupRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	deleted, err := c.emails.Cleanup(ctx.Request().Context(), req.DaysOld)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to clean up emails"})
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}

func isInputError(err error) bool {
	return errors.Is(err, service.ErrMissingRecipient) ||
		errors.Is(err, service.ErrMissingSubject) ||
		errors.Is(err, service.ErrMissingBody) ||
		errors.Is(err, service.ErrInvalidPriority)
}
