package dto

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func bindEnqueue(t *testing.T, body string) (EnqueueRequest, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/email/enqueue", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return EnqueueFromEchoContext(e.NewContext(req, rec))
}

func TestEnqueueFromEchoContextNormalizes(t *testing.T) {
	t.Parallel()

	req, err := bindEnqueue(t, `{"to":"  a@x.com ","subject":" S ","html":"<p>H</p>","priority":"HIGH"}`)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if req.To != "a@x.com" || req.Subject != "S" || req.Priority != "high" {
		t.Fatalf("normalization failed: %+v", req)
	}
}

func TestEnqueueRequestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		req  EnqueueRequest
		want error
	}{
		{"valid", EnqueueRequest{To: "a@x.com", Subject: "S", HTML: "<p>H</p>"}, nil},
		{"missing to", EnqueueRequest{Subject: "S", HTML: "<p>H</p>"}, ErrMissingFields},
		{"missing subject", EnqueueRequest{To: "a@x.com", HTML: "<p>H</p>"}, ErrMissingFields},
		{"missing html", EnqueueRequest{To: "a@x.com", Subject: "S"}, ErrMissingFields},
		{"bad address", EnqueueRequest{To: "not-an-address", Subject: "S", HTML: "<p>H</p>"}, ErrInvalidRecipient},
		{"bad priority", EnqueueRequest{To: "a@x.com", Subject: "S", HTML: "<p>H</p>", Priority: "urgent"}, ErrInvalidPriority},
		{"bad schedule", EnqueueRequest{To: "a@x.com", Subject: "S", HTML: "<p>H</p>", ScheduledFor: "tomorrow"}, ErrInvalidSchedule},
		{"bad max attempts", EnqueueRequest{To: "a@x.com", Subject: "S", HTML: "<p>H</p>", MaxAttempts: -1}, ErrInvalidMaxAttempts},
		{"valid full", EnqueueRequest{To: "a@x.com", Subject: "S", HTML: "<p>H</p>", Priority: "low", ScheduledFor: "2025-06-01T12:00:00Z", MaxAttempts: 5}, nil},
	}

	for _, tc := range cases {
		if err := tc.req.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEnqueueRequestScheduledAt(t *testing.T) {
	t.Parallel()

	req := EnqueueRequest{ScheduledFor: "2025-06-01T12:00:00Z"}
	got := req.ScheduledAt()
	if got == nil || !got.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected ScheduledAt: %v", got)
	}

	req = EnqueueRequest{}
	if req.ScheduledAt() != nil {
		t.Fatalf("expected nil for unset schedule")
	}
}
