package provider

import (
	"context"

	"github.com/google/uuid"
)

// NoopProvider is a stubbed provider that pretends to send emails.
type NoopProvider struct{}

// NewNoopProvider constructs a no-op email provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Send returns a generated message ID without sending.
func (p *NoopProvider) Send(_ context.Context, _ Email) (string, error) {
	return "noop-" + uuid.NewString(), nil
}
