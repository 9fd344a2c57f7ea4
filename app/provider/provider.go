package provider

import "context"

// Email is the payload handed to a provider for delivery.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Metadata map[string]string
}

// EmailProvider performs the actual send and returns the provider-assigned
// message ID on success.
type EmailProvider interface {
	Send(ctx context.Context, email Email) (string, error)
}
