package preparer

import (
	"context"
	"fmt"
	"strings"
)

const altBoundary = "alt-5c9f2e7d1b"

type MIMEPreparer struct{}

// NewMIMEPreparer creates a preparer that builds the raw MIME message.
// When both HTML and text bodies are present it emits multipart/alternative,
// otherwise a single text/html part.
func NewMIMEPreparer() *MIMEPreparer {
	return &MIMEPreparer{}
}

// Prepare builds the raw message with headers.
func (p *MIMEPreparer) Prepare(_ context.Context, msg *Message) error {
	if strings.TrimSpace(msg.From) == "" {
		return fmt.Errorf("source email is required")
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}

	var b strings.Builder
	b.WriteString("From: ")
	b.WriteString(msg.From)
	b.WriteString("\r\n")
	b.WriteString("To: ")
	b.WriteString(msg.To)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(msg.Subject)
	b.WriteString("\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.TextBody == "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 7bit\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.HTMLBody)
	} else {
		b.WriteString("Content-Type: multipart/alternative; boundary=\"")
		b.WriteString(altBoundary)
		b.WriteString("\"\r\n\r\n")

		b.WriteString("--")
		b.WriteString(altBoundary)
		b.WriteString("\r\n")
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 7bit\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.TextBody)
		b.WriteString("\r\n")

		b.WriteString("--")
		b.WriteString(altBoundary)
		b.WriteString("\r\n")
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 7bit\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.HTMLBody)
		b.WriteString("\r\n")

		b.WriteString("--")
		b.WriteString(altBoundary)
		b.WriteString("--\r\n")
	}

	msg.Raw = []byte(b.String())
	return nil
}
