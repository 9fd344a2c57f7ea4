package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/vibast-solutions/ms-go-email-queue/app/preparer"
)

type SESProvider struct {
	client   *sesv2.Client
	preparer preparer.EmailPreparer
	source   string
}

// NewSESProvider builds a provider that sends email via AWS SES.
func NewSESProvider(cfg aws.Config, prep preparer.EmailPreparer, source string) *SESProvider {
	return &SESProvider{
		client:   sesv2.NewFromConfig(cfg),
		preparer: prep,
		source:   source,
	}
}

// Send builds the raw MIME message and sends it via SES. Message metadata is
// forwarded as SES message tags.
func (p *SESProvider) Send(ctx context.Context, email Email) (string, error) {
	if email.To == "" {
		return "", fmt.Errorf("recipient is required")
	}

	raw, err := p.preparer.Prepare(ctx, &preparer.Message{
		From:     p.source,
		To:       email.To,
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	})
	if err != nil {
		return "", fmt.Errorf("prepare email content: %w", err)
	}

	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.source),
		Destination: &types.Destination{
			ToAddresses: []string{email.To},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
		EmailTags: messageTags(email.Metadata),
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}

func messageTags(metadata map[string]string) []types.MessageTag {
	if len(metadata) == 0 {
		return nil
	}
	tags := make([]types.MessageTag, 0, len(metadata))
	for name, value := range metadata {
		tags = append(tags, types.MessageTag{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	return tags
}
