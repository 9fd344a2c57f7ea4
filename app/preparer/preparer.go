package preparer

import (
	"context"
	"fmt"
)

// EmailPreparer builds the raw wire form of an outgoing email.
type EmailPreparer interface {
	Prepare(ctx context.Context, msg *Message) ([]byte, error)
}

// Message carries the parts a preparer assembles into a raw email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Raw      []byte
}

type Step interface {
	Prepare(ctx context.Context, msg *Message) error
}

type Chain struct {
	steps []Step
}

// NewChain builds an email preparer chain from steps.
func NewChain(steps ...Step) *Chain {
	return &Chain{steps: steps}
}

// Prepare runs all preparer steps and returns the final raw message.
func (c *Chain) Prepare(ctx context.Context, msg *Message) ([]byte, error) {
	for _, step := range c.steps {
		if err := step.Prepare(ctx, msg); err != nil {
			return nil, err
		}
	}

	if len(msg.Raw) == 0 {
		return nil, fmt.Errorf("prepared raw message is empty")
	}

	return msg.Raw, nil
}
