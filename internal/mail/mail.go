// Package mail delivers rendered newsletters by email.
package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"budgetdigest/internal/core"
)

// Message is one rendered newsletter addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender sends one message. Implementations must not retry internally;
// the pipeline decides what a failed recipient means for the run.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type ResendSender struct {
	client *resend.Client
	from   string
}

var _ Sender = (*ResendSender)(nil)

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("send: empty recipient: %w", core.ErrDeliveryFailed)
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send to %s: %w: %v", msg.To, core.ErrDeliveryFailed, err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("send to %s: no message id returned: %w", msg.To, core.ErrDeliveryFailed)
	}
	return nil
}
