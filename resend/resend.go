// Package resend delivers emails through the Resend API.
package resend

import (
	"context"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/quantonganh/mailbus"
)

// Emails is the part of the Resend client the sender needs
type Emails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Sender implements mailbus.EmailSender
type Sender struct {
	emails Emails
}

// NewSender returns a sender authenticating with apiKey
func NewSender(apiKey string) *Sender {
	return &Sender{emails: resend.NewClient(apiKey).Emails}
}

// NewSenderWithEmails returns a sender calling emails
func NewSenderWithEmails(emails Emails) *Sender {
	return &Sender{emails: emails}
}

// Send sends msg
func (s *Sender) Send(ctx context.Context, msg *mailbus.Message) error {
	sent, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to send mail to %s", msg.To)
	}

	zerolog.Ctx(ctx).Debug().Str("message_id", sent.Id).Msg("Email accepted by resend")
	return nil
}
