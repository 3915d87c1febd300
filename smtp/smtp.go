// Package smtp delivers emails through an SMTP relay.
package smtp

import (
	"context"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/quantonganh/mailbus"
)

// Dialer opens a connection and sends messages. *gomail.Dialer implements it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender implements mailbus.EmailSender on top of gomail
type Sender struct {
	dialer Dialer
}

// NewSender returns a sender relaying through host:port
func NewSender(host string, port int, username, password string) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

// NewSenderWithDialer returns a sender using d
func NewSenderWithDialer(d Dialer) *Sender {
	return &Sender{dialer: d}
}

// Send sends msg as a multipart message with a plain text and an HTML part
func (s *Sender) Send(ctx context.Context, msg *mailbus.Message) error {
	m := newMessage(msg)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Errorf("failed to send mail to %s: %v", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "failed to send mail to %s", msg.To)
	}
}

func newMessage(msg *mailbus.Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			m.AddAlternative("text/html", msg.HTML)
		}
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}
