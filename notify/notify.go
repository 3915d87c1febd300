// Package notify renders and sends the subscription lifecycle emails.
package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/matcornic/hermes/v2"
	"github.com/pkg/errors"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/pkg/hash"
)

// Notifier sends confirmation and thank-you emails through an EmailSender
type Notifier struct {
	Sender      mailbus.EmailSender
	From        string
	ProductName string
	BaseURL     string
	HMACSecret  string
}

// NewNotifier returns a notifier linking back to baseURL
func NewNotifier(sender mailbus.EmailSender, from, productName, baseURL, hmacSecret string) *Notifier {
	return &Notifier{
		Sender:      sender,
		From:        from,
		ProductName: productName,
		BaseURL:     baseURL,
		HMACSecret:  hmacSecret,
	}
}

func (n *Notifier) hermes() hermes.Hermes {
	return hermes.Hermes{
		Product: hermes.Product{
			Name: n.ProductName,
			Link: n.BaseURL,
		},
	}
}

// ConfirmationLink returns the link confirming the subscription holding token
func (n *Notifier) ConfirmationLink(token string) string {
	return fmt.Sprintf("%s/subscriptions/confirm?subscription_token=%s", n.BaseURL, url.QueryEscape(token))
}

// UnsubscribeLink returns the signed link unsubscribing email
func (n *Notifier) UnsubscribeLink(email string) (string, error) {
	sig, err := hash.ComputeHmac256(email, n.HMACSecret)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("email", email)
	q.Set("hash", sig)
	return n.BaseURL + "/unsubscribe?" + q.Encode(), nil
}

// SendConfirmation sends a confirmation email
func (n *Notifier) SendConfirmation(ctx context.Context, to, token string) error {
	email := hermes.Email{
		Body: hermes.Body{
			Intros: []string{
				fmt.Sprintf("Welcome to %s", n.ProductName),
			},
			Actions: []hermes.Action{
				{
					Instructions: "Click the button below to confirm your subscription:",
					Button: hermes.Button{
						Color: "#22BC66",
						Text:  "Confirm your subscription",
						Link:  n.ConfirmationLink(token),
					},
				},
			},
		},
	}

	return n.send(ctx, to, "Confirm subscription", email)
}

// SendThankYou sends a "thank you" email carrying the unsubscribe link
func (n *Notifier) SendThankYou(ctx context.Context, to string) error {
	link, err := n.UnsubscribeLink(to)
	if err != nil {
		return err
	}

	email := hermes.Email{
		Body: hermes.Body{
			Intros: []string{
				fmt.Sprintf("Thank you for subscribing to %s", n.ProductName),
			},
			Actions: []hermes.Action{
				{
					Instructions: "You will receive updates to your inbox.",
				},
			},
			Outros: []string{
				fmt.Sprintf("You can unsubscribe at any time: %s", link),
			},
		},
	}

	return n.send(ctx, to, "Thank you for subscribing", email)
}

func (n *Notifier) send(ctx context.Context, to, subject string, email hermes.Email) error {
	h := n.hermes()

	html, err := h.GenerateHTML(email)
	if err != nil {
		return errors.Errorf("failed to generate HTML email: %v", err)
	}
	text, err := h.GeneratePlainText(email)
	if err != nil {
		return errors.Errorf("failed to generate plain text email: %v", err)
	}

	return n.Sender.Send(ctx, &mailbus.Message{
		From:    n.From,
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
}
