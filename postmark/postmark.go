// Package postmark delivers emails through the Postmark HTTP API.
package postmark

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/quantonganh/mailbus"
)

// DefaultBaseURL is the Postmark API endpoint
const DefaultBaseURL = "https://api.postmarkapp.com"

// Sender implements mailbus.EmailSender
type Sender struct {
	client *resty.Client
}

type sendRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

type sendResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// NewSender returns a sender authenticating with the server token
func NewSender(baseURL, token string, timeout time.Duration) *Sender {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("X-Postmark-Server-Token", token)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Sender{client: client}
}

// Send posts msg to the /email endpoint
func (s *Sender) Send(ctx context.Context, msg *mailbus.Message) error {
	var result, failure sendResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&sendRequest{
			From:     msg.From,
			To:       msg.To,
			Subject:  msg.Subject,
			HTMLBody: msg.HTML,
			TextBody: msg.Text,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/email")
	if err != nil {
		return errors.Wrapf(err, "failed to send mail to %s", msg.To)
	}
	if resp.IsError() {
		return errors.Errorf("failed to send mail to %s: status %d, postmark error %d: %s",
			msg.To, resp.StatusCode(), failure.ErrorCode, failure.Message)
	}

	return nil
}
