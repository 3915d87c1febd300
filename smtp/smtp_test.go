package smtp

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/quantonganh/mailbus"
)

type fakeDialer struct {
	sent  []*gomail.Message
	err   error
	block chan struct{}
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.sent = append(d.sent, m...)
	return d.err
}

func testMessage() *mailbus.Message {
	return &mailbus.Message{
		From:    "newsletter@example.com",
		To:      "reader@example.com",
		Subject: "Issue #1",
		HTML:    "<p>Hello</p>",
		Text:    "Hello",
	}
}

func TestSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := NewSenderWithDialer(d)

	require.NoError(t, s.Send(context.Background(), testMessage()))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"newsletter@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"reader@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Issue #1"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "text/html")
}

func TestSender_SendError(t *testing.T) {
	s := NewSenderWithDialer(&fakeDialer{err: errors.New("connection refused")})

	err := s.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reader@example.com")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSender_SendCanceled(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	defer close(d.block)
	s := NewSenderWithDialer(d)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, testMessage())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
