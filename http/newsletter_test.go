package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/auth"
	"github.com/quantonganh/mailbus/dispatch"
	"github.com/quantonganh/mailbus/mock"
)

const (
	publisherName     = "publisher"
	publisherPassword = "everythinghastostartsomewhere"
)

var cheapParams = &auth.Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type countingSender struct {
	mu  sync.Mutex
	to  []string
	err error
}

func (c *countingSender) Send(_ context.Context, msg *mailbus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to = append(c.to, msg.To)
	return c.err
}

func (c *countingSender) recipients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.to...)
}

type publishFixture struct {
	server        *Server
	users         *mock.UserService
	subscriptions *mock.SubscriptionService
	sender        *countingSender
}

func newPublishFixture(t *testing.T, emails []string) *publishFixture {
	t.Helper()

	hash, err := auth.HashPassword(publisherPassword, cheapParams)
	require.NoError(t, err)

	users := new(mock.UserService)
	users.On("FindByUsername", tmock.Anything, publisherName).
		Return(&mailbus.User{ID: "3b7e2a4c", Username: publisherName, PasswordHash: hash}, nil)
	users.On("FindByUsername", tmock.Anything, tmock.Anything).
		Return(nil, mailbus.Errorf(mailbus.ErrNotFound, "User not found."))

	subscriptions := new(mock.SubscriptionService)
	subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(emails, nil)

	gate, err := auth.NewGate(users, auth.WithParams(cheapParams), auth.WithPool(auth.NewPool(2)))
	require.NoError(t, err)

	sender := new(countingSender)
	coordinator := dispatch.NewCoordinator(sender, "newsletter@example.com")
	coordinator.BatchDelay = time.Millisecond

	s := newTestServer(t)
	s.AuthService = gate
	s.PublishService = dispatch.NewPublisher(subscriptions, coordinator)

	return &publishFixture{
		server:        s,
		users:         users,
		subscriptions: subscriptions,
		sender:        sender,
	}
}

func confirmedEmails(n int) []string {
	emails := make([]string, n)
	for i := range emails {
		emails[i] = fmt.Sprintf("subscriber%02d@example.com", i)
	}
	return emails
}

func validNewsletter() map[string]interface{} {
	return map[string]interface{}{
		"title": "Newsletter title",
		"content": map[string]string{
			"html": "<p>Newsletter body as HTML</p>",
			"text": "Newsletter body as plain text",
		},
	}
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func publishRequest(t *testing.T, body interface{}, authorization string) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/newsletters", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func TestPublishNewsletter(t *testing.T) {
	testCases := []struct {
		name      string
		emails    []string
		wantSends int
	}{
		{"three batches", confirmedEmails(45), 45},
		{"invalid stored email is skipped", append(confirmedEmails(10), "not-an-email"), 10},
		{"no confirmed subscribers", []string{}, 0},
		{"single subscriber", confirmedEmails(1), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPublishFixture(t, tc.emails)

			w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, publishedMessage, decodeMessage(t, w))

			got := f.sender.recipients()
			assert.Len(t, got, tc.wantSends)
			assert.ElementsMatch(t, confirmedEmails(tc.wantSends), got)
			f.subscriptions.AssertNumberOfCalls(t, "FindConfirmedEmails", 1)
		})
	}
}

func TestPublishNewsletter_Twice(t *testing.T) {
	f := newPublishFixture(t, confirmedEmails(7))

	for i := 0; i < 2; i++ {
		w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Len(t, f.sender.recipients(), 14)
}

func TestPublishNewsletter_DeliveryFailures(t *testing.T) {
	f := newPublishFixture(t, confirmedEmails(3))
	f.sender.err = errors.New("provider unavailable")

	w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.sender.recipients(), 3)
}

func TestPublishNewsletter_StorageFailure(t *testing.T) {
	f := newPublishFixture(t, nil)
	f.subscriptions.ExpectedCalls = nil
	f.subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(nil, errors.New("connection reset"))

	w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Empty(t, f.sender.recipients())
}

func TestPublishNewsletter_InvalidBody(t *testing.T) {
	testCases := []struct {
		name string
		body interface{}
	}{
		{"missing title", map[string]interface{}{
			"content": map[string]string{"html": "<p>body</p>", "text": "body"},
		}},
		{"missing content", map[string]interface{}{"title": "Newsletter title"}},
		{"missing text", map[string]interface{}{
			"title":   "Newsletter title",
			"content": map[string]string{"html": "<p>body</p>"},
		}},
		{"not an object", []string{"title"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPublishFixture(t, confirmedEmails(3))

			// credentials are wrong too: the body is checked first
			w := serve(f.server, publishRequest(t, tc.body, basicAuth(publisherName, "wrong")))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, w.Header().Get("WWW-Authenticate"))

			f.users.AssertNotCalled(t, "FindByUsername", tmock.Anything, tmock.Anything)
			f.subscriptions.AssertNotCalled(t, "FindConfirmedEmails", tmock.Anything)
			assert.Empty(t, f.sender.recipients())
		})
	}
}

func TestPublishNewsletter_Unauthorized(t *testing.T) {
	testCases := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not basic", "Bearer abc"},
		{"invalid base64", "Basic %%%"},
		{"missing password", "Basic " + base64.StdEncoding.EncodeToString([]byte(publisherName))},
		{"wrong password", basicAuth(publisherName, "wrong")},
		{"unknown user", basicAuth("nobody", publisherPassword)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPublishFixture(t, confirmedEmails(3))

			w := serve(f.server, publishRequest(t, validNewsletter(), tc.authorization))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="publish"`, w.Header().Get("WWW-Authenticate"))

			f.subscriptions.AssertNotCalled(t, "FindConfirmedEmails", tmock.Anything)
			assert.Empty(t, f.sender.recipients())
		})
	}
}

func TestPublishNewsletter_UniformRejection(t *testing.T) {
	f := newPublishFixture(t, confirmedEmails(3))

	wrong := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, "wrong")))
	unknown := serve(f.server, publishRequest(t, validNewsletter(), basicAuth("nobody", publisherPassword)))

	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Header().Get("WWW-Authenticate"), unknown.Header().Get("WWW-Authenticate"))
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.NotContains(t, wrong.Body.String(), "password")
	assert.NotContains(t, unknown.Body.String(), "username")
}

func TestPublishNewsletter_Limiter(t *testing.T) {
	t.Run("blocked client", func(t *testing.T) {
		f := newPublishFixture(t, confirmedEmails(3))
		limiter := new(mock.AuthLimiter)
		limiter.On("Blocked", tmock.Anything, tmock.Anything).Return(true, nil)
		f.server.Limiter = limiter

		w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		f.users.AssertNotCalled(t, "FindByUsername", tmock.Anything, tmock.Anything)
	})

	t.Run("failure is recorded", func(t *testing.T) {
		f := newPublishFixture(t, confirmedEmails(3))
		limiter := new(mock.AuthLimiter)
		limiter.On("Blocked", tmock.Anything, tmock.Anything).Return(false, nil)
		limiter.On("RecordFailure", tmock.Anything, tmock.Anything).Return(nil)
		f.server.Limiter = limiter

		w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, "wrong")))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		limiter.AssertNumberOfCalls(t, "RecordFailure", 1)
		limiter.AssertNotCalled(t, "Reset", tmock.Anything, tmock.Anything)
	})

	t.Run("successful login clears the failures", func(t *testing.T) {
		f := newPublishFixture(t, confirmedEmails(3))
		limiter := new(mock.AuthLimiter)
		limiter.On("Blocked", tmock.Anything, tmock.Anything).Return(false, nil)
		limiter.On("Reset", tmock.Anything, "192.0.2.1").Return(nil)
		f.server.Limiter = limiter

		w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
		assert.Equal(t, http.StatusOK, w.Code)
		limiter.AssertNumberOfCalls(t, "Reset", 1)
		limiter.AssertNotCalled(t, "RecordFailure", tmock.Anything, tmock.Anything)
	})

	t.Run("unavailable limiter does not block", func(t *testing.T) {
		f := newPublishFixture(t, confirmedEmails(3))
		limiter := new(mock.AuthLimiter)
		limiter.On("Blocked", tmock.Anything, tmock.Anything).Return(false, errors.New("redis down"))
		limiter.On("Reset", tmock.Anything, tmock.Anything).Return(errors.New("redis down"))
		f.server.Limiter = limiter

		w := serve(f.server, publishRequest(t, validNewsletter(), basicAuth(publisherName, publisherPassword)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, f.sender.recipients(), 3)
	})
}

func TestPublishNewsletter_EmptyRenditions(t *testing.T) {
	f := newPublishFixture(t, confirmedEmails(2))

	body := map[string]interface{}{
		"title":   "Newsletter title",
		"content": map[string]string{"html": "", "text": ""},
	}
	w := serve(f.server, publishRequest(t, body, basicAuth(publisherName, publisherPassword)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.sender.recipients(), 2)
}
