package http

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"mime"
	"net/http"

	"github.com/rs/zerolog/hlog"
	uuid "github.com/satori/go.uuid"

	"github.com/quantonganh/mailbus"
)

const (
	confirmationMessage      = "A confirmation email has been sent to %s. Click the link in the email to confirm and activate your subscription. Check your spam folder if you don't see it within a couple of minutes."
	thankyouMessage          = "Thank you for subscribing to this newsletter."
	pendingMessage           = "Your subscription status is pending. Please click the confirmation link in your email."
	alreadySubscribedMessage = "You had been subscribed to this newsletter already."

	tokenLength   = 25
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

func (s *Server) subscriptionsHandler(w http.ResponseWriter, r *http.Request) error {
	const op = "http.subscriptions"

	req, err := decodeSubscriptionRequest(w, r)
	if err != nil {
		return &mailbus.Error{Code: mailbus.ErrInvalid, Message: "The subscription request is malformed.", Op: op, Err: err}
	}

	email, err := mailbus.ParseSubscriberEmail(req.Email)
	if err != nil {
		return err
	}
	name, err := mailbus.ParseSubscriberName(req.Name)
	if err != nil {
		return err
	}

	token, err := generateSubscriptionToken()
	if err != nil {
		return &mailbus.Error{Code: mailbus.ErrInternal, Op: op, Err: err}
	}

	ctx := r.Context()
	logger := hlog.FromRequest(r)
	subscription, err := s.SubscriptionService.FindByEmail(ctx, email.String())
	if err != nil {
		if mailbus.ErrorCode(err) != mailbus.ErrNotFound {
			return err
		}

		newSubscription := mailbus.NewSubscription(uuid.NewV4().String(), email, name, token)
		logger.Info().Str("subscription_id", newSubscription.ID).Msg("Saving new subscriber into the database")
		if err := s.SubscriptionService.Insert(ctx, newSubscription); err != nil {
			return err
		}

		logger.Info().Msg("Sending confirmation email")
		if err := s.Notifier.SendConfirmation(ctx, email.String(), token); err != nil {
			return &mailbus.Error{Code: mailbus.ErrInternal, Message: "Failed to send a confirmation email.", Op: op, Err: err}
		}

		writeJSONResponse(w, http.StatusOK, &mailbus.SubscriptionResponse{
			Message: fmt.Sprintf(confirmationMessage, email),
		})
		return nil
	}

	logger.Info().Str("subscription_id", subscription.ID).Str("status", subscription.Status).Msg("Found subscriber in the database")
	switch subscription.Status {
	case mailbus.StatusPending:
		writeJSONResponse(w, http.StatusOK, &mailbus.SubscriptionResponse{Message: pendingMessage})
		return nil
	case mailbus.StatusConfirmed:
		return &mailbus.Error{Code: mailbus.ErrInvalid, Message: alreadySubscribedMessage, Op: op}
	}

	logger.Info().Msgf("Updating status to %s", mailbus.StatusPending)
	if err := s.SubscriptionService.Update(ctx, email.String(), token); err != nil {
		return err
	}
	if err := s.Notifier.SendConfirmation(ctx, email.String(), token); err != nil {
		return &mailbus.Error{Code: mailbus.ErrInternal, Message: "Failed to send a confirmation email.", Op: op, Err: err}
	}

	writeJSONResponse(w, http.StatusOK, &mailbus.SubscriptionResponse{
		Message: fmt.Sprintf(confirmationMessage, email),
	})
	return nil
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) error {
	const op = "http.confirm"

	token := r.URL.Query().Get("subscription_token")
	if token == "" {
		return &mailbus.Error{Code: mailbus.ErrInvalid, Message: "The subscription token is missing.", Op: op}
	}

	ctx := r.Context()
	subscription, err := s.SubscriptionService.FindByToken(ctx, token)
	if err != nil {
		if mailbus.ErrorCode(err) == mailbus.ErrNotFound {
			return &mailbus.Error{Code: mailbus.ErrUnauthorized, Message: "The subscription token is invalid.", Op: op, Err: err}
		}
		return err
	}

	if subscription.Status != mailbus.StatusConfirmed {
		if err := s.SubscriptionService.Confirm(ctx, token); err != nil {
			return err
		}

		if err := s.Notifier.SendThankYou(ctx, subscription.Email); err != nil {
			return &mailbus.Error{Code: mailbus.ErrInternal, Message: "Failed to send a thank-you email.", Op: op, Err: err}
		}
	}

	writeJSONResponse(w, http.StatusOK, &mailbus.SubscriptionResponse{
		Message: thankyouMessage,
	})
	return nil
}

// decodeSubscriptionRequest reads a JSON body or a submitted form
func decodeSubscriptionRequest(w http.ResponseWriter, r *http.Request) (*mailbus.SubscriptionRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req mailbus.SubscriptionRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req.Email = r.PostForm.Get("email")
	req.Name = r.PostForm.Get("name")
	return &req, nil
}

func generateSubscriptionToken() (string, error) {
	limit := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, tokenLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
