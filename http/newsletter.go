package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/auth"
	"github.com/quantonganh/mailbus/metrics"
)

const (
	realm            = `Basic realm="publish"`
	publishedMessage = "The newsletter issue has been published."
)

func (s *Server) publishNewsletterHandler(w http.ResponseWriter, r *http.Request) error {
	const op = "http.publishNewsletter"

	var req mailbus.NewsletterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		return &mailbus.Error{Code: mailbus.ErrInvalid, Message: "The request body is not a valid newsletter.", Op: op, Err: err}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	logger := hlog.FromRequest(r)
	client := clientKey(r)
	if s.Limiter != nil {
		blocked, err := s.Limiter.Blocked(r.Context(), client)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to check the authentication limiter")
		} else if blocked {
			return &mailbus.Error{Code: mailbus.ErrTooMany, Message: "Too many failed attempts, try again later.", Op: op}
		}
	}

	userID, err := s.authenticate(r)
	if err != nil {
		if mailbus.ErrorCode(err) == mailbus.ErrUnauthorized {
			w.Header().Set("WWW-Authenticate", realm)
			metrics.AuthFailures.WithLabelValues(auth.Reason(err)).Inc()
			if s.Limiter != nil {
				if err := s.Limiter.RecordFailure(r.Context(), client); err != nil {
					logger.Warn().Err(err).Msg("Failed to record an authentication failure")
				}
			}
		}
		return err
	}

	if s.Limiter != nil {
		if err := s.Limiter.Reset(r.Context(), client); err != nil {
			logger.Warn().Err(err).Msg("Failed to reset the authentication limiter")
		}
	}

	logger.Info().Str("user_id", userID).Str("title", req.Title).Msg("Publishing newsletter issue")

	// a started run outlives the client connection
	ctx := context.WithoutCancel(r.Context())
	if err := s.PublishService.Publish(ctx, req.ToContent()); err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, &messageResponse{Message: publishedMessage})
	return nil
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	creds, err := auth.ParseCredentials(r.Header)
	if err != nil {
		return "", err
	}
	return s.AuthService.Verify(r.Context(), creds)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
