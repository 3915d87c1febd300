package http

import (
	"encoding/json"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/hlog"

	"github.com/quantonganh/mailbus"
)

type appHandler func(w http.ResponseWriter, r *http.Request) error

var codes = map[string]int{
	mailbus.ErrInvalid:      http.StatusBadRequest,
	mailbus.ErrUnauthorized: http.StatusUnauthorized,
	mailbus.ErrForbidden:    http.StatusForbidden,
	mailbus.ErrNotFound:     http.StatusNotFound,
	mailbus.ErrConflict:     http.StatusConflict,
	mailbus.ErrTooMany:      http.StatusTooManyRequests,
	mailbus.ErrInternal:     http.StatusInternalServerError,
}

// ErrorStatusCode maps an application error code to an HTTP status
func ErrorStatusCode(code string) int {
	if status, ok := codes[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type messageResponse struct {
	Message string `json:"message"`
}

// Error writes the error returned by fn as a JSON message.
// Internal errors are logged with their whole chain and sent to Sentry;
// their cause never reaches the client.
func (s *Server) Error(fn appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := mailbus.ErrorCode(err)
		logger := hlog.FromRequest(r)
		if code == mailbus.ErrInternal {
			logger.Error().Str("code", code).Msg(mailbus.ErrorChain(err))
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
		} else {
			logger.Warn().Str("code", code).Err(err).Msg("Request rejected")
		}

		writeJSONResponse(w, ErrorStatusCode(code), &messageResponse{
			Message: mailbus.ErrorMessage(err),
		})
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	//nolint:errcheck
	json.NewEncoder(w).Encode(response)
}
