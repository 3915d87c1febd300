package http

import (
	"net/http"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/pkg/hash"
)

const (
	unsubscribeMessage        = "Unsubscribed"
	invalidUnsubscribeMessage = "Either email or hash is invalid."
)

func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	email := query.Get("email")
	if email == "" || !hash.VerifyHmac256(email, query.Get("hash"), s.HMACSecret) {
		return &mailbus.Error{Code: mailbus.ErrInvalid, Message: invalidUnsubscribeMessage, Op: "http.unsubscribe"}
	}

	if err := s.SubscriptionService.Unsubscribe(r.Context(), email); err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, &mailbus.SubscriptionResponse{Message: unsubscribeMessage})
	return nil
}
