package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/quantonganh/mailbus"
)

// Causes of a rejected request. They are kept for logs and metrics only:
// clients always see the same unauthorized response.
var (
	ErrMissingHeader   = errors.New("the 'Authorization' header was missing")
	ErrMalformedHeader = errors.New("the 'Authorization' header is malformed")
	ErrInvalidEncoding = errors.New("failed to base64-decode 'Basic' credentials")
	ErrUnknownUser     = errors.New("unknown username")
	ErrWrongPassword   = errors.New("invalid password")
)

const basicScheme = "Basic "

// ParseCredentials extracts HTTP Basic credentials from the request headers.
func ParseCredentials(h http.Header) (*mailbus.Credentials, error) {
	const op = "auth.ParseCredentials"

	value := h.Get("Authorization")
	if value == "" {
		return nil, unauthorized(op, ErrMissingHeader)
	}
	if !utf8.ValidString(value) {
		return nil, unauthorized(op, fmt.Errorf("%w: not a valid UTF8 string", ErrMalformedHeader))
	}

	encoded, ok := strings.CutPrefix(value, basicScheme)
	if !ok {
		return nil, unauthorized(op, fmt.Errorf("%w: the authorization scheme was not 'Basic'", ErrMalformedHeader))
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, unauthorized(op, fmt.Errorf("%w: %v", ErrInvalidEncoding, err))
	}
	if !utf8.Valid(decoded) {
		return nil, unauthorized(op, fmt.Errorf("%w: the decoded credential string is not valid UTF8", ErrMalformedHeader))
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, unauthorized(op, fmt.Errorf("%w: a password must be provided in 'Basic' auth", ErrMalformedHeader))
	}

	return &mailbus.Credentials{
		Username: username,
		Password: mailbus.NewSecret(password),
	}, nil
}

// Reason returns a short label for the cause of an authentication failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingHeader):
		return "missing_header"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrInvalidEncoding):
		return "invalid_encoding"
	case errors.Is(err, ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	}
	return "other"
}

func unauthorized(op string, err error) *mailbus.Error {
	return &mailbus.Error{
		Code:    mailbus.ErrUnauthorized,
		Message: "Authentication failed.",
		Op:      op,
		Err:     err,
	}
}
