// Package hash signs and checks unsubscribe links.
package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

// ComputeHmac256 computes HMAC-SHA256
func ComputeHmac256(message, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("hmac secret is empty")
	}

	h := hmac.New(sha256.New, []byte(secret))
	_, err := h.Write([]byte(message))
	if err != nil {
		return "", errors.Wrap(err, "hmac.Write")
	}

	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifyHmac256 reports whether signature is the HMAC-SHA256 of message
func VerifyHmac256(message, signature, secret string) bool {
	expected, err := ComputeHmac256(message, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
