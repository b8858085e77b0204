package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/railsonsantospb/unifi-relay/core"
)

var (
	ErrMissingSignature = errors.New("webhooks: signature header is required")
	ErrInvalidSignature = errors.New("webhooks: signature verification failed")
)

// VerifySignature reports whether signatureHex is the hex HMAC-SHA256 of raw
// keyed by secret. Both sides are compared as decoded bytes in constant time.
func VerifySignature(secret string, raw []byte, signatureHex string) bool {
	if signatureHex == "" {
		return false
	}
	decoded, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, Sign(secret, raw)) == 1
}

// Sign returns the raw HMAC-SHA256 digest of raw keyed by secret.
func Sign(secret string, raw []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(raw)
	return mac.Sum(nil)
}

func SignHex(secret string, raw []byte) string {
	return hex.EncodeToString(Sign(secret, raw))
}

type HeaderHMACVerifier struct {
	Header string
	Secret string
}

func NewHeaderHMACVerifier(header string, secret string) HeaderHMACVerifier {
	if strings.TrimSpace(header) == "" {
		header = core.DefaultSignatureHeader
	}
	return HeaderHMACVerifier{Header: header, Secret: secret}
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if v.Secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	header := v.Header
	if strings.TrimSpace(header) == "" {
		header = core.DefaultSignatureHeader
	}
	signature := headerValue(req.Headers, header)
	if signature == "" {
		return fmt.Errorf("%w: %s", ErrMissingSignature, header)
	}
	if !VerifySignature(v.Secret, req.Body, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ core.SignatureVerifier = HeaderHMACVerifier{}
