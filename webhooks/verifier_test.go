package webhooks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/railsonsantospb/unifi-relay/core"
)

func TestVerifySignature_Deterministic(t *testing.T) {
	body := []byte(`{"type":"unifi.devices.v1","site":"home"}`)
	signature := SignHex("secret", body)

	for i := 0; i < 3; i++ {
		if !VerifySignature("secret", body, signature) {
			t.Fatalf("expected signature to verify on attempt %d", i)
		}
	}
	if signature != strings.ToLower(signature) {
		t.Fatalf("expected lowercase hex signature, got %q", signature)
	}
}

func TestVerifySignature_AnyByteMutationFails(t *testing.T) {
	body := []byte(`{"site":"home","hash":"abc"}`)
	signature := SignHex("secret", body)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x20
		if VerifySignature("secret", mutated, signature) {
			t.Fatalf("expected mutation at byte %d to invalidate signature", i)
		}
	}
}

func TestVerifySignature_RejectsBadInput(t *testing.T) {
	body := []byte(`{}`)
	valid := SignHex("secret", body)

	cases := map[string]string{
		"empty":        "",
		"not hex":      "zz" + valid[2:],
		"odd length":   valid[:len(valid)-1],
		"short":        valid[:32],
		"long":         valid + "00",
		"other secret": SignHex("other", body),
	}
	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			if VerifySignature("secret", body, signature) {
				t.Fatalf("expected %q to be rejected", signature)
			}
		})
	}
}

func TestHeaderHMACVerifier_Verify(t *testing.T) {
	body := []byte(`{"site":"home"}`)
	verifier := NewHeaderHMACVerifier("", "secret")

	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"x-signature": SignHex("secret", body)},
		Body:    body,
	})
	if err != nil {
		t.Fatalf("expected case-insensitive header match, got %v", err)
	}

	err = verifier.Verify(context.Background(), core.InboundRequest{Body: body})
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected missing signature error, got %v", err)
	}

	err = verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Signature": SignHex("secret", []byte(`{"site":"away"}`))},
		Body:    body,
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}
}

func TestHeaderHMACVerifier_RequiresSecret(t *testing.T) {
	err := HeaderHMACVerifier{}.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Signature": "00"},
	})
	if err == nil {
		t.Fatalf("expected missing secret error")
	}
}
