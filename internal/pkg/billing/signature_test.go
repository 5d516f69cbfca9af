package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	secret := "top-secret"

	if !VerifySignature(payload, signBody(payload, secret), secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifySignature(payload, strings.ToUpper(signBody(payload, secret)), secret) {
		t.Fatalf("expected uppercase hex signature to validate")
	}
	if VerifySignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifySignature(payload, "not-hex!", secret) {
		t.Fatalf("expected undecodable signature to fail")
	}
	if VerifySignature(payload, "", secret) {
		t.Fatalf("expected missing signature to fail")
	}
	if VerifySignature(payload, signBody(payload, secret), "") {
		t.Fatalf("expected missing secret to fail")
	}
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"id":"pay_1"}}}`)
	secret := "top-secret"
	sig := signBody(payload, secret)

	tampered := []byte(`{"event":"payment.captured","payload":{"payment":{"id":"pay_2"}}}`)
	if VerifySignature(tampered, sig, secret) {
		t.Fatalf("expected signature over mutated body to fail")
	}
}
