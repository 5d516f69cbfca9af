package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the gateway's X-Signature header: a hex HMAC-SHA256
// digest over the exact raw request bytes. The body must never be re-parsed
// and re-serialized before hashing; re-serialization changes bytes and breaks
// the match. Returns false on a missing or undecodable signature.
func VerifySignature(rawBody []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
