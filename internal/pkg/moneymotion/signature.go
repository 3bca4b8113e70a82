package moneymotion

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Signature headers in lookup order.
var SignatureHeaders = []string{"x-moneymotion-signature", "x-webhook-signature", "x-signature"}

// VerifySignature checks a hex HMAC-SHA512 of payload. The comparison is
// constant-time; malformed hex never matches.
func VerifySignature(payload []byte, signature string, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	return hmac.Equal(given, sum(payload, secret))
}

// Sign returns the hex HMAC-SHA512 of payload.
func Sign(payload []byte, secret string) string {
	return hex.EncodeToString(sum(payload, secret))
}

func sum(payload []byte, secret string) []byte {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(payload)
	return h.Sum(nil)
}
