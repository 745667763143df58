package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Outbound delivery headers. Direct broadcasts omit the signature.
const (
	SignatureHeader = "X-Signature"
	EventTypeHeader = "X-Event-Type"
	EventIDHeader   = "X-Event-Id"
)

// Sign computes the hex-encoded HMAC-SHA256 of the payload under the
// subscriber's secret. The payload must be the exact bytes written to the
// wire; signing a re-serialization of the event would not verify.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the signature matches the payload under the
// secret, in constant time.
func Verify(secret string, payload []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
