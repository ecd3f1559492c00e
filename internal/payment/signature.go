package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "orderHandle|paymentHandle".
func Sign(secret, orderHandle, paymentHandle string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderHandle + "|" + paymentHandle))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature against the expected MAC in constant time.
func VerifySignature(secret, orderHandle, paymentHandle, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderHandle + "|" + paymentHandle))
	return hmac.Equal(mac.Sum(nil), got)
}
