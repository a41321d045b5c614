package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

// sign returns the lowercase hex HMAC-SHA-256 of payload under secret.
func sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hexstr(mac.Sum(nil))
}

// wrapAuthenticated joins a signature tag and payload as "HEX64|PAYLOAD".
func wrapAuthenticated(secret, payload []byte) string {
	return sign(secret, payload) + "|" + string(payload)
}

// unwrapAuthenticated splits an authenticated wire string and verifies its
// tag in constant time. It fails closed: a string with no "|" separator, or
// whose tag doesn't match, is rejected rather than silently treated as an
// unauthenticated payload — a Codec configured with a secret never accepts
// unsigned input.
func unwrapAuthenticated(secret []byte, s string) (payload []byte, err error) {
	got, rest, ok := splitByte(s, '|')
	if !ok {
		return nil, sigMismatchErrf("<missing>", "<hmac>")
	}
	want := sign(secret, []byte(rest))
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return nil, sigMismatchErrf(got, want)
	}
	return []byte(rest), nil
}
