package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// signID returns the cookie value for a session id: "<id>.<mac>".
// The canonical string is "session.{id}".
func signID(secret []byte, id string) string {
	return id + "." + mac(secret, id)
}

// verifyCookie returns the session id carried by value, or "" when the
// value is malformed or its MAC does not match.
func verifyCookie(secret []byte, value string) string {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" || sig == "" {
		return ""
	}
	if !hmac.Equal([]byte(sig), []byte(mac(secret, id))) {
		return ""
	}
	return id
}

func mac(secret []byte, id string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte("session." + id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
