package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

// NewSessionToken returns an opaque random token. Only its hash is stored.
func NewSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Sign returns the credential handed to clients: token.signature.
func Sign(secret []byte, token string) string {
	return token + "." + sign(secret, token)
}

// Verify checks the credential signature and returns the bare token.
func Verify(secret []byte, credential string) (string, error) {
	token, signature, ok := strings.Cut(strings.TrimSpace(credential), ".")
	if !ok || token == "" || signature == "" || strings.Contains(signature, ".") {
		return "", ErrInvalidToken
	}
	expected := sign(secret, token)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidToken
	}
	return token, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
