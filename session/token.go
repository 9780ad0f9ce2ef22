package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const tokenSize = 32

// ErrInvalidToken is returned by ParseToken for strings that are not a
// base64url encoding of exactly 32 bytes.
var ErrInvalidToken = errors.New("invalid session token")

// Token is the opaque session identifier carried by the cookie. It has no
// structure; the Redis record it names holds all session state.
type Token [tokenSize]byte

// NewToken draws a fresh token from crypto/rand.
func NewToken() (Token, error) {
	var t Token
	_, err := rand.Read(t[:])
	return t, err
}

func (t Token) String() string {
	// base64url, no padding, cookie-safe
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// ParseToken decodes a cookie value back into a Token.
func ParseToken(s string) (Token, error) {
	var t Token

	if len(s) != base64.RawURLEncoding.EncodedLen(tokenSize) {
		return t, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != tokenSize {
		return t, ErrInvalidToken
	}

	copy(t[:], raw)
	return t, nil
}
