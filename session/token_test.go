package session

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	s := tok.String()
	if len(s) != 43 || strings.ContainsAny(s, "+/=") {
		t.Fatalf("token %q is not unpadded base64url of 32 bytes", s)
	}
	parsed, err := ParseToken(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != tok {
		t.Fatal("parsed token differs")
	}
}

func TestTokensAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("new token: %v", err)
		}
		if _, dup := seen[tok.String()]; dup {
			t.Fatal("duplicate token")
		}
		seen[tok.String()] = struct{}{}
	}
}

func TestParseTokenRejectsBadShapes(t *testing.T) {
	for _, s := range []string{
		"",
		"short",
		strings.Repeat("A", 42),
		strings.Repeat("A", 44),
		strings.Repeat("*", 43),
	} {
		if _, err := ParseToken(s); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("ParseToken(%q) expected ErrInvalidToken, got %v", s, err)
		}
	}
}
