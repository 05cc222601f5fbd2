package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	t.Parallel()

	a, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	b, _ := NewOpaqueToken(32)
	if a == b || len(a) != 43 {
		t.Fatalf("tokens: %q %q", a, b)
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token must be URL-safe: %q", a)
	}
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	if !bytes.Equal(HashToken("x"), HashToken("x")) {
		t.Fatalf("hash must be deterministic")
	}
	if bytes.Equal(HashToken("x"), HashToken("y")) || len(HashToken("x")) != 32 {
		t.Fatalf("bad hash")
	}
}

func TestRandString(t *testing.T) {
	t.Parallel()

	s, err := RandString(8, CodeAlphabet)
	if err != nil {
		t.Fatalf("RandString: %v", err)
	}
	if len(s) != 8 {
		t.Fatalf("len=%d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(CodeAlphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
	if _, err := RandString(0, CodeAlphabet); err == nil {
		t.Fatalf("want error on zero length")
	}
}
