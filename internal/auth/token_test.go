package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	sec := "secret123"
	sid := "abc"
	exp := time.Now().Add(5 * time.Minute).Unix()

	tok, err := GenerateSurfaceToken(sec, sid, exp)
	if err != nil { t.Fatalf("gen: %v", err) }

	gotSID, gotExp, err := ValidateSurfaceToken(sec, tok, sid, time.Now(), 60)
	if err != nil { t.Fatalf("validate: %v", err) }
	if gotSID != sid || gotExp != exp {
		t.Fatalf("mismatch: %s/%d", gotSID, gotExp)
	}
}

func TestBadSignature(t *testing.T) {
	sec := "secret123"
	sid := "abc"
	exp := time.Now().Add(5 * time.Minute).Unix()
	tok, _ := GenerateSurfaceToken(sec, sid, exp)

	if _, _, err := ValidateSurfaceToken("other-secret", tok, sid, time.Now(), 60); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestExpiredAndWrongSession(t *testing.T) {
	sec := "secret123"
	exp := time.Now().Add(-5 * time.Minute).Unix()
	tok, _ := GenerateSurfaceToken(sec, "abc", exp)

	if _, _, err := ValidateSurfaceToken(sec, tok, "abc", time.Now(), 60); !errors.Is(err, ErrTokenExp) {
		t.Fatalf("expected expiry error, got %v", err)
	}
	// within skew
	if _, _, err := ValidateSurfaceToken(sec, tok, "abc", time.Now(), 600); err != nil {
		t.Fatalf("expected token valid within skew: %v", err)
	}
	if _, _, err := ValidateSurfaceToken(sec, tok, "xyz", time.Now(), 600); !errors.Is(err, ErrTokenSID) {
		t.Fatalf("expected session mismatch, got %v", err)
	}
}

func TestUUIDSessionID(t *testing.T) {
	sid := "0b9f2c3e-6a1d-4f7e-9d55-2f4a1c8e7b10"
	exp := time.Now().Add(time.Hour).Unix()
	tok, _ := GenerateSurfaceToken("s", sid, exp)
	got, _, err := ValidateSurfaceToken("s", tok, sid, time.Now(), 0)
	if err != nil || got != sid {
		t.Fatalf("validate uuid session: %q %v", got, err)
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/surface?session_id=a&token=q", nil)
	if tok, err := FromRequest(r); err != nil || tok != "q" {
		t.Fatalf("expected query token, got %q %v", tok, err)
	}
	r.Header.Set("Authorization", "Bearer h")
	if tok, _ := FromRequest(r); tok != "h" {
		t.Fatalf("expected header token to win, got %q", tok)
	}
	r = httptest.NewRequest("GET", "/ws/surface", nil)
	if _, err := FromRequest(r); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
