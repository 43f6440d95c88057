package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat  = errors.New("invalid token format")
	ErrTokenSig     = errors.New("invalid token signature")
	ErrTokenExp     = errors.New("token expired")
	ErrTokenSID     = errors.New("session id mismatch")
	ErrTokenMissing = errors.New("missing surface token")
)

// GenerateSurfaceToken builds the credential a surface presents when it connects to a session.
// Format: base64url(session_id + "." + exp_unix + "." + hex(hmac_sha256(secret, session_id+"."+exp)))
func GenerateSurfaceToken(secret, sessionID string, expUnix int64) (string, error) {
	if secret == "" {
		return "", errors.New("surface token secret not configured")
	}
	msg := sessionID + "." + strconv.FormatInt(expUnix, 10)
	raw := msg + "." + sign(secret, msg)
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ValidateSurfaceToken parses and validates the token and returns the embedded session id and exp.
// A token stays valid until skewSeconds past its expiry.
func ValidateSurfaceToken(secret, token, expectSessionID string, now time.Time, skewSeconds int) (string, int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	// exp and signature never contain dots; the session id may.
	s := string(b)
	i := strings.LastIndex(s, ".")
	if i <= 0 {
		return "", 0, ErrTokenFormat
	}
	msg, sigHex := s[:i], s[i+1:]
	j := strings.LastIndex(msg, ".")
	if j <= 0 {
		return "", 0, ErrTokenFormat
	}
	sid, expStr := msg[:j], msg[j+1:]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	if expectSessionID != "" && sid != expectSessionID {
		return "", 0, ErrTokenSID
	}
	want, _ := hex.DecodeString(sign(secret, msg))
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	// constant-time compare
	if !hmac.Equal(want, got) {
		return "", 0, ErrTokenSig
	}
	if now.Unix() > exp+int64(skewSeconds) {
		return "", 0, ErrTokenExp
	}
	return sid, exp, nil
}

// FromRequest extracts a surface token from the Authorization header or the token query
// parameter; browsers cannot set headers on websocket upgrades.
func FromRequest(r *http.Request) (string, error) {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer "), nil
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", ErrTokenMissing
}

func sign(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
