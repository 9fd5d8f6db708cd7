package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func TestVerifyDevMode(t *testing.T) {
	v := NewVerifier("", "", "")
	p, err := v.Verify("u123")
	if err != nil {
		t.Fatal(err)
	}
	if p.UserID != "u123" || p.IsAdmin {
		t.Fatalf("principal %+v", p)
	}
	p, err = v.Verify("u123:admin")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsAdmin {
		t.Fatal("admin suffix not honored")
	}
	if _, err := v.Verify(""); err == nil {
		t.Fatal("empty dev token accepted")
	}
}

func hs256Token(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, _ := json.Marshal(v)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	signing := enc(map[string]any{"alg": "HS256", "typ": "JWT"}) + "." + enc(claims)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signing))
	return signing + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	v := NewVerifier("hmac", "topsecret", "")

	tok := hs256Token(t, "topsecret", map[string]any{
		"sub":      "u42",
		"is_admin": true,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.UserID != "u42" || !p.IsAdmin {
		t.Fatalf("principal %+v", p)
	}

	if _, err := v.Verify(hs256Token(t, "wrong", map[string]any{"sub": "u42"})); err == nil {
		t.Fatal("token signed with wrong secret accepted")
	}
	if _, err := v.Verify(hs256Token(t, "topsecret", map[string]any{
		"sub": "u42", "exp": time.Now().Add(-time.Hour).Unix(),
	})); err == nil {
		t.Fatal("expired token accepted")
	}
	if _, err := v.Verify(hs256Token(t, "topsecret", map[string]any{"is_admin": true})); err == nil {
		t.Fatal("token without sub accepted")
	}
	if _, err := v.Verify("not.a.jwt.with.five.parts"); err == nil {
		t.Fatal("malformed token accepted")
	}
}
