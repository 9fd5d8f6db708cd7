package mercadopago

import (
	"strings"
	"testing"
)

func TestParseSignatureHeader(t *testing.T) {
	cases := []struct {
		header string
		ts, v1 string
		ok     bool
	}{
		{"ts=1704908010,v1=abc123", "1704908010", "abc123", true},
		{"v1=abc123,ts=1704908010", "1704908010", "abc123", true},
		{" ts=1 , v1=2 ", "1", "2", true},
		{"ts=1704908010", "", "", false},
		{"v1=abc123", "", "", false},
		{"", "", "", false},
		{"garbage", "", "", false},
		{"ts=,v1=", "", "", false},
	}
	for _, c := range cases {
		ts, v1, ok := ParseSignatureHeader(c.header)
		if ok != c.ok {
			t.Errorf("header %q: ok=%v, want %v", c.header, ok, c.ok)
			continue
		}
		if ok && (ts != c.ts || v1 != c.v1) {
			t.Errorf("header %q: got (%q,%q), want (%q,%q)", c.header, ts, v1, c.ts, c.v1)
		}
	}
}

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"type":"payment","data":{"id":"123"}}`)
	a := Sign("secret", "req-1", "1704908010", body)
	b := Sign("secret", "req-1", "1704908010", body)
	if a != b {
		t.Fatalf("same inputs produced different signatures: %s vs %s", a, b)
	}
	if a != strings.ToLower(a) {
		t.Fatalf("signature not lowercase hex: %s", a)
	}
	if len(a) != 64 {
		t.Fatalf("signature length %d, want 64", len(a))
	}
}

func TestSignNormalizesBody(t *testing.T) {
	compact := []byte(`{"type":"payment","data":{"id":"123"}}`)
	spaced := []byte("{\n  \"type\": \"payment\",\n  \"data\": { \"id\": \"123\" }\n}")
	if Sign("secret", "req-1", "1", compact) != Sign("secret", "req-1", "1", spaced) {
		t.Fatal("whitespace variants of the same JSON signed differently")
	}
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	body := []byte(`{"type":"payment","action":"payment.updated","data":{"id":"99"}}`)
	sig := Sign("s3cret", "req-abc", "1704908010", body)
	header := "ts=1704908010,v1=" + sig
	if !VerifySignature("s3cret", header, "req-abc", body) {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifySignatureTamper(t *testing.T) {
	body := []byte(`{"type":"payment","data":{"id":"99"}}`)
	sig := Sign("s3cret", "req-abc", "1704908010", body)
	header := "ts=1704908010,v1=" + sig

	tampered := []byte(`{"type":"payment","data":{"id":"98"}}`)
	if VerifySignature("s3cret", header, "req-abc", tampered) {
		t.Fatal("tampered body accepted")
	}
	if VerifySignature("s3cret", header, "req-xyz", body) {
		t.Fatal("wrong request id accepted")
	}
	if VerifySignature("s3cret", "ts=1704908011,v1="+sig, "req-abc", body) {
		t.Fatal("wrong timestamp accepted")
	}
	if VerifySignature("other", header, "req-abc", body) {
		t.Fatal("wrong secret accepted")
	}
	// flip one hex digit of the signature
	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	if VerifySignature("s3cret", "ts=1704908010,v1="+string(flipped), "req-abc", body) {
		t.Fatal("corrupted signature accepted")
	}
}

func TestVerifySignatureMalformed(t *testing.T) {
	body := []byte(`{"x":1}`)
	for _, header := range []string{
		"", "ts=1", "v1=deadbeef", "ts=1,v1=zznothex", "ts=1,v1=",
	} {
		if VerifySignature("s", header, "r", body) {
			t.Errorf("malformed header %q accepted", header)
		}
	}
	// non-JSON body signs as received and still round-trips
	raw := []byte("not json at all")
	sig := Sign("s", "r", "1", raw)
	if !VerifySignature("s", "ts=1,v1="+sig, "r", raw) {
		t.Fatal("non-JSON body failed round trip")
	}
}
