// Package mercadopago implements the Mercado Pago webhook signature scheme,
// payment-status mapping, and a thin client for the payments and checkout
// preference APIs.
package mercadopago

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ParseSignatureHeader extracts the ts and v1 tokens from an x-signature
// header of the form "ts=1704908010,v1=618c85…". Either token missing means
// the header cannot be verified.
func ParseSignatureHeader(header string) (ts, v1 string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "ts=") {
			ts = part[len("ts="):]
		} else if strings.HasPrefix(part, "v1=") {
			v1 = part[len("v1="):]
		}
	}
	return ts, v1, ts != "" && v1 != ""
}

// canonicalBody normalizes the raw request body for signing: parse as JSON
// and re-serialize compactly. Bodies that are not valid JSON are signed as
// received. The provider signs the compact form, so signing the raw bytes of
// a re-serialized request would fail verification.
func canonicalBody(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// Sign computes the lowercase hex HMAC-SHA256 of the canonical message
// id:{requestID};ts:{ts};data:{body} under secret.
func Sign(secret string, requestID, ts string, rawBody []byte) string {
	msg := "id:" + requestID + ";ts:" + ts + ";data:" + string(canonicalBody(rawBody))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an inbound webhook request against the shared
// secret. It never panics on malformed input; any failure yields false.
func VerifySignature(secret string, signatureHeader, requestID string, rawBody []byte) bool {
	ts, v1, ok := ParseSignatureHeader(signatureHeader)
	if !ok {
		return false
	}
	want, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil || len(want) == 0 {
		return false
	}
	got, err := hex.DecodeString(Sign(secret, requestID, ts, rawBody))
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}
