package pix

import (
	"strings"
	"testing"
)

func TestCRC16KnownVector(t *testing.T) {
	// standard CRC-16/CCITT-FALSE check value
	if got := crc16("123456789"); got != 0x29B1 {
		t.Fatalf("crc16(123456789) = %04X, want 29B1", got)
	}
}

func TestBRCodeLayout(t *testing.T) {
	code, err := BRCode(Charge{
		Key:          "chave@doceria.com.br",
		Amount:       25.5,
		TxID:         "PEDIDO123",
		MerchantName: "Doceria da Ana",
		MerchantCity: "SAO PAULO",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(code, "000201") {
		t.Fatalf("missing payload format indicator: %s", code)
	}
	for _, want := range []string{
		"br.gov.bcb.pix",
		"chave@doceria.com.br",
		"5303986", // currency BRL
		"540525.50",
		"5802BR",
		"Doceria da Ana",
		"SAO PAULO",
		"PEDIDO123",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("BR Code missing %q: %s", want, code)
		}
	}
	// last 8 chars are the CRC field: id 63, length 04, 4 hex digits
	tail := code[len(code)-8:]
	if !strings.HasPrefix(tail, "6304") {
		t.Fatalf("CRC field malformed: %s", tail)
	}
}

func TestBRCodeCRCSelfConsistent(t *testing.T) {
	code, err := BRCode(Charge{Key: "k", Amount: 1, MerchantName: "N", MerchantCity: "C"})
	if err != nil {
		t.Fatal(err)
	}
	payload := code[:len(code)-4]
	want := code[len(code)-4:]
	got := crc16(payload)
	if want != hex4(got) {
		t.Fatalf("embedded CRC %s, recomputed %s", want, hex4(got))
	}
}

func hex4(v uint16) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[v>>12&0xF], digits[v>>8&0xF], digits[v>>4&0xF], digits[v&0xF]})
}

func TestBRCodeDefaultsAndTruncation(t *testing.T) {
	code, err := BRCode(Charge{
		Key:          "k",
		Amount:       10,
		MerchantName: strings.Repeat("N", 40),
		MerchantCity: strings.Repeat("C", 40),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(code, "6207"+"0503***") {
		t.Fatalf("empty txid should fall back to ***: %s", code)
	}
	if strings.Contains(code, strings.Repeat("N", 26)) {
		t.Fatal("merchant name not truncated to 25")
	}
	if strings.Contains(code, strings.Repeat("C", 16)) {
		t.Fatal("merchant city not truncated to 15")
	}
}

func TestBRCodeValidation(t *testing.T) {
	cases := []Charge{
		{Amount: 1, MerchantName: "N", MerchantCity: "C"},          // no key
		{Key: "k", MerchantName: "N", MerchantCity: "C"},           // no amount
		{Key: "k", Amount: -1, MerchantName: "N", MerchantCity: "C"},
		{Key: "k", Amount: 1, MerchantCity: "C"},                   // no name
		{Key: "k", Amount: 1, MerchantName: "N"},                   // no city
	}
	for i, c := range cases {
		if _, err := BRCode(c); err == nil {
			t.Errorf("case %d: invalid charge accepted", i)
		}
	}
}
