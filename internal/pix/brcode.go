// Package pix builds static PIX BR Code payloads (EMV MPM format) for the
// copy-and-paste / QR payment flow.
package pix

import (
	"errors"
	"fmt"
	"strings"
)

// Charge describes a static PIX charge. Amount is in BRL.
type Charge struct {
	Key          string
	Amount       float64
	TxID         string
	MerchantName string
	MerchantCity string
}

// EMV MPM field IDs used by the static PIX payload.
const (
	idPayloadFormat       = "00"
	idMerchantAccountInfo = "26"
	idGUI                 = "00"
	idKey                 = "01"
	idCategoryCode        = "52"
	idCurrency            = "53"
	idAmount              = "54"
	idCountryCode         = "58"
	idMerchantName        = "59"
	idMerchantCity        = "60"
	idAdditionalData      = "62"
	idTxID                = "05"
	idCRC                 = "63"
)

const pixGUI = "br.gov.bcb.pix"

// BRCode renders the charge as an EMV payload, CRC included. Merchant name
// and city are truncated to the EMV limits (25 and 15 characters); TxID
// falls back to "***" when empty, which is what static QR codes use.
func BRCode(c Charge) (string, error) {
	if c.Key == "" {
		return "", errors.New("pix: key required")
	}
	if c.Amount <= 0 {
		return "", errors.New("pix: amount must be positive")
	}
	if c.MerchantName == "" || c.MerchantCity == "" {
		return "", errors.New("pix: merchant name and city required")
	}
	txid := c.TxID
	if txid == "" {
		txid = "***"
	}
	if len(txid) > 25 {
		txid = txid[:25]
	}

	var b strings.Builder
	b.WriteString(tlv(idPayloadFormat, "01"))
	b.WriteString(tlv(idMerchantAccountInfo, tlv(idGUI, pixGUI)+tlv(idKey, c.Key)))
	b.WriteString(tlv(idCategoryCode, "0000"))
	b.WriteString(tlv(idCurrency, "986")) // BRL
	b.WriteString(tlv(idAmount, fmt.Sprintf("%.2f", c.Amount)))
	b.WriteString(tlv(idCountryCode, "BR"))
	b.WriteString(tlv(idMerchantName, truncate(c.MerchantName, 25)))
	b.WriteString(tlv(idMerchantCity, truncate(c.MerchantCity, 15)))
	b.WriteString(tlv(idAdditionalData, tlv(idTxID, txid)))

	payload := b.String() + idCRC + "04"
	return payload + fmt.Sprintf("%04X", crc16(payload)), nil
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the checksum the
// EMV MPM spec mandates for field 63.
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
