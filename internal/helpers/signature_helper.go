package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Card share payloads look like "card:<uuid>;signature:<hmac-hex>".
// The signature lets the verify endpoint reject QR codes that were not
// issued by this server.

func GenerateCardSignature(cardID uuid.UUID, secretKey string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte("card:" + cardID.String()))
	return hex.EncodeToString(h.Sum(nil))
}

func EncodeCardQRData(cardID uuid.UUID, secretKey string) string {
	return fmt.Sprintf("card:%s;signature:%s", cardID.String(), GenerateCardSignature(cardID, secretKey))
}

func ExtractCardIDFromQRData(qrData string) (uuid.UUID, error) {
	parts := strings.Split(qrData, ";")
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "card:") || !strings.HasPrefix(parts[1], "signature:") {
		return uuid.Nil, fmt.Errorf("invalid QR data format")
	}
	return uuid.Parse(strings.TrimPrefix(parts[0], "card:"))
}

func ValidateCardQRData(qrData string, secretKey string) bool {
	parts := strings.Split(qrData, ";")
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "signature:") {
		return false
	}

	cardID, err := ExtractCardIDFromQRData(qrData)
	if err != nil {
		return false
	}

	signature := strings.TrimPrefix(parts[1], "signature:")
	expectedSignature := GenerateCardSignature(cardID, secretKey)
	return hmac.Equal([]byte(expectedSignature), []byte(signature))
}
