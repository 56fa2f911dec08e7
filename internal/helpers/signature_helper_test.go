package helpers

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

const testSecret = "test-signing-secret"

func TestCardQRDataRoundTrip(t *testing.T) {
	cardID := uuid.New()
	qrData := EncodeCardQRData(cardID, testSecret)

	if !ValidateCardQRData(qrData, testSecret) {
		t.Fatal("freshly encoded QR data failed validation")
	}

	extracted, err := ExtractCardIDFromQRData(qrData)
	if err != nil {
		t.Fatalf("failed to extract card ID: %v", err)
	}
	if extracted != cardID {
		t.Errorf("extracted %s, want %s", extracted, cardID)
	}
}

func TestValidateCardQRDataRejectsTampering(t *testing.T) {
	cardID := uuid.New()
	otherID := uuid.New()
	qrData := EncodeCardQRData(cardID, testSecret)

	tampered := strings.Replace(qrData, cardID.String(), otherID.String(), 1)
	if ValidateCardQRData(tampered, testSecret) {
		t.Error("validation accepted a QR payload with a swapped card ID")
	}

	if ValidateCardQRData(qrData, "wrong-secret") {
		t.Error("validation accepted a signature from a different secret")
	}

	if ValidateCardQRData("card:not-even-close", testSecret) {
		t.Error("validation accepted a malformed payload")
	}
}

func TestExtractCardIDFromQRDataMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"card:abc",
		"card:" + uuid.New().String(),
		"ticket:" + uuid.New().String() + ";signature:deadbeef",
	} {
		if _, err := ExtractCardIDFromQRData(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
