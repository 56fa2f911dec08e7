package helpers

import (
	"fmt"
	"strings"
)

const kenyaCountryCode = "254"

// FormatPhoneNumber converts a locally formatted Kenyan number
// (e.g. 0712345678) to the international form Daraja expects
// (254712345678). Numbers already in international form pass through
// unchanged.
func FormatPhoneNumber(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")

	if phone == "" {
		return "", fmt.Errorf("phone number is empty")
	}

	if strings.HasPrefix(phone, "0") {
		phone = kenyaCountryCode + phone[1:]
	} else if !strings.HasPrefix(phone, kenyaCountryCode) {
		phone = kenyaCountryCode + phone
	}

	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number contains non-digit characters")
		}
	}

	if len(phone) != 12 {
		return "", fmt.Errorf("expected a 12 digit number, got %d digits", len(phone))
	}

	return phone, nil
}
