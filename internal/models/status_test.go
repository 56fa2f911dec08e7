package models

import "testing"

func TestParsePaymentStatus(t *testing.T) {
	for _, valid := range []string{"pending", "completed", "failed"} {
		s, err := ParsePaymentStatus(valid)
		if err != nil {
			t.Errorf("ParsePaymentStatus(%q) error: %v", valid, err)
		}
		if string(s) != valid {
			t.Errorf("ParsePaymentStatus(%q) = %q", valid, s)
		}
	}

	for _, invalid := range []string{"", "PENDING", "complete", "timed_out"} {
		if _, err := ParsePaymentStatus(invalid); err == nil {
			t.Errorf("ParsePaymentStatus(%q) should fail", invalid)
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	if PaymentPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !PaymentCompleted.Terminal() || !PaymentFailed.Terminal() {
		t.Error("completed and failed are terminal")
	}
}
