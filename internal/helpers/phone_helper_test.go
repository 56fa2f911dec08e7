package helpers

import "testing"

func TestFormatPhoneNumber(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local format", "0712345678", "254712345678", false},
		{"already international", "254712345678", "254712345678", false},
		{"plus prefix", "+254712345678", "254712345678", false},
		{"bare subscriber number", "712345678", "254712345678", false},
		{"whitespace trimmed", " 0712345678 ", "254712345678", false},
		{"empty", "", "", true},
		{"letters", "07123abc78", "", true},
		{"too short", "071234", "", true},
		{"too long", "2547123456789", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatPhoneNumber(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("FormatPhoneNumber(%q) expected error, got %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatPhoneNumber(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("FormatPhoneNumber(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestFormatPhoneNumberIdempotent(t *testing.T) {
	once, err := FormatPhoneNumber("0712345678")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := FormatPhoneNumber(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("formatting is not idempotent: %q != %q", once, twice)
	}
}
