package swish

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0712345678", want: "46712345678"},
		{in: "071-234 56 78", want: "46712345678"},
		{in: "+46712345678", want: "46712345678"},
		{in: "46712345678", want: "46712345678"},
		{in: "0046712345678", wantErr: true},
		{in: "12345", wantErr: true},
		{in: "07123abc78", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateReference(t *testing.T) {
	if err := ValidateReference("SC-1234-abc"); err != nil {
		t.Fatalf("valid reference rejected: %v", err)
	}
	if err := ValidateReference(strings.Repeat("a", 35)); err != nil {
		t.Fatalf("35-char reference rejected: %v", err)
	}

	invalid := []string{
		"",
		strings.Repeat("a", 36),
		"has space",
		"ö-reference",
		"under_score",
	}
	for _, ref := range invalid {
		if err := ValidateReference(ref); err == nil {
			t.Errorf("ValidateReference(%q) expected error", ref)
		}
	}
}

func TestValidateMessageCountsRunes(t *testing.T) {
	if err := validateMessage(strings.Repeat("å", 50)); err != nil {
		t.Fatalf("50-character Swedish message rejected: %v", err)
	}
	if err := validateMessage("Keramikkurs för nybörjare, lördag förmiddag"); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	if err := validateMessage(strings.Repeat("ö", 51)); err == nil {
		t.Error("51-character message expected error")
	}
}

func TestValidateAmount(t *testing.T) {
	valid := []string{"1", "100.50", "0.01", "999999.99"}
	for _, amount := range valid {
		if err := ValidateAmount(amount); err != nil {
			t.Errorf("ValidateAmount(%q) unexpected error: %v", amount, err)
		}
	}

	invalid := []string{"", "0", "-5", "1.234", "abc", "10,50"}
	for _, amount := range invalid {
		if err := ValidateAmount(amount); err == nil {
			t.Errorf("ValidateAmount(%q) expected error", amount)
		}
	}
}
