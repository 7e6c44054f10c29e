package phone

import "testing"

func TestNormalizeKeyNationalFrenchNumber(t *testing.T) {
	if got := NormalizeKey("06 12 34 56 78"); got != "+33612345678" {
		t.Fatalf("expected +33612345678, got %s", got)
	}
}

func TestNormalizeKeyInternationalFormatsCollapse(t *testing.T) {
	inputs := []string{
		"+33612345678",
		"+33 6 12 34 56 78",
		"0612345678",
		"06.12.34.56.78",
	}
	for _, input := range inputs {
		if got := NormalizeKey(input); got != "+33612345678" {
			t.Fatalf("NormalizeKey(%q) = %s, want +33612345678", input, got)
		}
	}
}

func TestNormalizeKeyForeignNumberKeepsCountry(t *testing.T) {
	if got := NormalizeKey("+41 22 767 21 11"); got != "+41227672111" {
		t.Fatalf("expected +41227672111, got %s", got)
	}
}

func TestNormalizeKeyUnparseableFallsBackToDigits(t *testing.T) {
	if got := NormalizeKey("ext. 123-45"); got != "+12345" {
		t.Fatalf("expected digit fallback +12345, got %s", got)
	}
}

func TestNormalizeKeyEmptyInputs(t *testing.T) {
	for _, input := range []string{"", "   ", "n/a"} {
		if got := NormalizeKey(input); got != "" {
			t.Fatalf("NormalizeKey(%q) = %s, want empty", input, got)
		}
	}
}
