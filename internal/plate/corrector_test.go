package plate_test

import (
	"testing"

	"eagleeye/internal/plate"
)

func TestCorrect_ClassMismatches(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"digit in district read as letter", "MHI2AB1234", "MH12AB1234"},
		{"digit in series read as letter", "MH12A81234", "MH12AB1234"},
		{"letter in number read as digit", "MH12AB12S4", "MH12AB1254"},
		{"letter in region read as digit", "0L01AB1234", "OL01AB1234"},
		{"already correct standard plate", "MH12AB1234", "MH12AB1234"},
		{"already correct legacy plate", "DL01A2345", "DL01A2345"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := plate.Correct(tc.in)
			if got != tc.want {
				t.Fatalf("Correct(%q): expected %q got %q", tc.in, tc.want, got)
			}
		})
	}
}

func TestCorrect_PatternRules(t *testing.T) {
	got := plate.Correct("HH04HF2221")
	if got != "MH04MF2221" {
		t.Fatalf("expected MH04MF2221 got %q", got)
	}
}

func TestCorrect_DoubledPrefixCollapse(t *testing.T) {
	got := plate.Correct("MMH12AB1234")
	if got != "MH12AB1234" {
		t.Fatalf("expected MH12AB1234 got %q", got)
	}

	// DD is itself a region code, so a doubled D must survive.
	got = plate.Correct("DD03C1234")
	if got != "DD03C1234" {
		t.Fatalf("expected DD03C1234 got %q", got)
	}
}

func TestCorrect_ShortStringsPassThrough(t *testing.T) {
	for _, in := range []string{"", "A", "1O"} {
		if got := plate.Correct(in); got != in {
			t.Fatalf("expected %q unchanged, got %q", in, got)
		}
	}
}

func TestCorrect_Idempotent(t *testing.T) {
	inputs := []string{
		"HH04HF2221",
		"MHI2AB1234",
		"MMH12AB1234",
		"MH12AB1234",
		"XX99ZZ0000",
		"GARBAGE",
	}
	for _, in := range inputs {
		once := plate.Correct(in)
		twice := plate.Correct(once)
		if once != twice {
			t.Fatalf("Correct not stable for %q: %q then %q", in, once, twice)
		}
	}
}
