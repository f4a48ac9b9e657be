package utils_test

import (
	"testing"

	"eagleeye/internal/utils"
)

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"mh 12-ab1234", "MH12AB1234"},
		{"  dl.01.a.2345  ", "DL01A2345"},
		{"TN09GH3456", "TN09GH3456"},
		{"", ""},
		{" - ", ""},
	}
	for _, tc := range cases {
		if got := utils.NormalizePlate(tc.in); got != tc.want {
			t.Fatalf("NormalizePlate(%q): expected %q got %q", tc.in, tc.want, got)
		}
	}
}
