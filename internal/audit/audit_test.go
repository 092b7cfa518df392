package audit

import (
	"strings"
	"testing"
)

func TestMaskIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"254708", "******"},
		{"254708374149", "254******149"},
		{" NLJ7RT61SV ", "NLJ****1SV"},
	}
	for _, tc := range cases {
		if got := MaskIdentifier(tc.in); got != tc.want {
			t.Fatalf("MaskIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskIdentifierNeverLeaksMiddle(t *testing.T) {
	id := "254708374149"
	masked := MaskIdentifier(id)
	if strings.Contains(masked, id[3:len(id)-3]) {
		t.Fatalf("masked identifier leaks middle: %q", masked)
	}
}
