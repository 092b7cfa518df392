package infra

import (
	"strings"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	query := "--sql 0a4f5da9-087f-472f-ada0-22de09920dc5\nselect 1;\n"
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker returned error: %v", err)
	}
	if marker != "0a4f5da9-087f-472f-ada0-22de09920dc5" {
		t.Fatalf("marker mismatch: got %q", marker)
	}
	if strings.TrimSpace(trimmed) != "select 1;" {
		t.Fatalf("trimmed query mismatch: got %q", trimmed)
	}
}

func TestExtractMarkerRejectsUntaggedSQL(t *testing.T) {
	cases := []string{
		"select 1;",
		"-- sql 0a4f5da9-087f-472f-ada0-22de09920dc5\nselect 1;",
		"--sql not-a-uuid\nselect 1;",
		"",
	}
	for _, query := range cases {
		if _, _, err := extractMarker(query); err == nil {
			t.Fatalf("expected marker error for %q", query)
		}
	}
}
