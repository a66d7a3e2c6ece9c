package article

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw      string
		expected Category
		ok       bool
	}{
		{"Global", CategoryGlobal, true},
		{"  Global ", CategoryGlobal, true},
		{"ThailandSpecific", CategoryThailandSpecific, true},
		{"Thailand-specific", CategoryThailandSpecific, true},
		{"global", "", false},
		{"Asia", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseCategory(tt.raw)
			if ok != tt.ok {
				t.Errorf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.expected {
				t.Errorf("Expected category '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestCategoryValid(t *testing.T) {
	if !CategoryGlobal.Valid() || !CategoryThailandSpecific.Valid() {
		t.Error("Expected both canonical categories to be valid")
	}
	if Category("Thailand-specific").Valid() {
		t.Error("Legacy label must not be a valid stored category")
	}
}

func TestIsHTTPURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/a":  true,
		"http://example.com":     true,
		"HTTPS://EXAMPLE.COM":    true,
		" https://example.com ":  true,
		"ftp://example.com/file": false,
		"example.com":            false,
		"":                       false,
		"javascript:alert(1)":    false,
	}

	for link, expected := range tests {
		if got := IsHTTPURL(link); got != expected {
			t.Errorf("IsHTTPURL(%q): expected %v, got %v", link, expected, got)
		}
	}
}
