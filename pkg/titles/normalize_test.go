package titles

import "testing"

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Project Hail Mary", "project hail mary"},
		{"leading article", "The Martian", "martian"},
		{"accents", "Léon", "leon"},
		{"ampersand", "War & Peace", "war and peace"},
		{"subtitle colon", "Dune: The Messiah", "dune messiah"},
		{"apostrophe", "Ender's Game", "enders game"},
		{"extra whitespace", "  A   Wrinkle  in Time ", "wrinkle in time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTitle(tt.input); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "The Hobbit", "The Hobbit"},
		{"path separators", "a/b\\c", "a b c"},
		{"illegal chars", `It: "Chapter? Two*"`, "It Chapter Two"},
		{"multiple dots", "v1...2", "v1.2"},
		{"trailing dots and spaces", " name.. ", "name"},
		{"null bytes", "a\x00b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
