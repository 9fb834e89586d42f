package telegram

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"dial tcp 10.0.0.5:5000: i/o timeout", "dial tcp 10\\.0\\.0\\.5:5000: i/o timeout"},
		{"HTTP 500 (server error)", "HTTP 500 \\(server error\\)"},
		{"a_b*c[d]", "a\\_b\\*c\\[d\\]"},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.input); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
