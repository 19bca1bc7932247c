package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain url", "https://example.com/a.mp4", "https://example.com/a.mp4"},
		{"empty", "", "''"},
		{"spaces", "/tmp/my downloads", "'/tmp/my downloads'"},
		{"query string", "https://x.com/v?a=1&b=2", "'https://x.com/v?a=1&b=2'"},
		{"single quote", "it's", `'it'"'"'s'`},
		{"dollar", "$HOME", "'$HOME'"},
		{"applescript", `display notification "hi"`, `'display notification "hi"'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteArg(tt.input))
		})
	}
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "xdg-open https://example.com/a.mp4",
		CommandLine("xdg-open", "https://example.com/a.mp4"))
	assert.Equal(t, "rundll32 url.dll,FileProtocolHandler 'https://example.com/?q=1'",
		CommandLine("rundll32", "url.dll,FileProtocolHandler", "https://example.com/?q=1"))
	assert.Equal(t, "'/opt/my apps/open'", CommandLine("/opt/my apps/open"))
}
