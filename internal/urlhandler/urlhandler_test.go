package urlhandler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "already clean", input: "https://example.com/terms", expected: "https://example.com/terms"},
		{name: "surrounding whitespace", input: "  https://example.com/a \n", expected: "https://example.com/a"},
		{name: "missing scheme", input: "example.com/pricing", expected: "https://example.com/pricing"},
		{name: "protocol relative", input: "//example.com/x", expected: "https://example.com/x"},
		{name: "uppercase host and scheme", input: "HTTPS://Example.COM/Path", expected: "https://example.com/Path"},
		{name: "default https port", input: "https://example.com:443/a", expected: "https://example.com/a"},
		{name: "default http port", input: "http://example.com:80/", expected: "http://example.com/"},
		{name: "custom port kept", input: "http://example.com:8080/a", expected: "http://example.com:8080/a"},
		{name: "ipv6 default port", input: "https://[::1]:443/a", expected: "https://[::1]/a"},
		{name: "fragment dropped", input: "https://example.com/page#section", expected: "https://example.com/page"},
		{name: "tracking params dropped", input: "https://example.com/p?utm_source=x&id=7&gclid=abc", expected: "https://example.com/p?id=7"},
		{name: "other params untouched", input: "https://example.com/p?b=2&a=1", expected: "https://example.com/p?b=2&a=1"},
		{name: "non http scheme kept", input: "ftp://example.com/file", expected: "ftp://example.com/file"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no host", input: "https:///path", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.txt")
	content := "# terms pages\nhttps://example.com/terms\n\nexample.com/terms#top\nhttps://example.org/privacy?utm_campaign=x\nhttps:///broken\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := ReadURLsFromFile(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/terms", "https://example.org/privacy"}, urls)
}

func TestReadURLsFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadURLsFromFile(filepath.Join(dir, "missing.txt"), zerolog.Nop())
	assert.ErrorIs(t, err, ErrFileNotFound)

	onlyComments := filepath.Join(dir, "comments.txt")
	require.NoError(t, os.WriteFile(onlyComments, []byte("# nothing here\n\n"), 0o644))
	_, err = ReadURLsFromFile(onlyComments, zerolog.Nop())
	assert.ErrorIs(t, err, ErrFileEmpty)
}
