package differ

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/aleister1102/siteguardian/internal/models"
)

var textApplicationTypes = map[string]struct{}{
	"application/json":       {},
	"application/javascript": {},
	"application/ecmascript": {},
	"application/xml":        {},
	"application/xhtml+xml":  {},
	"application/rss+xml":    {},
	"application/atom+xml":   {},
	"application/ld+json":    {},
	"application/x-yaml":     {},
	"application/yaml":       {},
}

// MediaType returns the lower-cased media type without parameters.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsTextContent reports whether a content type should be diffed line by
// line. An empty content type is treated as text and left to decoding.
func IsTextContent(contentType string) bool {
	mediaType := MediaType(contentType)
	switch {
	case mediaType == "":
		return true
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.HasSuffix(mediaType, "+xml"), strings.HasSuffix(mediaType, "+json"):
		return true
	}
	_, ok := textApplicationTypes[mediaType]
	return ok
}

// IsHTMLContent reports whether the content type is HTML.
func IsHTMLContent(contentType string) bool {
	mediaType := MediaType(contentType)
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeText returns data as a string, or a DiffError when it is not
// valid UTF-8 text.
func decodeText(data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", &models.DiffError{Kind: models.DiffUnsupportedEncoding, Detail: "content contains NUL bytes"}
	}
	if !utf8.Valid(data) {
		return "", &models.DiffError{Kind: models.DiffUnsupportedEncoding, Detail: "content is not valid UTF-8"}
	}
	// strip a UTF-8 byte order mark
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
