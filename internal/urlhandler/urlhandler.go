// Package urlhandler cleans up operator supplied site URLs before they are
// registered for monitoring.
package urlhandler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// trackingParams never change page content and only split one page into
// several monitored sites.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"msclkid":      true,
	"mc_cid":       true,
	"mc_eid":       true,
}

// NormalizeURL trims rawURL, adds https:// when no scheme is given, lowercases
// scheme and host, drops default ports, the fragment and tracking parameters.
// The scheme is not checked here; site validation rejects non-HTTP schemes.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errors.New("URL is empty or only whitespace")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + strings.TrimPrefix(trimmed, "//")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("could not parse URL '%s': %w", trimmed, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("URL '%s' lacks a valid hostname", trimmed)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	switch {
	case parsed.Scheme == "http" && parsed.Port() == "80",
		parsed.Scheme == "https" && parsed.Port() == "443":
		host := parsed.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		parsed.Host = host
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	stripTrackingParams(parsed)

	return parsed.String(), nil
}

func stripTrackingParams(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	values := u.Query()
	modified := false
	for param := range values {
		if trackingParams[strings.ToLower(param)] {
			values.Del(param)
			modified = true
		}
	}
	if modified {
		u.RawQuery = values.Encode()
	}
}
