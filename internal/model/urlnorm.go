package model

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a URL to its dedup key: lowercase host with a
// leading "www." stripped, path without trailing slashes, query string and
// fragment dropped. Two URLs are duplicates iff their normalized forms are
// string-equal. Returns "" for empty or unparsable input.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.ToLower(strings.TrimRight(u.Path, "/"))

	return host + path
}
