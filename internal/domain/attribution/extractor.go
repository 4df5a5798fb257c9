package attribution

import (
	"net/url"
	"strings"
)

// ParseQuery splits a raw query string into decoded key/value pairs.
// Pairs without '=' or with an empty key are ignored, later duplicates win,
// and '+' is kept literally. A pair that fails to decode is skipped.
func ParseQuery(rawQuery string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimPrefix(rawQuery, "?"), "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		dk, err := url.PathUnescape(key)
		if err != nil {
			continue
		}
		dv, err := url.PathUnescape(value)
		if err != nil {
			continue
		}
		params[dk] = dv
	}
	return params
}

// Extract builds a candidate touch from the page URL and document referrer.
// Only allow-listed parameters are kept. The referrer is kept when it does not
// mention internalHost; an empty internalHost treats every referrer as external.
func Extract(rawURL, referrer, internalHost string) Touch {
	fields := make(map[string]string)

	params := ParseQuery(queryOf(rawURL))
	for _, name := range CaptureParams {
		if v := params[name]; v != "" {
			fields[name] = v
		}
	}

	if referrer != "" && !IsInternalReferrer(referrer, internalHost) {
		fields[KeyReferrer] = referrer
	}

	return NewTouch(fields)
}

// queryOf returns the search part of rawURL without the fragment.
func queryOf(rawURL string) string {
	_, query, found := strings.Cut(rawURL, "?")
	if !found {
		return ""
	}
	query, _, _ = strings.Cut(query, "#")
	return query
}

// IsInternalReferrer reports whether referrer points back at the site. A page
// without a hostname treats every referrer as internal.
func IsInternalReferrer(referrer, internalHost string) bool {
	if referrer == "" {
		return false
	}
	return strings.Contains(referrer, internalHost)
}

// HostOf returns the hostname of rawURL, or "" when it cannot be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
