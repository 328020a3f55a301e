package source

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Query parameters stripped during canonicalization. utm_* is handled as a
// prefix match.
var trackingParams = map[string]struct{}{
	"gclid":  {},
	"fbclid": {},
	"ref":    {},
	"source": {},
}

// Canonicalize normalizes a URL into the form used as the sole dedup key:
// lowercased scheme and host, default ports stripped, no trailing slash
// (except root), no fragment, tracking parameters dropped, and remaining
// query parameters in lexicographic order. Unparseable URLs return an error
// and their hits are dropped by the caller.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	// Strip default ports
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	// http and https address the same resource for dedup purposes
	if u.Scheme == "http" {
		u.Scheme = "https"
	}

	// Trailing slash is not significant except at the root
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	u.Fragment = ""

	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			// Keep the query opaque rather than dropping the URL
			values = nil
		}
		if values != nil {
			keys := make([]string, 0, len(values))
			for k := range values {
				if isTrackingParam(k) {
					continue
				}
				keys = append(keys, k)
			}
			sort.Strings(keys)

			var sb strings.Builder
			for _, k := range keys {
				vals := values[k]
				sort.Strings(vals)
				for _, v := range vals {
					if sb.Len() > 0 {
						sb.WriteByte('&')
					}
					sb.WriteString(url.QueryEscape(k))
					if v != "" {
						sb.WriteByte('=')
						sb.WriteString(url.QueryEscape(v))
					}
				}
			}
			u.RawQuery = sb.String()
		}
	}

	return u.String(), nil
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}
