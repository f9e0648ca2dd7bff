package ingest

import "net/url"

// mustParseURL parses raw into a *url.URL, returning an empty URL on
// failure rather than an error — go-readability treats a nil/empty base
// URL as "no base", which is an acceptable degradation for a malformed
// feed link.
func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
