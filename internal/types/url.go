package types

import "strings"

// NormalizeSiteURL canonicalizes a site URL for use as a storage key:
// scheme and a leading "www." are stripped, trailing slashes removed.
// Paths are preserved so a site may be a sub-tree ("example.com/shop").
func NormalizeSiteURL(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		s = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		s = s[len("http://"):]
	}
	if strings.HasPrefix(strings.ToLower(s), "www.") {
		s = s[len("www."):]
	}
	return strings.TrimRight(s, "/")
}

// SiteBaseURL turns a normalized site back into a fetchable base URL.
// Sites are crawled over https unless the caller kept an explicit scheme.
func SiteBaseURL(site string) string {
	lower := strings.ToLower(site)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return strings.TrimRight(site, "/")
	}
	return "https://" + strings.TrimRight(site, "/")
}
