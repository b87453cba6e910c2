package analysis

import (
	"net/url"
	"strings"
)

const (
	allowedHost  = "vk.com"
	maxURLLength = 2048
)

// ValidProfileURL reports whether the text looks like a link to a profile on
// the recognized social network: http(s) scheme, the vk.com host and a
// non-empty profile path. No remote service is contacted.
func ValidProfileURL(raw string) bool {
	if len(raw) > maxURLLength || strings.ContainsAny(raw, "\t\r\n ") {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Hostname() != allowedHost {
		return false
	}

	// The last path segment carries the profile ID or screen name
	segment := strings.TrimSuffix(u.Path, "/")
	segment = segment[strings.LastIndex(segment, "/")+1:]
	return segment != ""
}
