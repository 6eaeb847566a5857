package gateway

import (
	"net/url"
	"regexp"
	"strings"
)

// scpURI matches user@host:path clone URIs.
var scpURI = regexp.MustCompile(`^[^@/\s]+@([^:/\s]+):(.+)$`)

// extractDomain returns the host of an SSH (user@host:path) or HTTP(S) clone URI.
func extractDomain(uri string) (string, bool) {
	if m := scpURI.FindStringSubmatch(uri); m != nil {
		return m[1], true
	}
	u, ok := parseWebURI(uri)
	if !ok {
		return "", false
	}
	return u.Hostname(), true
}

// extractNamespace returns every path segment before the repository name,
// joined with "/". GitLab subgroups stay nested.
func extractNamespace(uri string) (string, bool) {
	var path string
	if m := scpURI.FindStringSubmatch(uri); m != nil {
		path = m[2]
	} else if u, ok := parseWebURI(uri); ok {
		path = u.Path
	} else {
		return "", false
	}
	path = strings.Trim(strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git"), "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", false
	}
	return path[:idx], true
}

func parseWebURI(uri string) (*url.URL, bool) {
	if !strings.HasPrefix(uri, "https://") && !strings.HasPrefix(uri, "http://") {
		return nil, false
	}
	u, err := url.Parse(uri)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}
