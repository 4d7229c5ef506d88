package media

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// HostAllowList decides whether a media URL may be fetched with the
// provider credential attached.
type HostAllowList struct {
	domains []string
}

// NewHostAllowList builds an allow list. Entries are matched case-insensitively
// and a leading "." or trailing "." is ignored.
func NewHostAllowList(domains []string) *HostAllowList {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = normalizeHost(d)
		d = strings.TrimPrefix(d, ".")
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &HostAllowList{domains: normalized}
}

// Domains returns the normalized allow list
func (l *HostAllowList) Domains() []string {
	return append([]string(nil), l.domains...)
}

// IsAllowedMediaHost reports whether u points at an allowed host: the
// hostname equals an entry or is a subdomain of one. Only http and https
// URLs can match.
func (l *HostAllowList) IsAllowedMediaHost(u *url.URL) bool {
	if u == nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}

	host := normalizeHost(u.Hostname())
	if host == "" {
		return false
	}

	for _, allowed := range l.domains {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}

	return false
}

// CheckRedirect is an http.Client redirect policy that refuses to follow a
// redirect off the allow list.
func (l *HostAllowList) CheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if !l.IsAllowedMediaHost(req.URL) {
		return fmt.Errorf("redirect to host not allowed: %s", req.URL.Hostname())
	}
	return nil
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
