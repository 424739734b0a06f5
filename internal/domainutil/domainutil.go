// Package domainutil computes the effective domain used to group listings
// for edit-token recovery: an exact, lowercased hostname match with no
// public-suffix logic.
package domainutil

import (
	"fmt"
	"net/url"
	"strings"
)

// EffectiveDomain returns the lowercased hostname of rawURL. Two URLs are
// same-domain iff their effective domains are byte-equal; api.example.com
// and example.com are deliberately treated as distinct.
func EffectiveDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url has no hostname: %s", rawURL)
	}
	return strings.ToLower(host), nil
}
