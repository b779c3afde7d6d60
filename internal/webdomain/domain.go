package webdomain

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Domain is the registrable identity of a linked web resource: the
// eTLD+1 plus its public suffix.
type Domain struct {
	Name   string
	Suffix string
}

// Parse extracts the registrable domain from a raw URL. It returns an
// error for URLs that have no host or whose suffix is not a real,
// ICANN-managed public suffix (IP addresses, bare intranet names, junk).
func Parse(rawURL string) (Domain, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Domain{}, fmt.Errorf("empty url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Domain{}, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		// Tolerate scheme-less input like "example.com/page".
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return Domain{}, fmt.Errorf("parse url %q: %w", rawURL, err)
		}
		host = strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	}
	if host == "" {
		return Domain{}, fmt.Errorf("no host in url %q", rawURL)
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann {
		return Domain{}, fmt.Errorf("no public suffix for host %q", host)
	}

	name, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return Domain{}, fmt.Errorf("registrable domain for %q: %w", host, err)
	}

	return Domain{Name: name, Suffix: suffix}, nil
}
