package utils

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HostOf returns the lowercased host of a URL, port included, or "" when the
// URL cannot be parsed. Userinfo is never part of the result.
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// CanonicalHost strips the port and any trailing dots from a host.
func CanonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, ok := splitPort(host); ok {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	return host
}

// splitPort separates a trailing numeric port. IPv6 literals without brackets
// are left untouched.
func splitPort(host string) (string, string, bool) {
	i := strings.LastIndexByte(host, ':')
	if i < 0 {
		return host, "", false
	}
	if strings.Count(host, ":") > 1 && !strings.HasPrefix(host, "[") {
		return host, "", false
	}
	port := host[i+1:]
	for _, r := range port {
		if r < '0' || r > '9' {
			return host, "", false
		}
	}
	return host[:i], port, true
}

// ApexDomain returns the registrable domain (eTLD+1) for a host. Hosts that
// have none, like IP addresses or "localhost", are returned canonicalized.
func ApexDomain(host string) string {
	name := CanonicalHost(host)
	if net.ParseIP(name) != nil {
		return name
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}
