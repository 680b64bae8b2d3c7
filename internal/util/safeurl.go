package util

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var metadataHosts = map[string]struct{}{
	"metadata":                 {},
	"metadata.google.internal": {},
	"metadata.azure.internal":  {},
	"100.100.100.200":          {},
	"fd00:ec2::254":            {},
}

// ParseHTTPURL parses raw and requires an http or https scheme with a host.
func ParseHTTPURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("missing host")
	}
	return parsed, nil
}

// IsLoopbackHost reports whether host is localhost or a loopback address.
func IsLoopbackHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsSafeBaseURL reports whether raw may be probed with a bearer token.
// Only http(s) is accepted, plaintext http only towards loopback hosts, and
// link-local or cloud metadata endpoints are always rejected.
func IsSafeBaseURL(raw string) bool {
	parsed, err := ParseHTTPURL(raw)
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	if _, blocked := metadataHosts[host]; blocked {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return false
		}
	}
	if strings.EqualFold(parsed.Scheme, "http") {
		return IsLoopbackHost(host)
	}
	return true
}
