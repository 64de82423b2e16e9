// Package network guards outbound requests against SSRF: every
// user-influenced URL (reverse-proxy overrides, redirect targets) must
// resolve to a public address before a request is allowed to dial it.
package network

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"
)

// ValidateExternalURL parses rawURL and returns it only if its scheme is
// http(s), it carries no userinfo, and its host resolves exclusively to
// public IPs. DNS resolution honors ctx.
func ValidateExternalURL(ctx context.Context, rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, errors.New("url is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "parse url")
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, errors.Errorf("unsupported url scheme: %s", parsed.Scheme)
	}
	if parsed.User != nil {
		return nil, errors.New("url must not include user info")
	}

	host := parsed.Hostname()
	if err := checkHostPublic(ctx, host); err != nil {
		return nil, err
	}
	return parsed, nil
}

// checkHostPublic rejects localhost-style names, literal non-public IPs,
// and names that resolve to any non-public IP.
func checkHostPublic(ctx context.Context, host string) error {
	if host == "" {
		return errors.New("url host is empty")
	}

	name := strings.ToLower(strings.TrimSuffix(host, "."))
	if name == "localhost" || strings.HasSuffix(name, ".localhost") {
		return errors.Errorf("url host is not allowed: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsForbiddenIP(ip) {
			return errors.Errorf("url host resolves to a private or local address: %s", host)
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return errors.Wrapf(err, "resolve host: %s", host)
	}
	if len(addrs) == 0 {
		return errors.Errorf("no IPs found for host: %s", host)
	}
	for _, addr := range addrs {
		if IsForbiddenIP(addr.IP) {
			return errors.Errorf("url host resolves to a private or local address: %s", host)
		}
	}
	return nil
}

// IsForbiddenIP reports whether ip is anything other than a public unicast
// address: loopback, RFC 1918 private, link-local, multicast, unspecified,
// or carrier-grade NAT (100.64.0.0/10).
func IsForbiddenIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsInterfaceLocalMulticast() {
		return true
	}
	// 100.64.0.0/10 is shared address space, routable only inside an ISP.
	if v4 := ip.To4(); v4 != nil && v4[0] == 100 && v4[1]&0xC0 == 0x40 {
		return true
	}
	return false
}
