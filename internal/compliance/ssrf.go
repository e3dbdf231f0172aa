package compliance

import (
	"net"
	"net/url"
	"strings"
)

// privateCIDRs are the address ranges evaluate_fetch's SSRF guard rejects
// (spec.md §4.1): IPv4 and IPv6 loopback, RFC1918 private space and IPv6
// unique-local space. Literal localhost is checked separately.
var privateCIDRs = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// IsBlockedHost reports whether rawURL's host is a loopback/private
// address or literal localhost, per the SSRF guard in spec.md §4.1.
func IsBlockedHost(rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true, nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// A host that doesn't resolve is not our SSRF concern here; the
		// fetch itself will fail downstream.
		if ip := net.ParseIP(host); ip != nil {
			ips = []net.IP{ip}
		} else {
			return false, nil
		}
	}

	for _, ip := range ips {
		if ip.IsLoopback() {
			return true, nil
		}
		for _, n := range privateCIDRs {
			if n.Contains(ip) {
				return true, nil
			}
		}
	}
	return false, nil
}
