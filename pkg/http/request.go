package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

const loopbackIPv4 = "127.0.0.1"

// IPConfig holds the proxies whose forwarding headers are trusted
type IPConfig struct {
	TrustedProxies []*net.IPNet
}

// NewIPConfig parses a list of CIDR ranges into an IPConfig.
// An empty list yields a config that trusts no proxy.
func NewIPConfig(cidrs []string) (*IPConfig, error) {
	cfg := &IPConfig{}
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, ipNet)
	}
	return cfg, nil
}

// NormalizeIP collapses the IPv6 spellings of the local loopback address
// (::1 and ::ffff:127.0.0.1) into 127.0.0.1. Every other input is returned as is.
func NormalizeIP(ip string) string {
	switch ip {
	case "::1", "::ffff:127.0.0.1":
		return loopbackIPv4
	default:
		return ip
	}
}

// ClientIP returns the normalized client address for admission decisions
func ClientIP(r *http.Request, config *IPConfig) string {
	return NormalizeIP(ExtractClientIP(r, config))
}

// ExtractClientIP extracts the real client IP address from the request.
// Forwarding headers are only honored when the peer is a trusted proxy.
// X-Forwarded-For is read from the right, skipping trusted proxies, because
// every entry left of the last untrusted hop was written by the client.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config == nil || !config.isTrustedProxy(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := strings.TrimSpace(hops[i])
			if net.ParseIP(ip) == nil || config.isTrustedProxy(ip) {
				continue
			}
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func (c *IPConfig) isTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, ipNet := range c.TrustedProxies {
		if ipNet.Contains(peer) {
			return true
		}
	}
	return false
}
