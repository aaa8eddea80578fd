package handler

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientResolver derives the visitor address used for dedup and rate limits.
// The socket peer is authoritative; forwarding headers are read only when the
// peer is one of the configured proxies.
type ClientResolver struct {
	proxies []netip.Prefix
}

// NewClientResolver accepts plain addresses and CIDR ranges. Entries that
// parse as neither are skipped; config validation rejects them earlier.
func NewClientResolver(trustedProxies []string) *ClientResolver {
	res := &ClientResolver{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			res.proxies = append(res.proxies, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			res.proxies = append(res.proxies, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return res
}

// Resolve returns "" when no address can be determined, which the service
// records as the anonymous placeholder.
func (c *ClientResolver) Resolve(r *http.Request) string {
	peer := peerAddress(r.RemoteAddr)
	if peer == "" {
		return ""
	}
	if !c.trusted(peer) {
		return peer
	}

	if ip := firstForwarded(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(ip) {
		return ip
	}
	return peer
}

func (c *ClientResolver) trusted(peer string) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddress(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func firstForwarded(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if isValidIP(first) {
		return first
	}
	return ""
}

func isValidIP(ip string) bool {
	return ip != "" && getValidator().Var(ip, "ip") == nil
}
