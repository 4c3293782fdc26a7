package detect

import (
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

// Allowlist holds the trusted destination networks. Traffic towards any of
// these networks is dropped before rule evaluation. Sources are never
// checked: an attacker posting credentials to an allowlisted host from a
// trusted segment must still be flagged.
type Allowlist struct {
	networks []netip.Prefix
}

// NewAllowlist parses the configured CIDR strings. Bare addresses are
// accepted as single-host networks. Invalid entries are logged and dropped,
// never fatal.
func NewAllowlist(cidrs []string, logger *zap.Logger) *Allowlist {
	a := &Allowlist{}
	for _, cidr := range cidrs {
		prefix, err := parseCIDR(cidr)
		if err != nil {
			logger.Warn("invalid allowlist CIDR, dropping entry",
				zap.String("cidr", cidr),
				zap.Error(err))
			continue
		}
		a.networks = append(a.networks, prefix)
		logger.Info("added allowlist network", zap.String("cidr", prefix.String()))
	}
	return a
}

func parseCIDR(cidr string) (netip.Prefix, error) {
	cidr = strings.TrimSpace(cidr)
	if strings.Contains(cidr, "/") {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(cidr)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Contains reports whether ip falls inside any allowlisted network.
// Unparsable addresses are treated as not allowlisted.
func (a *Allowlist) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, network := range a.networks {
		if network.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of valid allowlist entries.
func (a *Allowlist) Len() int {
	return len(a.networks)
}
