package netutil

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AllowList matches IPs against a set of exact addresses, CIDR ranges and
// dotted IPv4 patterns using "*" as a whole-octet wildcard (eg. 185.60.20.*).
type AllowList struct {
	exact    map[string]struct{}
	networks []*net.IPNet
	patterns [][]string
}

// NewAllowList parses the provided entries. Empty entries are ignored.
func NewAllowList(entries []string) (*AllowList, error) {
	l := &AllowList{
		exact: make(map[string]struct{}),
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch {
		case len(entry) == 0:
			continue
		case strings.Contains(entry, "/"):
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid cidr range %s", entry)
			}
			l.networks = append(l.networks, network)
		case strings.Contains(entry, "*"):
			octets, err := parsePattern(entry)
			if err != nil {
				return nil, err
			}
			l.patterns = append(l.patterns, octets)
		default:
			parsed := net.ParseIP(entry)
			if parsed == nil {
				return nil, errors.Errorf("invalid ip %s", entry)
			}
			l.exact[parsed.String()] = struct{}{}
		}
	}

	return l, nil
}

// Contains reports whether ip is matched by any entry in the list
func (l *AllowList) Contains(ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}

	if _, ok := l.exact[parsed.String()]; ok {
		return true
	}

	for _, network := range l.networks {
		if network.Contains(parsed) {
			return true
		}
	}

	if v4 := parsed.To4(); v4 != nil {
		octets := strings.Split(v4.String(), ".")
		for _, pattern := range l.patterns {
			if matchesPattern(pattern, octets) {
				return true
			}
		}
	}

	return false
}

// Len returns the number of entries in the list
func (l *AllowList) Len() int {
	return len(l.exact) + len(l.networks) + len(l.patterns)
}

func parsePattern(entry string) ([]string, error) {
	octets := strings.Split(entry, ".")
	if len(octets) != 4 {
		return nil, errors.Errorf("invalid wildcard pattern %s", entry)
	}

	for _, octet := range octets {
		if octet == "*" {
			continue
		}

		// Leading zeros never match the canonical form used by Contains
		value, err := strconv.ParseUint(octet, 10, 8)
		if err != nil || strconv.FormatUint(value, 10) != octet {
			return nil, errors.Errorf("invalid octet %q in wildcard pattern %s", octet, entry)
		}
	}
	return octets, nil
}

func matchesPattern(pattern, octets []string) bool {
	for i := range pattern {
		if pattern[i] != "*" && pattern[i] != octets[i] {
			return false
		}
	}
	return true
}
