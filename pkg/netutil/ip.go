package netutil

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"

	"github.com/code-payments/txstatus-server/pkg/pointer"
)

const forwardedForHeaderName = "X-Forwarded-For"

type IpMetadata struct {
	City    *string
	Country *string
}

type maxMindRecord struct {
	City struct {
		Names struct {
			En string `maxminddb:"en"`
		} `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// GetRemoteAddress returns the IP of the HTTP caller. With no trusted proxy
// hops, that is the connection's remote address. Otherwise, each trusted proxy
// appends the address it received the request from to X-Forwarded-For, so the
// caller is the entry trustedProxyHops positions from the right. Entries to its
// left are supplied by the caller and never used. When the header is shorter
// than expected, the connection's remote address is returned.
func GetRemoteAddress(r *http.Request, trustedProxyHops int) string {
	if trustedProxyHops > 0 {
		var entries []string
		for _, header := range r.Header.Values(forwardedForHeaderName) {
			for _, entry := range strings.Split(header, ",") {
				entries = append(entries, strings.TrimSpace(entry))
			}
		}

		if len(entries) >= trustedProxyHops {
			if caller := entries[len(entries)-trustedProxyHops]; len(caller) > 0 {
				return caller
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GetIpMetadata gets metadata about an IP. Information is provided on a best-effort
// basis.
func GetIpMetadata(ctx context.Context, db *maxminddb.Reader, ip string) (*IpMetadata, error) {
	if db == nil {
		return &IpMetadata{}, nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, errors.New("cannot parse ip")
	}

	var metadata maxMindRecord
	err := db.Lookup(parsed, &metadata)
	if err != nil {
		return nil, errors.Wrap(err, "error looking up ip metadata")
	}

	return &IpMetadata{
		City:    pointer.StringIfValid(len(metadata.City.Names.En) > 0, metadata.City.Names.En),
		Country: pointer.StringIfValid(len(metadata.Country.ISOCode) > 0, metadata.Country.ISOCode),
	}, nil
}
