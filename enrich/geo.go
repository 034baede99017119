package enrich

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/scanradar/scanradar/model"
)

// GeoResolver resolves a client IP to a coarse location. Nil means the IP is
// private or unresolvable.
type GeoResolver interface {
	Resolve(ip string) *model.Location
}

type noopResolver struct{}

func (noopResolver) Resolve(string) *model.Location { return nil }

// NoopGeoResolver resolves every IP to an absent location. Used when no GeoIP
// database is configured.
func NoopGeoResolver() GeoResolver {
	return noopResolver{}
}

type geoIP2Resolver struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens a local GeoLite2 City database. Lookups never leave the
// process.
func OpenGeoIP(path string) (GeoResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &geoIP2Resolver{reader}, nil
}

// resolvableIP parses ip and rejects addresses that can never resolve to a
// public location.
func resolvableIP(ip string) net.IP {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return nil
	}
	return parsed
}

func (g *geoIP2Resolver) Resolve(ip string) *model.Location {
	parsed := resolvableIP(ip)
	if parsed == nil {
		return nil
	}

	record, err := g.reader.City(parsed)
	if err != nil || record == nil {
		return nil
	}

	loc := &model.Location{
		City:      record.City.Names["en"],
		Country:   record.Country.IsoCode,
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].IsoCode
	}

	if loc.City == "" && loc.Country == "" {
		return nil
	}
	return loc
}
