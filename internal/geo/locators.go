package geo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/sakif/park-places/internal/model"
)

// ReportedLocator trusts the position the client measured and posted.
type ReportedLocator struct{}

func (ReportedLocator) Locate(ctx context.Context, req Request) (model.Coordinate, error) {
	r := req.Reported
	if r == nil {
		return model.Coordinate{}, newError(Unsupported, nil)
	}
	switch r.Code {
	case 0:
	case 1:
		return model.Coordinate{}, newError(PermissionDenied, errors.New(r.Message))
	case 2:
		return model.Coordinate{}, newError(PositionUnavailable, errors.New(r.Message))
	case 3:
		return model.Coordinate{}, newError(Timeout, errors.New(r.Message))
	default:
		return model.Coordinate{}, newError(Unknown, fmt.Errorf("geo: browser error code %d: %s", r.Code, r.Message))
	}

	c, err := model.CoordinateFrom(r.Lat, r.Lng)
	if err != nil {
		return model.Coordinate{}, newError(PositionUnavailable, err)
	}
	if c == nil {
		return model.Coordinate{}, newError(PositionUnavailable, errors.New("geo: incomplete reported position"))
	}
	return *c, nil
}

// cityReader is the part of *geoip2.Reader IPLocator uses.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// IPLocator approximates the position from the client's IP address using a
// MaxMind GeoIP2/GeoLite2 City database. City-level precision only, so it
// declines high-accuracy requests.
type IPLocator struct {
	reader cityReader
	closer func() error
}

// OpenIPLocator opens the .mmdb database at path.
func OpenIPLocator(path string) (*IPLocator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: opening geoip database %s: %w", path, err)
	}
	return &IPLocator{reader: r, closer: r.Close}, nil
}

// Close releases the database.
func (l *IPLocator) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

func (l *IPLocator) Locate(ctx context.Context, req Request) (model.Coordinate, error) {
	if req.HighAccuracy || req.ClientIP == "" {
		return model.Coordinate{}, newError(Unsupported, nil)
	}
	host := req.ClientIP
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return model.Coordinate{}, newError(PositionUnavailable, fmt.Errorf("geo: bad client ip %q", req.ClientIP))
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return model.Coordinate{}, newError(PositionUnavailable, errors.New("geo: non-routable client ip"))
	}

	rec, err := l.reader.City(ip)
	if err != nil {
		return model.Coordinate{}, newError(PositionUnavailable, fmt.Errorf("geo: geoip lookup: %w", err))
	}
	// A miss comes back as a zero record.
	if rec == nil || (rec.Location.Latitude == 0 && rec.Location.Longitude == 0 && rec.Location.AccuracyRadius == 0) {
		return model.Coordinate{}, newError(PositionUnavailable, errors.New("geo: ip not in database"))
	}
	return model.Coordinate{Lat: rec.Location.Latitude, Lng: rec.Location.Longitude}, nil
}

// Chain asks each locator in turn and returns the first answer from one that
// supports the request.
type Chain []Locator

func (ch Chain) Locate(ctx context.Context, req Request) (model.Coordinate, error) {
	unsupported := &Error{Kind: Unsupported}
	for _, l := range ch {
		c, err := l.Locate(ctx, req)
		if errors.Is(err, unsupported) {
			continue
		}
		return c, err
	}
	return model.Coordinate{}, newError(Unsupported, nil)
}
