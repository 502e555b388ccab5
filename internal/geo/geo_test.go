package geo

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sakif/park-places/internal/model"
)

// Every capture spawns a goroutine; none may outlive its test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// locatorFunc adapts a function to Locator.
type locatorFunc func(ctx context.Context, req Request) (model.Coordinate, error)

func (f locatorFunc) Locate(ctx context.Context, req Request) (model.Coordinate, error) {
	return f(ctx, req)
}

// blockingLocator waits for release or ctx, then answers with coord.
type blockingLocator struct {
	coord   model.Coordinate
	started chan struct{}
	release chan struct{}
}

func newBlockingLocator(c model.Coordinate) *blockingLocator {
	return &blockingLocator{coord: c, started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingLocator) Locate(ctx context.Context, _ Request) (model.Coordinate, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.coord, nil
	case <-ctx.Done():
		return model.Coordinate{}, ctx.Err()
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fp(f float64) *float64 { return &f }

var porto = model.Coordinate{Lat: 41.14961, Lng: -8.61099}

// =========================================================================
// CAPTURER TESTS
// =========================================================================

func TestCapture_Success(t *testing.T) {
	c := NewCapturer(locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		return porto, nil
	}), 0, testLogger())

	var applied []model.Coordinate
	got, err := c.Capture(context.Background(), Request{}, func(co model.Coordinate) {
		applied = append(applied, co)
	})

	require.NoError(t, err)
	assert.Equal(t, porto, got)
	assert.Equal(t, []model.Coordinate{porto}, applied)
}

func TestCapture_Timeout(t *testing.T) {
	loc := newBlockingLocator(porto)
	c := NewCapturer(loc, 0, testLogger())

	applied := false
	_, err := c.Capture(context.Background(), Request{Timeout: 20 * time.Millisecond}, func(model.Coordinate) {
		applied = true
	})

	var geoErr *Error
	require.ErrorAs(t, err, &geoErr)
	assert.Equal(t, Timeout, geoErr.Kind)
	assert.False(t, applied)
}

func TestCapture_TimeoutWhenLocatorIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	c := NewCapturer(locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		<-release
		return porto, nil
	}), 0, testLogger())

	_, err := c.Capture(context.Background(), Request{Timeout: 10 * time.Millisecond}, nil)
	assert.ErrorIs(t, err, &Error{Kind: Timeout})

	// Let the stray goroutine finish so goleak stays happy.
	close(release)
	time.Sleep(10 * time.Millisecond)
}

func TestCapture_LocatorError(t *testing.T) {
	c := NewCapturer(locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		return model.Coordinate{}, newError(PermissionDenied, nil)
	}), 0, testLogger())

	_, err := c.Capture(context.Background(), Request{}, nil)
	assert.ErrorIs(t, err, &Error{Kind: PermissionDenied})
	assert.EqualError(t, err, "Geolocation error: Permission denied.")
}

func TestCapture_InvalidCoordinateIsUnavailable(t *testing.T) {
	c := NewCapturer(locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		return model.Coordinate{Lat: 123, Lng: 0}, nil
	}), 0, testLogger())

	_, err := c.Capture(context.Background(), Request{}, nil)
	assert.ErrorIs(t, err, &Error{Kind: PositionUnavailable})
}

func TestCapture_PlainErrorIsUnknown(t *testing.T) {
	c := NewCapturer(locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		return model.Coordinate{}, errors.New("boom")
	}), 0, testLogger())

	_, err := c.Capture(context.Background(), Request{}, nil)
	assert.ErrorIs(t, err, &Error{Kind: Unknown})
}

func TestCapture_CallerCancels(t *testing.T) {
	loc := newBlockingLocator(porto)
	c := NewCapturer(loc, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-loc.started
		cancel()
	}()

	_, err := c.Capture(ctx, Request{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCapture_NewerRequestSupersedes(t *testing.T) {
	loc := newBlockingLocator(porto)
	c := NewCapturer(loc, time.Minute, testLogger())

	var (
		wg       sync.WaitGroup
		firstErr error
		applied  int
		mu       sync.Mutex
	)
	apply := func(model.Coordinate) {
		mu.Lock()
		applied++
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.Capture(context.Background(), Request{}, apply)
	}()
	<-loc.started

	wg.Add(1)
	var secondErr error
	go func() {
		defer wg.Done()
		_, secondErr = c.Capture(context.Background(), Request{}, apply)
	}()
	<-loc.started

	close(loc.release)
	wg.Wait()

	assert.ErrorIs(t, firstErr, ErrSuperseded)
	assert.NoError(t, secondErr)
	assert.Equal(t, 1, applied, "only the current request applies")
}

// =========================================================================
// LOCATOR TESTS
// =========================================================================

func TestReportedLocator(t *testing.T) {
	tests := []struct {
		name     string
		report   *Report
		want     model.Coordinate
		wantKind Kind
		wantErr  bool
	}{
		{"no report", nil, model.Coordinate{}, Unsupported, true},
		{"success", &Report{Lat: fp(41.1), Lng: fp(-8.6)}, model.Coordinate{Lat: 41.1, Lng: -8.6}, 0, false},
		{"denied", &Report{Code: 1}, model.Coordinate{}, PermissionDenied, true},
		{"unavailable", &Report{Code: 2}, model.Coordinate{}, PositionUnavailable, true},
		{"timeout", &Report{Code: 3}, model.Coordinate{}, Timeout, true},
		{"odd code", &Report{Code: 9}, model.Coordinate{}, Unknown, true},
		{"half position", &Report{Lat: fp(41.1)}, model.Coordinate{}, PositionUnavailable, true},
		{"out of range", &Report{Lat: fp(95), Lng: fp(0)}, model.Coordinate{}, PositionUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReportedLocator{}.Locate(context.Background(), Request{Reported: tt.report})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			assert.ErrorIs(t, err, &Error{Kind: tt.wantKind})
		})
	}
}

type fakeCityReader struct {
	city *geoip2.City
	err  error
	seen net.IP
}

func (f *fakeCityReader) City(ip net.IP) (*geoip2.City, error) {
	f.seen = ip
	return f.city, f.err
}

func TestIPLocator(t *testing.T) {
	city := &geoip2.City{}
	city.Location.Latitude = 38.7167
	city.Location.Longitude = -9.1333
	city.Location.AccuracyRadius = 50

	t.Run("public ip with port", func(t *testing.T) {
		r := &fakeCityReader{city: city}
		l := &IPLocator{reader: r}

		got, err := l.Locate(context.Background(), Request{ClientIP: "81.193.1.1:5555"})
		require.NoError(t, err)
		assert.Equal(t, model.Coordinate{Lat: 38.7167, Lng: -9.1333}, got)
		assert.Equal(t, "81.193.1.1", r.seen.String())
	})

	t.Run("high accuracy is unsupported", func(t *testing.T) {
		l := &IPLocator{reader: &fakeCityReader{city: city}}
		_, err := l.Locate(context.Background(), Request{ClientIP: "81.193.1.1", HighAccuracy: true})
		assert.ErrorIs(t, err, &Error{Kind: Unsupported})
	})

	t.Run("private ip", func(t *testing.T) {
		l := &IPLocator{reader: &fakeCityReader{city: city}}
		_, err := l.Locate(context.Background(), Request{ClientIP: "192.168.1.4"})
		assert.ErrorIs(t, err, &Error{Kind: PositionUnavailable})
	})

	t.Run("miss", func(t *testing.T) {
		l := &IPLocator{reader: &fakeCityReader{city: &geoip2.City{}}}
		_, err := l.Locate(context.Background(), Request{ClientIP: "81.193.1.1"})
		assert.ErrorIs(t, err, &Error{Kind: PositionUnavailable})
	})
}

func TestChain(t *testing.T) {
	never := locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		return model.Coordinate{}, newError(Unsupported, nil)
	})
	always := locatorFunc(func(context.Context, Request) (model.Coordinate, error) {
		return porto, nil
	})

	got, err := Chain{never, always}.Locate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, porto, got)

	_, err = Chain{never}.Locate(context.Background(), Request{})
	assert.ErrorIs(t, err, &Error{Kind: Unsupported})

	// Reported browser answer wins over IP lookup when present.
	ch := Chain{ReportedLocator{}, always}
	got, err = ch.Locate(context.Background(), Request{Reported: &Report{Code: 1}})
	assert.ErrorIs(t, err, &Error{Kind: PermissionDenied})
	assert.Equal(t, model.Coordinate{}, got)
}
