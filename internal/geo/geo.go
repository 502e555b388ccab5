// Package geo captures the user's current position, once, with a timeout.
//
// A Capturer runs one Locator per request. Only the most recent request of a
// capturer may deliver: starting a new capture cancels the previous one, and
// the cancelled caller gets ErrSuperseded instead of a coordinate.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/park-places/internal/model"
)

// DefaultTimeout bounds a capture when the request sets none.
const DefaultTimeout = 10 * time.Second

// Kind classifies a failed capture.
type Kind int

const (
	Unknown Kind = iota
	PermissionDenied
	PositionUnavailable
	Timeout
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a failed capture.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case PermissionDenied:
		return "Geolocation error: Permission denied."
	case PositionUnavailable:
		return "Geolocation error: Location unavailable."
	case Timeout:
		return "Geolocation error: Timeout."
	case Unsupported:
		return "Geolocation is not supported by this browser."
	default:
		return "Geolocation error: Unknown error."
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &geo.Error{Kind: geo.Timeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// ErrSuperseded is returned to a capture that a newer one replaced.
var ErrSuperseded = errors.New("geo: request superseded")

// Report is a position (or failure) measured by the client itself, in the
// shape of the browser Geolocation API. Code is the browser error code:
// 1 permission denied, 2 position unavailable, 3 timeout, 0 success.
type Report struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy float64  `json:"accuracy"`
	Code     int      `json:"code"`
	Message  string   `json:"message"`
}

// Request is one capture attempt.
type Request struct {
	Timeout      time.Duration
	HighAccuracy bool
	ClientIP     string
	Reported     *Report
}

// Locator resolves a request to a coordinate. Failures are *Error.
type Locator interface {
	Locate(ctx context.Context, req Request) (model.Coordinate, error)
}

// Capturer runs single-shot captures, at most one outstanding at a time.
type Capturer struct {
	locator        Locator
	defaultTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	current uint64
	cancel  context.CancelFunc
}

// NewCapturer creates a Capturer. defaultTimeout <= 0 means DefaultTimeout.
func NewCapturer(locator Locator, defaultTimeout time.Duration, logger *slog.Logger) *Capturer {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Capturer{locator: locator, defaultTimeout: defaultTimeout, logger: logger}
}

type outcome struct {
	coord model.Coordinate
	err   error
}

// Capture resolves the current position.
//
// On success apply (if non-nil) runs with the coordinate before Capture
// returns, and only if this request is still the current one. Errors:
// *Error for locator failures and timeouts, ErrSuperseded when a newer
// capture started, ctx.Err() when the caller gave up.
func (c *Capturer) Capture(ctx context.Context, req Request, apply func(model.Coordinate)) (model.Coordinate, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.current++
	id := c.current
	c.cancel = cancel
	c.mu.Unlock()

	// Buffered: the locator goroutine never blocks on a receiver that left.
	done := make(chan outcome, 1)
	go func() {
		coord, err := c.locator.Locate(reqCtx, req)
		done <- outcome{coord: coord, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-reqCtx.Done():
		out.err = reqCtx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != id {
		return model.Coordinate{}, ErrSuperseded
	}
	c.cancel = nil

	if out.err != nil {
		return model.Coordinate{}, c.classify(ctx, reqCtx, out.err)
	}
	if err := out.coord.Validate(); err != nil {
		return model.Coordinate{}, newError(PositionUnavailable, err)
	}

	c.logger.Debug("position captured",
		slog.Float64("lat", out.coord.Lat),
		slog.Float64("lng", out.coord.Lng),
	)
	if apply != nil {
		apply(out.coord)
	}
	return out.coord, nil
}

// classify turns a raw failure into the error Capture reports.
func (c *Capturer) classify(parent, reqCtx context.Context, err error) error {
	var geoErr *Error
	switch {
	case errors.As(err, &geoErr):
		return geoErr
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return newError(Timeout, err)
	default:
		c.logger.Warn("locator failed", slog.String("error", err.Error()))
		return newError(Unknown, fmt.Errorf("geo: locating: %w", err))
	}
}
