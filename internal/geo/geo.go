// Package geo provides coordinate validation and geolocation lookups.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Typed geolocation failures. Callers branch on these to pick remediation
// text; anything else from a provider is folded into ErrUnknown.
var (
	ErrPermissionDenied = errors.New("geo: permission denied")
	ErrUnavailable      = errors.New("geo: position unavailable")
	ErrTimeout          = errors.New("geo: lookup timed out")
	ErrUnknown          = errors.New("geo: unknown failure")
)

// Coordinate is a latitude/longitude pair. The zero value is not valid as a
// location default: an absent coordinate must be surfaced, never substituted.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is a finite, in-range 2-tuple.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return false
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Provider yields the current position or one of the typed failures above.
type Provider interface {
	Current(ctx context.Context) (Coordinate, error)
}

// Classify folds an arbitrary provider error into the typed taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
}

// Lookup is a cancellable in-flight position request. Cancelling discards a
// late-arriving result instead of applying it.
type Lookup struct {
	mu        sync.Mutex
	cancelled bool
	done      bool
	cancel    context.CancelFunc
	deliver   func(Coordinate, error)
}

// Start begins a lookup against the provider and invokes deliver exactly once
// with the outcome, unless Cancel wins the race first.
func Start(ctx context.Context, p Provider, deliver func(Coordinate, error)) *Lookup {
	ctx, cancel := context.WithCancel(ctx)
	l := &Lookup{cancel: cancel, deliver: deliver}
	go func() {
		coord, err := p.Current(ctx)
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.cancelled || l.done {
			return
		}
		l.done = true
		if err != nil {
			l.deliver(Coordinate{}, Classify(err))
			return
		}
		if !coord.Valid() {
			l.deliver(Coordinate{}, fmt.Errorf("%w: invalid coordinate %v", ErrUnknown, coord))
			return
		}
		l.deliver(coord, nil)
	}()
	return l
}

// Cancel halts the lookup. Any result arriving afterwards is dropped.
// Idempotent.
func (l *Lookup) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelled || l.done {
		l.cancelled = true
		return
	}
	l.cancelled = true
	l.cancel()
}
