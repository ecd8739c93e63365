package geo

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	coord Coordinate
	err   error
	delay time.Duration
	gate  chan struct{}
}

func (s *stubProvider) Current(ctx context.Context) (Coordinate, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return Coordinate{}, ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.coord, s.err
}

func TestCoordinateValid(t *testing.T) {
	cases := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{33.75, -84.39}, true},
		{Coordinate{0, 0}, true},
		{Coordinate{91, 0}, false},
		{Coordinate{0, -181}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Fatalf("Valid(%v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestLookupDelivers(t *testing.T) {
	p := &stubProvider{coord: Coordinate{33.75, -84.39}}
	got := make(chan Coordinate, 1)
	Start(context.Background(), p, func(c Coordinate, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got <- c
	})
	select {
	case c := <-got:
		if c.Latitude != 33.75 {
			t.Fatalf("got %v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("lookup never delivered")
	}
}

func TestLookupCancelDiscardsLateResult(t *testing.T) {
	gate := make(chan struct{})
	p := &stubProvider{coord: Coordinate{1, 2}, gate: gate, delay: 10 * time.Millisecond}
	delivered := make(chan struct{}, 1)
	l := Start(context.Background(), p, func(Coordinate, error) {
		delivered <- struct{}{}
	})
	l.Cancel()
	close(gate)
	select {
	case <-delivered:
		t.Fatal("late result applied after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClassifyFoldsDeadline(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); !errors.Is(got, ErrTimeout) {
		t.Fatalf("Classify(deadline) = %v", got)
	}
	other := errors.New("gps hiccup")
	if got := Classify(other); !errors.Is(got, ErrUnknown) {
		t.Fatalf("Classify(other) = %v", got)
	}
	if got := Classify(ErrPermissionDenied); !errors.Is(got, ErrPermissionDenied) {
		t.Fatalf("Classify(permission) = %v", got)
	}
}

func TestLookupRejectsInvalidCoordinate(t *testing.T) {
	p := &stubProvider{coord: Coordinate{400, 0}}
	errs := make(chan error, 1)
	Start(context.Background(), p, func(_ Coordinate, err error) { errs <- err })
	select {
	case err := <-errs:
		if !errors.Is(err, ErrUnknown) {
			t.Fatalf("want ErrUnknown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}
