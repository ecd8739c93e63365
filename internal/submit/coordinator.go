// Package submit turns a media collection plus scalar metadata into a
// server request, with an optimistic pending marker and reconciliation of
// the committed record back into the caller's view.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldreport/internal/gallery"
	"fieldreport/internal/geo"
	"fieldreport/internal/report"
)

var (
	// ErrAlreadySubmitting rejects a second submit attempt while one is in
	// flight for the same interaction.
	ErrAlreadySubmitting = errors.New("submit: a submission is already in flight")
	// ErrNoCoordinate means no valid coordinate was supplied and the fresh
	// lookup failed too. Nothing reached the network.
	ErrNoCoordinate = errors.New("submit: no coordinate available")
	// ErrUploadFailed wraps collaborator failures. The media collection is
	// left intact so the user can retry without re-capturing.
	ErrUploadFailed = errors.New("submit: upload failed")
)

// DefaultHighlightWindow is how long a freshly committed record stays
// visually highlighted.
const DefaultHighlightWindow = 5 * time.Second

// Uploader is the consumed create-report operation.
type Uploader interface {
	Create(ctx context.Context, sub report.Submission) (string, error)
}

// Fetcher is the consumed fetch-reports operation.
type Fetcher interface {
	List(ctx context.Context) ([]report.Report, error)
}

// PendingMarker is the optimistic, not-yet-confirmed representation of a
// submission in progress.
type PendingMarker struct {
	Coordinate geo.Coordinate
	Saving     bool
}

// Presenter receives view-state updates. Calls arrive in protocol order:
// PendingShown before the network call, then either PendingUpdated +
// ReportsRefreshed + highlight on success, or PendingCleared on failure.
type Presenter interface {
	PendingShown(PendingMarker)
	PendingUpdated(PendingMarker)
	PendingCleared()
	ReportsRefreshed([]report.Report)
	HighlightSet(id string)
	HighlightCleared(id string)
}

// Coordinator owns at most one in-flight submission per logical "new
// report" interaction.
type Coordinator struct {
	uploader Uploader
	fetcher  Fetcher
	locator  geo.Provider
	view     Presenter

	highlightWindow time.Duration

	mu             sync.Mutex
	inFlight       bool
	highlightTimer *time.Timer
}

func NewCoordinator(up Uploader, fetch Fetcher, locator geo.Provider, view Presenter) *Coordinator {
	return &Coordinator{
		uploader:        up,
		fetcher:         fetch,
		locator:         locator,
		view:            view,
		highlightWindow: DefaultHighlightWindow,
	}
}

// SetHighlightWindow overrides the highlight expiry. Zero or negative
// values are ignored.
func (c *Coordinator) SetHighlightWindow(d time.Duration) {
	if d > 0 {
		c.highlightWindow = d
	}
}

// Submit runs the full protocol and returns the created record id.
//
// A submission never silently proceeds without a coordinate: if coord is
// invalid, one fresh lookup is attempted before the whole submission fails.
// On any failure the collection is untouched and the error is retryable.
func (c *Coordinator) Submit(ctx context.Context, meta report.Metadata, coll *gallery.Collection, coord geo.Coordinate) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrAlreadySubmitting
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if !coord.Valid() {
		fresh, err := c.freshLookup(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoCoordinate, err)
		}
		coord = fresh
	}

	sub := report.Submission{
		Metadata:   meta,
		Coordinate: coord,
		Artifacts:  coll.Artifacts(),
	}
	if err := sub.Validate(); err != nil {
		return "", err
	}

	// Optimistic marker before the network call resolves.
	c.view.PendingShown(PendingMarker{Coordinate: coord, Saving: true})

	id, err := c.uploader.Create(ctx, sub)
	if err != nil {
		c.view.PendingCleared()
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	// Committed: keep the marker visible, drop the saving flag.
	c.view.PendingUpdated(PendingMarker{Coordinate: coord, Saving: false})

	// The submission is durable server-side from here on, so the captured
	// set is spent; clearing it also revokes every preview handle.
	coll.Clear()

	if reports, err := c.fetcher.List(ctx); err != nil {
		log.Printf("submit: refresh after commit failed: %v", err)
	} else {
		c.view.ReportsRefreshed(reports)
	}

	if id != "" {
		c.highlight(id)
	}
	return id, nil
}

func (c *Coordinator) freshLookup(ctx context.Context) (geo.Coordinate, error) {
	if c.locator == nil {
		return geo.Coordinate{}, geo.ErrUnavailable
	}
	coord, err := c.locator.Current(ctx)
	if err != nil {
		return geo.Coordinate{}, geo.Classify(err)
	}
	if !coord.Valid() {
		return geo.Coordinate{}, geo.ErrUnavailable
	}
	return coord, nil
}

// highlight marks the record and arms a one-shot expiry. A new highlight
// replaces any still-armed timer.
func (c *Coordinator) highlight(id string) {
	c.mu.Lock()
	if c.highlightTimer != nil {
		c.highlightTimer.Stop()
	}
	c.highlightTimer = time.AfterFunc(c.highlightWindow, func() {
		c.view.HighlightCleared(id)
	})
	c.mu.Unlock()
	c.view.HighlightSet(id)
}

// Teardown stops any armed highlight timer. Safe to call at any point.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highlightTimer != nil {
		c.highlightTimer.Stop()
		c.highlightTimer = nil
	}
}
