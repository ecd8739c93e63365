package submit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldreport/internal/artifact"
	"fieldreport/internal/gallery"
	"fieldreport/internal/geo"
	"fieldreport/internal/report"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) indexOf(e string) int {
	for i, got := range l.snapshot() {
		if got == e {
			return i
		}
	}
	return -1
}

type fakeUploader struct {
	log  *eventLog
	id   string
	err  error
	gate chan struct{}

	mu    sync.Mutex
	calls int
	got   report.Submission
}

func (u *fakeUploader) Create(_ context.Context, sub report.Submission) (string, error) {
	u.mu.Lock()
	u.calls++
	u.got = sub
	u.mu.Unlock()
	u.log.add("upload")
	if u.gate != nil {
		<-u.gate
	}
	return u.id, u.err
}

type fakeFetcher struct {
	log     *eventLog
	reports []report.Report
	err     error
	calls   int
}

func (f *fakeFetcher) List(context.Context) ([]report.Report, error) {
	f.calls++
	f.log.add("refresh")
	return f.reports, f.err
}

type fakeView struct{ log *eventLog }

func (v *fakeView) PendingShown(m PendingMarker) {
	if m.Saving {
		v.log.add("pending-shown-saving")
	} else {
		v.log.add("pending-shown")
	}
}
func (v *fakeView) PendingUpdated(m PendingMarker) {
	if m.Saving {
		v.log.add("pending-updated-saving")
	} else {
		v.log.add("pending-updated")
	}
}
func (v *fakeView) PendingCleared()                 { v.log.add("pending-cleared") }
func (v *fakeView) ReportsRefreshed([]report.Report) { v.log.add("reports-refreshed") }
func (v *fakeView) HighlightSet(id string)          { v.log.add("highlight-set:" + id) }
func (v *fakeView) HighlightCleared(id string)      { v.log.add("highlight-cleared:" + id) }

type fakeLocator struct {
	coord geo.Coordinate
	err   error
	calls int
}

func (p *fakeLocator) Current(context.Context) (geo.Coordinate, error) {
	p.calls++
	return p.coord, p.err
}

func filledCollection(t *testing.T, reg *gallery.Registry, images int) *gallery.Collection {
	t.Helper()
	// Avoid wrapping a nil *Registry in a non-nil Previewer interface so
	// NewCollection's nil default still applies.
	var p gallery.Previewer
	if reg != nil {
		p = reg
	}
	coll := gallery.NewCollection(p, gallery.DefaultLimits())
	for i := 0; i < images; i++ {
		a := artifact.Artifact{
			Name: string(rune('a'+i)) + ".jpg",
			MIME: "image/jpeg",
			Kind: artifact.KindImage,
			Data: make([]byte, 10+i),
		}
		res, err := coll.Add(a)
		require.NoError(t, err)
		require.Equal(t, gallery.Added, res)
	}
	return coll
}

func TestSubmitHappyPath(t *testing.T) {
	log := &eventLog{}
	up := &fakeUploader{log: log, id: "abc123"}
	fetch := &fakeFetcher{log: log, reports: []report.Report{{ID: "abc123"}}}
	reg := gallery.NewRegistry()
	coll := filledCollection(t, reg, 2)

	c := NewCoordinator(up, fetch, &fakeLocator{}, &fakeView{log: log})
	c.SetHighlightWindow(30 * time.Millisecond)

	id, err := c.Submit(context.Background(), report.Metadata{FormType: "hazard"}, coll,
		geo.Coordinate{Latitude: 33.75, Longitude: -84.39})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	// Optimistic marker appears before the network call resolves.
	require.Less(t, log.indexOf("pending-shown-saving"), log.indexOf("upload"))
	// Commit clears the saving flag but keeps the marker, then refreshes.
	assert.Less(t, log.indexOf("upload"), log.indexOf("pending-updated"))
	assert.Equal(t, 1, fetch.calls)
	assert.Less(t, log.indexOf("refresh"), log.indexOf("highlight-set:abc123"))

	// The spent collection is cleared and every handle revoked.
	assert.Equal(t, 0, coll.Len())
	assert.Equal(t, 0, reg.LiveCount())

	// Highlight expires after the configured window.
	assert.Eventually(t, func() bool {
		return log.indexOf("highlight-cleared:abc123") >= 0
	}, time.Second, 5*time.Millisecond)

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Len(t, up.got.Artifacts, 2)
	assert.Equal(t, 33.75, up.got.Coordinate.Latitude)
}

func TestSubmitAbortsWithoutCoordinate(t *testing.T) {
	log := &eventLog{}
	up := &fakeUploader{log: log, id: "x"}
	coll := filledCollection(t, nil, 1)

	c := NewCoordinator(up, &fakeFetcher{log: log}, &fakeLocator{err: geo.ErrTimeout}, &fakeView{log: log})
	_, err := c.Submit(context.Background(), report.Metadata{}, coll, geo.Coordinate{Latitude: 999})
	require.ErrorIs(t, err, ErrNoCoordinate)

	assert.Zero(t, up.calls, "must abort before any network call")
	assert.Equal(t, 1, coll.Len(), "collection must be untouched")
	assert.Equal(t, -1, log.indexOf("pending-shown-saving"))
}

func TestSubmitUsesFreshLookup(t *testing.T) {
	log := &eventLog{}
	up := &fakeUploader{log: log, id: "r10"}
	loc := &fakeLocator{coord: geo.Coordinate{Latitude: 10, Longitude: 20}}
	coll := filledCollection(t, nil, 1)

	c := NewCoordinator(up, &fakeFetcher{log: log}, loc, &fakeView{log: log})
	c.SetHighlightWindow(10 * time.Millisecond)
	_, err := c.Submit(context.Background(), report.Metadata{}, coll, geo.Coordinate{Latitude: 400})
	require.NoError(t, err)
	assert.Equal(t, 1, loc.calls)
	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, 10.0, up.got.Coordinate.Latitude)
}

func TestSubmitFailureLeavesCollectionIntact(t *testing.T) {
	log := &eventLog{}
	up := &fakeUploader{log: log, err: assert.AnError}
	reg := gallery.NewRegistry()
	coll := filledCollection(t, reg, 3)

	c := NewCoordinator(up, &fakeFetcher{log: log}, &fakeLocator{}, &fakeView{log: log})
	_, err := c.Submit(context.Background(), report.Metadata{}, coll, geo.Coordinate{Latitude: 1, Longitude: 2})
	require.ErrorIs(t, err, ErrUploadFailed)

	assert.Equal(t, 3, coll.Len(), "retry must not require re-capturing")
	assert.Equal(t, 3, reg.LiveCount())
	assert.GreaterOrEqual(t, log.indexOf("pending-cleared"), 0, "failed marker must be cleared")
	assert.Equal(t, -1, log.indexOf("highlight-set:"))
}

func TestSecondSubmitWhileInFlightRejected(t *testing.T) {
	log := &eventLog{}
	gate := make(chan struct{})
	up := &fakeUploader{log: log, id: "slow", gate: gate}
	coll := filledCollection(t, nil, 1)

	c := NewCoordinator(up, &fakeFetcher{log: log}, &fakeLocator{}, &fakeView{log: log})

	errs := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), report.Metadata{}, coll, geo.Coordinate{Latitude: 1, Longitude: 2})
		errs <- err
	}()

	// Wait for the first submission to reach the collaborator.
	require.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return up.calls == 1
	}, time.Second, time.Millisecond)

	_, err := c.Submit(context.Background(), report.Metadata{}, coll, geo.Coordinate{Latitude: 1, Longitude: 2})
	assert.ErrorIs(t, err, ErrAlreadySubmitting)

	close(gate)
	require.NoError(t, <-errs)
}

func TestRefreshFailureDoesNotFailSubmission(t *testing.T) {
	log := &eventLog{}
	up := &fakeUploader{log: log, id: "ok1"}
	coll := filledCollection(t, nil, 1)

	c := NewCoordinator(up, &fakeFetcher{log: log, err: assert.AnError}, &fakeLocator{}, &fakeView{log: log})
	c.SetHighlightWindow(10 * time.Millisecond)
	id, err := c.Submit(context.Background(), report.Metadata{}, coll, geo.Coordinate{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, "ok1", id)
	assert.Equal(t, -1, log.indexOf("reports-refreshed"))
	assert.GreaterOrEqual(t, log.indexOf("highlight-set:ok1"), 0)
}
