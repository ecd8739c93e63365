// Package gallery holds the bounded, de-duplicated set of captured artifacts
// awaiting submission, together with their preview handles.
package gallery

import (
	"fmt"
	"log"
	"math"
	"sync"

	"fieldreport/internal/artifact"
)

// AddResult is the outcome of offering an artifact to the collection.
type AddResult int

const (
	Added AddResult = iota
	SkippedDuplicate
	RejectedOverCapacity
)

func (r AddResult) String() string {
	switch r {
	case SkippedDuplicate:
		return "skipped-duplicate"
	case RejectedOverCapacity:
		return "rejected-over-capacity"
	default:
		return "added"
	}
}

// videoSizeTolerance treats two videos of the same mime type as duplicates
// when their sizes differ by at most this fraction. Re-encoded duplicates of
// one recording carry a generated name but near-identical size. Tunable, not
// a guaranteed-correct identity test.
const videoSizeTolerance = 0.05

// Limits caps the collection per artifact kind.
type Limits struct {
	MaxImages int
	MaxVideos int
}

func DefaultLimits() Limits { return Limits{MaxImages: 5, MaxVideos: 2} }

func (l Limits) forKind(k artifact.Kind) int {
	if k == artifact.KindVideo {
		return l.MaxVideos
	}
	return l.MaxImages
}

// Previewer issues and revokes display handles for artifacts. Handles are a
// scarce host resource; revocation must be synchronous.
type Previewer interface {
	Create(a artifact.Artifact) (string, error)
	Revoke(handle string)
}

// Entry is one collection slot: the artifact plus its live preview handle.
type Entry struct {
	Artifact artifact.Artifact
	Preview  string
}

// Collection is an insertion-ordered artifact set with per-kind caps.
// It exclusively owns its entries' preview handles: a handle is created
// exactly when an artifact enters and revoked exactly when it leaves.
type Collection struct {
	mu       sync.Mutex
	previews Previewer
	limits   Limits
	entries  []Entry
}

func NewCollection(p Previewer, limits Limits) *Collection {
	if p == nil {
		p = NewRegistry()
	}
	if limits.MaxImages <= 0 && limits.MaxVideos <= 0 {
		limits = DefaultLimits()
	}
	return &Collection{previews: p, limits: limits}
}

// Add offers an artifact. Duplicates are a silent no-op, over-capacity is a
// rejection the caller must surface; neither mutates the collection.
func (c *Collection) Add(a artifact.Artifact) (AddResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isDuplicate(a) {
		log.Printf("gallery: skipping duplicate %s (%d bytes)", a.Name, a.SizeBytes())
		return SkippedDuplicate, nil
	}
	if c.countKind(a.Kind) >= c.limits.forKind(a.Kind) {
		return RejectedOverCapacity, nil
	}

	handle, err := c.previews.Create(a)
	if err != nil {
		return RejectedOverCapacity, fmt.Errorf("gallery: create preview: %w", err)
	}
	c.entries = append(c.entries, Entry{Artifact: a, Preview: handle})
	return Added, nil
}

// Replace installs a single artifact, revoking every previously held handle
// first. Used by single-artifact surfaces.
func (c *Collection) Replace(a artifact.Artifact) (AddResult, error) {
	c.mu.Lock()
	for _, e := range c.entries {
		c.previews.Revoke(e.Preview)
	}
	c.entries = c.entries[:0]
	c.mu.Unlock()
	return c.Add(a)
}

// Remove drops the artifact at index and revokes its preview handle
// synchronously.
func (c *Collection) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.entries) {
		return fmt.Errorf("gallery: index %d out of range (len %d)", index, len(c.entries))
	}
	c.previews.Revoke(c.entries[index].Preview)
	c.entries = append(c.entries[:index], c.entries[index+1:]...)
	return nil
}

// Clear revokes every remaining handle and empties the collection. Also the
// teardown path for the collection's owner.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		c.previews.Revoke(e.Preview)
	}
	c.entries = c.entries[:0]
}

// Contains reports whether a structurally identical artifact is present.
func (c *Collection) Contains(a artifact.Artifact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Artifact.SameAs(a) {
			return true
		}
	}
	return false
}

// Items returns a snapshot of the entries in insertion order.
func (c *Collection) Items() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Artifacts returns the artifacts in insertion order.
func (c *Collection) Artifacts() []artifact.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]artifact.Artifact, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Artifact)
	}
	return out
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CountKind returns how many artifacts of the kind are held.
func (c *Collection) CountKind(k artifact.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countKind(k)
}

func (c *Collection) countKind(k artifact.Kind) int {
	n := 0
	for _, e := range c.entries {
		if e.Artifact.Kind == k {
			n++
		}
	}
	return n
}

func (c *Collection) isDuplicate(a artifact.Artifact) bool {
	for _, e := range c.entries {
		if e.Artifact.SameAs(a) {
			return true
		}
		if a.Kind == artifact.KindVideo && e.Artifact.Kind == artifact.KindVideo &&
			e.Artifact.MIME == a.MIME && sizesSimilar(e.Artifact.SizeBytes(), a.SizeBytes()) {
			return true
		}
	}
	return false
}

func sizesSimilar(a, b int64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	larger := math.Max(float64(a), float64(b))
	return math.Abs(float64(a)-float64(b))/larger <= videoSizeTolerance
}
