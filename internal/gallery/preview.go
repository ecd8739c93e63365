package gallery

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"fieldreport/internal/artifact"
)

const thumbCacheSize = 64

// Registry is the default in-process Previewer. Handles are opaque
// revocable references; display bytes sit in a bounded LRU so eviction only
// drops cached bytes, never a live handle.
type Registry struct {
	mu      sync.Mutex
	live    map[string]struct{}
	created int
	revoked int

	thumbs *lru.Cache[string, []byte]
}

func NewRegistry() *Registry {
	// Size is fixed; lru.New only errors on a non-positive size.
	cache, err := lru.New[string, []byte](thumbCacheSize)
	if err != nil {
		panic(err)
	}
	return &Registry{
		live:   make(map[string]struct{}),
		thumbs: cache,
	}
}

// Create issues a fresh handle for the artifact and caches its display bytes.
func (r *Registry) Create(a artifact.Artifact) (string, error) {
	if len(a.Data) == 0 {
		return "", fmt.Errorf("gallery: cannot preview empty artifact %q", a.Name)
	}
	handle := "preview://" + uuid.NewString()
	r.mu.Lock()
	r.live[handle] = struct{}{}
	r.created++
	r.mu.Unlock()
	r.thumbs.Add(handle, a.Data)
	return handle, nil
}

// Revoke invalidates the handle and drops its cached bytes.
func (r *Registry) Revoke(handle string) {
	r.mu.Lock()
	if _, ok := r.live[handle]; ok {
		delete(r.live, handle)
		r.revoked++
	}
	r.mu.Unlock()
	r.thumbs.Remove(handle)
}

// Bytes returns the cached display payload for a live handle. ok is false
// for revoked handles and for live handles whose bytes were evicted.
func (r *Registry) Bytes(handle string) ([]byte, bool) {
	r.mu.Lock()
	_, alive := r.live[handle]
	r.mu.Unlock()
	if !alive {
		return nil, false
	}
	return r.thumbs.Get(handle)
}

// Valid reports whether the handle is currently live.
func (r *Registry) Valid(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[handle]
	return ok
}

// LiveCount returns the number of unrevoked handles.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Stats returns total created and revoked handle counts, for leak checks.
func (r *Registry) Stats() (created, revoked int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.revoked
}
