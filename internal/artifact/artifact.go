// Package artifact defines captured media artifacts and the builder that
// produces them from live frames, recorded chunks, or picked files.
package artifact

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes the two supported artifact families.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// Boundary constraints enforced client-side before any network call.
const (
	MaxImageBytes = 10 << 20
	MaxVideoBytes = 50 << 20
)

var pickedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

var pickedVideoMIMEs = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/avi":       true,
	"video/x-msvideo": true,
}

// Artifact is a validated, named, typed binary blob ready for upload.
// Immutable once built.
type Artifact struct {
	Name      string
	MIME      string
	Kind      Kind
	Data      []byte
	CreatedAt time.Time
}

// SizeBytes returns the payload length.
func (a Artifact) SizeBytes() int64 { return int64(len(a.Data)) }

// SameAs reports structural identity: byte length, mime type, and name all
// coincide. Identity is compared before any upload happens, so there is
// never a server-assigned id to lean on.
func (a Artifact) SameAs(b Artifact) bool {
	return len(a.Data) == len(b.Data) && a.MIME == b.MIME && a.Name == b.Name
}

// MaxBytes returns the boundary size cap for the artifact's kind.
func (a Artifact) MaxBytes() int64 {
	if a.Kind == KindVideo {
		return MaxVideoBytes
	}
	return MaxImageBytes
}

// CheckSize verifies the artifact fits within its kind's boundary cap.
func (a Artifact) CheckSize() error {
	if a.SizeBytes() > a.MaxBytes() {
		return fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, a.Name, a.SizeBytes(), a.MaxBytes())
	}
	return nil
}

// KindForMIME maps a mime type onto an artifact kind.
func KindForMIME(mime string) (Kind, bool) {
	mime = normalizeMIME(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage, true
	case strings.HasPrefix(mime, "video/"):
		return KindVideo, true
	default:
		return KindImage, false
	}
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

func extForMIME(mime string) string {
	switch normalizeMIME(mime) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "video/mp4":
		return "mp4"
	case "video/quicktime":
		return "mov"
	case "video/webm":
		return "webm"
	case "video/avi", "video/x-msvideo":
		return "avi"
	default:
		return "bin"
	}
}
