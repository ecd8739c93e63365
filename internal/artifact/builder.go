package artifact

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldreport/internal/encoding"
)

// Build failures.
var (
	ErrCaptureFailed  = errors.New("artifact: every image encoding yielded empty output")
	ErrEmptyRecording = errors.New("artifact: recording produced no data")
	ErrBadFrame       = errors.New("artifact: frame pixel buffer does not match its dimensions")
)

// Picked-file rejections. Each maps to a precise user-facing message.
var (
	ErrEmptyFile         = errors.New("artifact: picked file is empty")
	ErrWrongKindForMode  = errors.New("artifact: picked file kind does not match the selected mode")
	ErrUnsupportedFormat = errors.New("artifact: picked file format is not supported")
	ErrTooLarge          = errors.New("artifact: file exceeds the size limit")
)

// Frame is one live video frame in raw RGBA form. DataURL optionally carries
// a host-rendered base64 data URL used as the degraded extraction tier when
// every raster encoder fails.
type Frame struct {
	Width   int
	Height  int
	Pixels  []byte // RGBA, 4 bytes per pixel, row-major
	DataURL string
}

// Builder converts capture output into Artifacts. Encodings are tried in the
// negotiator's order; the first non-empty result wins.
type Builder struct {
	neg   *encoding.Negotiator
	now   func() time.Time
	newID func() string
}

func NewBuilder(neg *encoding.Negotiator) *Builder {
	if neg == nil {
		neg = encoding.NewNegotiator(nil)
	}
	return &Builder{
		neg:   neg,
		now:   time.Now,
		newID: func() string { return uuid.NewString()[:8] },
	}
}

// FromLiveFrame renders the frame into an off-screen raster buffer at its
// native dimensions and encodes it. Raster-to-binary encoding support is
// uneven across hosts, so every negotiated tier is attempted, then the
// base64 data-URL tier, before giving up.
func (b *Builder) FromLiveFrame(f Frame) (Artifact, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) != f.Width*f.Height*4 {
		return Artifact{}, ErrBadFrame
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Pixels)

	for _, enc := range b.neg.ImageOrder() {
		data, err := encodeImage(img, enc)
		if err != nil {
			log.Printf("artifact: %s encoder failed: %v", enc.MIME, err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		return b.finish(data, enc.MIME, KindImage, "photo"), nil
	}

	// Degraded tier: extract whatever the host rendered as a data URL.
	if data, mime, ok := decodeDataURL(f.DataURL); ok && len(data) > 0 {
		log.Printf("artifact: fell back to data-url extraction (%s, %d bytes)", mime, len(data))
		return b.finish(data, mime, KindImage, "photo"), nil
	}

	return Artifact{}, ErrCaptureFailed
}

// FromRecordedChunks concatenates recorder output into one artifact tagged
// with the negotiated mime type.
func (b *Builder) FromRecordedChunks(chunks [][]byte, mime string) (Artifact, error) {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return Artifact{}, ErrEmptyRecording
	}
	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}
	if strings.TrimSpace(mime) == "" {
		mime = "video/webm"
	}
	return b.finish(data, mime, KindVideo, "clip"), nil
}

// FromPickedFile validates a file chosen through the native picker against
// the kind the caller is currently capturing.
func (b *Builder) FromPickedFile(name, mime string, data []byte, want Kind) (Artifact, error) {
	if len(data) == 0 {
		return Artifact{}, ErrEmptyFile
	}
	kind, ok := KindForMIME(mime)
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	if kind != want {
		return Artifact{}, fmt.Errorf("%w: got %s, mode wants %s", ErrWrongKindForMode, kind, want)
	}
	allowed := pickedImageMIMEs
	if kind == KindVideo {
		allowed = pickedVideoMIMEs
	}
	norm := normalizeMIME(mime)
	if !allowed[norm] {
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("picked_%s.%s", b.newID(), extForMIME(norm))
	}
	a := Artifact{
		Name:      name,
		MIME:      norm,
		Kind:      kind,
		Data:      data,
		CreatedAt: b.now(),
	}
	if err := a.CheckSize(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

func (b *Builder) finish(data []byte, mime string, kind Kind, prefix string) Artifact {
	norm := normalizeMIME(mime)
	return Artifact{
		Name:      fmt.Sprintf("%s_%s.%s", prefix, b.newID(), extForMIME(norm)),
		MIME:      norm,
		Kind:      kind,
		Data:      data,
		CreatedAt: b.now(),
	}
}

func encodeImage(img *image.RGBA, enc encoding.ImageEncoding) ([]byte, error) {
	var buf bytes.Buffer
	switch normalizeMIME(enc.MIME) {
	case "image/jpeg":
		q := enc.Quality
		if q <= 0 || q > 100 {
			q = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
	case "image/png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "image/gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no encoder for %q", enc.MIME)
	}
	return buf.Bytes(), nil
}

// decodeDataURL parses "data:<mime>;base64,<payload>".
func decodeDataURL(u string) (data []byte, mime string, ok bool) {
	const scheme = "data:"
	if !strings.HasPrefix(u, scheme) {
		return nil, "", false
	}
	rest := u[len(scheme):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", false
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", false
	}
	mime = normalizeMIME(strings.TrimSuffix(meta, ";base64"))
	if mime == "" {
		mime = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return data, mime, true
}
