// Package encoding selects capture encodings from declared host support.
//
// Selection is deterministic: for a fixed support table the chosen encoding
// never changes between calls. There is no probing at selection time; the
// Support implementation answers from whatever the host declared up front.
package encoding

// Candidate video container/codec strings, most efficient first. The empty
// trailing entry means "record with host defaults".
var videoPreference = []string{
	"video/webm;codecs=vp9",
	"video/webm",
	"video/mp4",
}

// ImageEncoding is one candidate raster encoding for still capture.
type ImageEncoding struct {
	MIME    string
	Quality int // 1-100, meaningful for lossy formats only
}

var imagePreference = []ImageEncoding{
	{MIME: "image/jpeg", Quality: 92},
	{MIME: "image/png"},
	{MIME: "image/gif"},
}

// Support answers whether the host can produce a given encoding.
type Support interface {
	SupportsVideoMIME(mime string) bool
	SupportsImageMIME(mime string) bool
}

// StaticSupport is a fixed support table. The zero value supports nothing.
type StaticSupport struct {
	Video map[string]bool
	Image map[string]bool
}

func (s StaticSupport) SupportsVideoMIME(mime string) bool { return s.Video[mime] }
func (s StaticSupport) SupportsImageMIME(mime string) bool { return s.Image[mime] }

// FullSupport declares every candidate encoding available. Used as the
// default when the host does not report capabilities.
func FullSupport() StaticSupport {
	v := make(map[string]bool, len(videoPreference))
	for _, m := range videoPreference {
		v[m] = true
	}
	i := make(map[string]bool, len(imagePreference))
	for _, e := range imagePreference {
		i[e.MIME] = true
	}
	return StaticSupport{Video: v, Image: i}
}

// Negotiator picks encodings against a Support table.
type Negotiator struct {
	support Support
}

func NewNegotiator(s Support) *Negotiator {
	if s == nil {
		s = FullSupport()
	}
	return &Negotiator{support: s}
}

// BestVideo returns the preferred supported video encoding. ok is false when
// nothing is supported, in which case recording proceeds with host defaults.
func (n *Negotiator) BestVideo() (mime string, ok bool) {
	for _, m := range videoPreference {
		if n.support.SupportsVideoMIME(m) {
			return m, true
		}
	}
	return "", false
}

// ImageOrder returns the supported image encodings in preference order. The
// artifact builder tries them until one yields a non-empty result.
func (n *Negotiator) ImageOrder() []ImageEncoding {
	out := make([]ImageEncoding, 0, len(imagePreference))
	for _, e := range imagePreference {
		if n.support.SupportsImageMIME(e.MIME) {
			out = append(out, e)
		}
	}
	return out
}
