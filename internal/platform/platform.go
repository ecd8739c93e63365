// Package platform classifies the host environment for media capture.
//
// Classification is a static inspection of the host identification string.
// It carries no failure mode: anything unrecognized is treated as capable of
// live streaming, since a live-stream attempt can itself fail gracefully and
// fall back to the native picker.
package platform

import "strings"

// Profile describes which capture affordance the host supports.
type Profile int

const (
	// LiveStreamCapable hosts expose a live camera/microphone stream.
	LiveStreamCapable Profile = iota
	// NativePickerOnly hosts only expose a native file picker.
	NativePickerOnly
)

func (p Profile) String() string {
	switch p {
	case NativePickerOnly:
		return "native-picker-only"
	default:
		return "live-stream-capable"
	}
}

// OS is the coarse operating-system taxonomy used for classification.
type OS int

const (
	OSOther OS = iota
	OSIOS
	OSAndroid
)

func (o OS) String() string {
	switch o {
	case OSIOS:
		return "ios"
	case OSAndroid:
		return "android"
	default:
		return "other"
	}
}

// DetectOS inspects a user-agent style identification string.
func DetectOS(userAgent string) OS {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return OSIOS
	case strings.Contains(ua, "macintosh") && strings.Contains(ua, "mobile"):
		// iPadOS masquerades as desktop Safari but keeps the Mobile token.
		return OSIOS
	case strings.Contains(ua, "android"):
		return OSAndroid
	default:
		return OSOther
	}
}

// Classify maps a host identification string onto a capture Profile.
// Deterministic and side-effect free; safe to call any number of times.
func Classify(userAgent string) Profile {
	if DetectOS(userAgent) == OSIOS {
		return NativePickerOnly
	}
	return LiveStreamCapable
}
