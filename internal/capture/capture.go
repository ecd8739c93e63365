// Package capture owns the lifecycle of one live media stream: acquire,
// preview, capture or record, release.
//
// The Session is a pure state machine over a host-binding Device. It holds a
// stream handle exactly while state is Active or Recording, and releases it
// on every exit path, including errors, so hardware is never left locked.
package capture

import (
	"errors"
)

// State of a capture session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateRecording
	StateError
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Mode selects still capture or video recording.
type Mode int

const (
	ModePhoto Mode = iota
	ModeVideo
)

func (m Mode) String() string {
	if m == ModeVideo {
		return "video"
	}
	return "photo"
}

// Hardware-access failures. Each maps to distinct remediation text because
// the fix differs: grant permission, close the other app, or fall back to
// the file picker.
var (
	ErrNoCamera         = errors.New("capture: no camera found")
	ErrPermissionDenied = errors.New("capture: camera permission denied")
	ErrDeviceBusy       = errors.New("capture: camera is busy")
	ErrConstraints      = errors.New("capture: constraints unsatisfiable")
	ErrUnsupported      = errors.New("capture: live capture not supported")
)

// Operational failures.
var (
	// ErrFrameNotReady means the stream has not warmed up yet (zero spatial
	// dimensions). Retryable; the session stays Active.
	ErrFrameNotReady = errors.New("capture: frame not ready")
	ErrBadState      = errors.New("capture: operation invalid in current state")
)

// Remediation returns the user-facing remediation text for a capture error.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrNoCamera):
		return "No camera was found on this device."
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access was denied. Grant camera permission and try again."
	case errors.Is(err, ErrDeviceBusy):
		return "The camera is in use by another app. Close it and try again."
	case errors.Is(err, ErrConstraints):
		return "The camera does not support the requested settings."
	case errors.Is(err, ErrUnsupported):
		return "Live capture is not available here. Use the file picker instead."
	case errors.Is(err, ErrFrameNotReady):
		return "The camera is still warming up. Try again in a moment."
	default:
		return "Something went wrong with the camera."
	}
}

// Constraints describe the requested stream. Zero Width/Height means "any".
type Constraints struct {
	Width       int
	Height      int
	FacingFront bool
	Audio       bool
}

func primaryConstraints(mode Mode, wantsAudio bool) Constraints {
	return Constraints{
		Width:       640,
		Height:      480,
		FacingFront: true,
		Audio:       wantsAudio && mode == ModeVideo,
	}
}

func minimalConstraints(mode Mode, wantsAudio bool) Constraints {
	return Constraints{Audio: wantsAudio && mode == ModeVideo}
}

// EventKind identifies session events. Host binding layers adapt their
// native callbacks into these.
type EventKind int

const (
	EventFrameReady EventKind = iota
	EventChunkAvailable
	EventTrackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventChunkAvailable:
		return "chunk-available"
	case EventTrackEnded:
		return "track-ended"
	default:
		return "frame-ready"
	}
}

// Event is one session notification. Size carries the chunk length for
// EventChunkAvailable.
type Event struct {
	Kind EventKind
	Size int
}
