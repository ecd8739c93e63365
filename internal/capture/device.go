package capture

import (
	"context"

	"fieldreport/internal/artifact"
)

// Device is the host binding to camera/microphone hardware. Implementations
// translate native failures into the package's error taxonomy.
type Device interface {
	// Open acquires a live stream. On failure no stream handle may remain
	// allocated; the returned error is one of the hardware-access sentinels
	// (possibly wrapped) or an arbitrary host error.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one acquired live stream. Ownership stays with the Session;
// nothing else may close it.
type Stream interface {
	// Dimensions returns the current spatial size. Zero values mean the
	// stream has not produced a frame yet.
	Dimensions() (width, height int)

	// ReadFrame returns the current frame as raw pixels.
	ReadFrame() (artifact.Frame, error)

	// NewRecorder prepares a recorder for the stream. mimeType may be empty,
	// meaning record with host defaults.
	NewRecorder(mimeType string) (Recorder, error)

	// Close stops every underlying track. Must be safe to call once per
	// acquired stream.
	Close() error
}

// Recorder collects encoded chunks from a stream.
type Recorder interface {
	// Start begins recording. onChunk is invoked for every data chunk,
	// including the final flush during Stop.
	Start(onChunk func(chunk []byte)) error

	// Stop ends the recording, flushing any buffered chunk through onChunk
	// before returning.
	Stop() error
}
