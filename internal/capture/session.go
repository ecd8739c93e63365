package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldreport/internal/artifact"
	"fieldreport/internal/encoding"
)

// Options tune a Session. Zero values fall back to defaults.
type Options struct {
	// MaxRecording caps clip length. Reaching it finalizes the in-flight
	// recording exactly as a manual stop would.
	MaxRecording time.Duration
	// Tick drives the recording elapsed counter.
	Tick time.Duration
	// WatchdogGrace is added to MaxRecording for the independent watchdog
	// that guarantees termination even if the tick mechanism stalls.
	WatchdogGrace time.Duration
	// OnEvent receives session events synchronously. Handlers must not call
	// back into the session.
	OnEvent func(Event)
	// OnAutoStop receives the finalized clip when the duration limit fires.
	// The result also stays retrievable through StopRecording either way.
	OnAutoStop func(artifact.Artifact, error)
}

const (
	defaultMaxRecording  = 30 * time.Second
	defaultTick          = 250 * time.Millisecond
	defaultWatchdogGrace = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxRecording <= 0 {
		o.MaxRecording = defaultMaxRecording
	}
	if o.Tick <= 0 {
		o.Tick = defaultTick
	}
	if o.WatchdogGrace <= 0 {
		o.WatchdogGrace = defaultWatchdogGrace
	}
	return o
}

// Session is the capture state machine. One UI surface owns at most one
// Session; the Session exclusively owns at most one live stream.
type Session struct {
	dev     Device
	neg     *encoding.Negotiator
	builder *artifact.Builder
	opts    Options

	mu        sync.Mutex
	state     State
	mode      Mode
	stream    Stream
	recorder  Recorder
	recMIME   string
	recGen    int
	recStart  time.Time
	elapsed   time.Duration
	startedAt time.Time
	tickStop  chan struct{}
	watchdog  *time.Timer

	// Finalized auto-stop result, held until the caller's own stop call.
	finalized    *artifact.Artifact
	finalizedErr error

	// chunkMu guards chunks separately so a recorder flushing synchronously
	// inside Stop cannot deadlock against the session lock.
	chunkMu sync.Mutex
	chunks  [][]byte
}

func NewSession(dev Device, neg *encoding.Negotiator, builder *artifact.Builder, opts Options) *Session {
	if neg == nil {
		neg = encoding.NewNegotiator(nil)
	}
	if builder == nil {
		builder = artifact.NewBuilder(neg)
	}
	return &Session{
		dev:     dev,
		neg:     neg,
		builder: builder,
		opts:    opts.withDefaults(),
	}
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the mode the session was opened with.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// RecordingElapsed returns the elapsed time of the in-flight recording as of
// the last tick.
func (s *Session) RecordingElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Open acquires hardware with the primary constraint set and, on a
// constraint rejection specifically, retries once with the minimal set
// before surfacing failure.
func (s *Session) Open(ctx context.Context, mode Mode, wantsAudio bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: open while %s", ErrBadState, s.state)
	}

	stream, err := s.dev.Open(ctx, primaryConstraints(mode, wantsAudio))
	if errors.Is(err, ErrConstraints) {
		log.Printf("capture: primary constraints rejected, retrying minimal: %v", err)
		stream, err = s.dev.Open(ctx, minimalConstraints(mode, wantsAudio))
	}
	if err != nil {
		// Transient Error state collapses straight back to Idle; no stream
		// handle exists on this path.
		s.state = StateIdle
		return fmt.Errorf("capture: open: %w", err)
	}

	s.stream = stream
	s.mode = mode
	s.state = StateActive
	s.startedAt = time.Now()
	s.elapsed = 0
	s.finalized = nil
	s.finalizedErr = nil
	return nil
}

// Close stops any recording, releases the stream, and returns to Idle.
// Idempotent: closing an idle session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return nil
	}
	// Stop the recorder before releasing hardware, never the reverse, so
	// the final chunk is not lost.
	if s.state == StateRecording {
		if _, err := s.stopRecordingLocked(); err != nil && !errors.Is(err, artifact.ErrEmptyRecording) {
			log.Printf("capture: stopping recorder during close: %v", err)
		}
	}
	s.releaseStreamLocked()
	s.state = StateIdle
	return nil
}

// releaseStreamLocked stops every track and drops the handle. The stream
// handle exists iff state is Active or Recording, so this runs on every
// transition out of those states.
func (s *Session) releaseStreamLocked() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		log.Printf("capture: closing stream: %v", err)
	}
	s.stream = nil
	s.emit(Event{Kind: EventTrackEnded})
}

// CaptureImage grabs the current frame and builds an image artifact. Valid
// only while Active in Photo mode.
func (s *Session) CaptureImage() (artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.mode != ModePhoto {
		return artifact.Artifact{}, fmt.Errorf("%w: capture while %s/%s", ErrBadState, s.state, s.mode)
	}
	w, h := s.stream.Dimensions()
	if w <= 0 || h <= 0 {
		return artifact.Artifact{}, ErrFrameNotReady
	}
	frame, err := s.stream.ReadFrame()
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("capture: read frame: %w", err)
	}
	s.emit(Event{Kind: EventFrameReady})
	return s.builder.FromLiveFrame(frame)
}

// StartRecording begins collecting chunks. Valid only while Active in Video
// mode.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.mode != ModeVideo {
		return fmt.Errorf("%w: record while %s/%s", ErrBadState, s.state, s.mode)
	}

	mime, ok := s.neg.BestVideo()
	if !ok {
		log.Printf("capture: no negotiated video encoding, recording with host defaults")
	}
	rec, err := s.stream.NewRecorder(mime)
	if err != nil {
		return fmt.Errorf("capture: new recorder: %w", err)
	}

	s.chunkMu.Lock()
	s.chunks = nil
	s.chunkMu.Unlock()

	if err := rec.Start(s.collectChunk); err != nil {
		return fmt.Errorf("capture: start recorder: %w", err)
	}

	s.recorder = rec
	s.recMIME = mime
	s.recStart = time.Now()
	s.elapsed = 0
	s.finalized = nil
	s.finalizedErr = nil
	s.state = StateRecording
	s.recGen++
	s.startTimersLocked(s.recGen)
	return nil
}

func (s *Session) collectChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.chunkMu.Unlock()
	s.emit(Event{Kind: EventChunkAvailable, Size: len(chunk)})
}

func (s *Session) startTimersLocked(gen int) {
	stop := make(chan struct{})
	s.tickStop = stop
	ticker := time.NewTicker(s.opts.Tick)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.onTick(gen)
			}
		}
	}()
	// Watchdog independent of the tick: guarantees termination even if the
	// tick mechanism stalls.
	s.watchdog = time.AfterFunc(s.opts.MaxRecording+s.opts.WatchdogGrace, func() {
		s.onWatchdog(gen)
	})
}

func (s *Session) stopTimersLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *Session) onTick(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording || gen != s.recGen {
		return
	}
	s.elapsed = time.Since(s.recStart)
	if s.elapsed >= s.opts.MaxRecording {
		s.autoStopLocked("duration limit")
	}
}

func (s *Session) onWatchdog(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording || gen != s.recGen {
		return
	}
	log.Printf("capture: watchdog fired, tick stalled; forcing recording stop")
	s.autoStopLocked("watchdog")
}

// autoStopLocked finalizes the in-flight recording as if the user had
// stopped it manually. Data collected up to this instant is kept.
func (s *Session) autoStopLocked(reason string) {
	art, err := s.stopRecordingLocked()
	log.Printf("capture: recording auto-stopped (%s), err=%v", reason, err)
	s.finalized = nil
	s.finalizedErr = err
	if err == nil {
		a := art
		s.finalized = &a
	}
	if s.opts.OnAutoStop != nil {
		go s.opts.OnAutoStop(art, err)
	}
}

// StopRecording finalizes the clip from exactly the chunks collected up to
// the stop instant and returns to Active. If the duration limit already
// stopped the recording, the finalized clip is returned instead.
func (s *Session) StopRecording() (artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive && (s.finalized != nil || s.finalizedErr != nil) {
		art, err := s.finalized, s.finalizedErr
		s.finalized = nil
		s.finalizedErr = nil
		if err != nil {
			return artifact.Artifact{}, err
		}
		return *art, nil
	}
	if s.state != StateRecording {
		return artifact.Artifact{}, fmt.Errorf("%w: stop while %s", ErrBadState, s.state)
	}
	return s.stopRecordingLocked()
}

func (s *Session) stopRecordingLocked() (artifact.Artifact, error) {
	s.stopTimersLocked()
	s.recGen++

	rec := s.recorder
	s.recorder = nil
	s.state = StateActive
	s.elapsed = time.Since(s.recStart)

	var stopErr error
	if rec != nil {
		// Flushes the final chunk through collectChunk before returning.
		stopErr = rec.Stop()
	}

	s.chunkMu.Lock()
	chunks := s.chunks
	s.chunks = nil
	s.chunkMu.Unlock()

	art, err := s.builder.FromRecordedChunks(chunks, s.recMIME)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if stopErr != nil {
		log.Printf("capture: recorder stop reported: %v", stopErr)
	}
	return art, nil
}

func (s *Session) emit(e Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(e)
	}
}
