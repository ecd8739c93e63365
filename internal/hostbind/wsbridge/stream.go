package wsbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldreport/internal/artifact"
	"fieldreport/internal/capture"
)

// remoteStream is the capture.Stream view of the host's live camera.
type remoteStream struct {
	bridge *Bridge

	mu       sync.Mutex
	width    int
	height   int
	ended    bool
	frameReq chan inbound
	recorder *remoteRecorder
}

func newRemoteStream(b *Bridge, width, height int) *remoteStream {
	return &remoteStream{bridge: b, width: width, height: height}
}

func (s *remoteStream) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *remoteStream) setDimensions(w, h int) {
	s.mu.Lock()
	s.width, s.height = w, h
	s.mu.Unlock()
}

// ReadFrame requests the current frame from the host and blocks for the
// reply.
func (s *remoteStream) ReadFrame() (artifact.Frame, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return artifact.Frame{}, errors.New("wsbridge: stream ended")
	}
	req := make(chan inbound, 1)
	s.frameReq = req
	s.mu.Unlock()

	if err := s.bridge.send(outbound{Type: "frame"}); err != nil {
		return artifact.Frame{}, err
	}
	select {
	case msg := <-req:
		pixels, err := decodeB64(msg.Pixels)
		if err != nil && msg.DataURL == "" {
			return artifact.Frame{}, fmt.Errorf("wsbridge: decode frame: %w", err)
		}
		return artifact.Frame{
			Width:   msg.Width,
			Height:  msg.Height,
			Pixels:  pixels,
			DataURL: msg.DataURL,
		}, nil
	case <-time.After(replyTimeout):
		return artifact.Frame{}, errors.New("wsbridge: host did not answer frame request")
	}
}

func (s *remoteStream) deliverFrame(msg inbound) {
	s.mu.Lock()
	req := s.frameReq
	s.frameReq = nil
	if msg.Width > 0 && msg.Height > 0 {
		s.width, s.height = msg.Width, msg.Height
	}
	s.mu.Unlock()
	if req != nil {
		select {
		case req <- msg:
		default:
		}
	}
}

func (s *remoteStream) NewRecorder(mimeType string) (capture.Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, errors.New("wsbridge: stream ended")
	}
	if s.recorder != nil {
		return nil, errors.New("wsbridge: recorder already attached")
	}
	r := &remoteRecorder{stream: s, mimeType: mimeType}
	s.recorder = r
	return r, nil
}

func (s *remoteStream) deliverChunk(msg inbound) {
	s.mu.Lock()
	rec := s.recorder
	s.mu.Unlock()
	if rec == nil {
		return
	}
	data, err := decodeB64(msg.Data)
	if err != nil {
		return
	}
	rec.deliver(data)
}

func (s *remoteStream) recordStopped() {
	s.mu.Lock()
	rec := s.recorder
	s.recorder = nil
	s.mu.Unlock()
	if rec != nil {
		rec.stopped()
	}
}

// Close tells the host to release its camera tracks.
func (s *remoteStream) Close() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.recorder = nil
	s.mu.Unlock()
	return s.bridge.send(outbound{Type: "close"})
}

func (s *remoteStream) markEnded() {
	s.mu.Lock()
	s.ended = true
	s.width, s.height = 0, 0
	rec := s.recorder
	s.recorder = nil
	s.mu.Unlock()
	if rec != nil {
		rec.stopped()
	}
}

// remoteRecorder forwards host chunks into the session's collector.
type remoteRecorder struct {
	stream   *remoteStream
	mimeType string

	mu      sync.Mutex
	onChunk func([]byte)
	done    chan struct{}
}

func (r *remoteRecorder) Start(onChunk func([]byte)) error {
	r.mu.Lock()
	r.onChunk = onChunk
	r.done = make(chan struct{})
	r.mu.Unlock()
	return r.stream.bridge.send(outbound{Type: "record-start", MIMEType: r.mimeType})
}

// Stop asks the host to finish the recording and waits for its final flush
// so the last chunk is never lost.
func (r *remoteRecorder) Stop() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	if err := r.stream.bridge.send(outbound{Type: "record-stop"}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-time.After(replyTimeout):
		return errors.New("wsbridge: host did not confirm record stop")
	}
}

func (r *remoteRecorder) deliver(chunk []byte) {
	r.mu.Lock()
	fn := r.onChunk
	r.mu.Unlock()
	if fn != nil {
		fn(chunk)
	}
}

func (r *remoteRecorder) stopped() {
	r.mu.Lock()
	done := r.done
	r.done = nil
	r.mu.Unlock()
	if done != nil {
		close(done)
	}
}

var _ capture.Stream = (*remoteStream)(nil)
