// Package wsbridge binds the capture session to a remote capture host over
// a websocket. The host owns the real camera; this side adapts its native
// messages into the session's FrameReady/ChunkAvailable/TrackEnded
// contract, so the session never sees the transport.
package wsbridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fieldreport/internal/capture"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingEvery    = (pongWait * 9) / 10
	replyTimeout = 15 * time.Second
)

// inbound is a message from the capture host.
type inbound struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Pixels  string `json:"pixels,omitempty"` // base64 RGBA
	DataURL string `json:"dataUrl,omitempty"`
	Data    string `json:"data,omitempty"` // base64 chunk
}

// outbound is a command to the capture host.
type outbound struct {
	Type        string `json:"type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	FacingFront bool   `json:"facingFront,omitempty"`
	Audio       bool   `json:"audio,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// Bridge is a capture.Device backed by one websocket connection.
type Bridge struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	stream   *remoteStream
	opened   chan inbound
	closed   bool
	pingDone chan struct{}
}

// Dial connects to a capture host.
func Dial(ctx context.Context, url string) (*Bridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial %s: %w", url, err)
	}
	b := &Bridge{
		conn:     conn,
		pingDone: make(chan struct{}),
	}
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("wsbridge: set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go b.readPump()
	go b.pingLoop()
	return b, nil
}

// Open asks the host to acquire its camera. Implements capture.Device.
func (b *Bridge) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("wsbridge: %w: bridge closed", capture.ErrUnsupported)
	}
	if b.stream != nil {
		b.mu.Unlock()
		return nil, capture.ErrDeviceBusy
	}
	opened := make(chan inbound, 1)
	b.opened = opened
	b.mu.Unlock()

	err := b.send(outbound{
		Type:        "open",
		Width:       c.Width,
		Height:      c.Height,
		FacingFront: c.FacingFront,
		Audio:       c.Audio,
	})
	if err != nil {
		return nil, err
	}

	select {
	case msg := <-opened:
		if msg.Type == "error" {
			return nil, hostError(msg)
		}
		st := newRemoteStream(b, msg.Width, msg.Height)
		b.mu.Lock()
		b.stream = st
		b.opened = nil
		b.mu.Unlock()
		return st, nil
	case <-time.After(replyTimeout):
		return nil, fmt.Errorf("wsbridge: %w: host did not answer open", capture.ErrUnsupported)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the transport down. Any live stream is detached; its tracks
// end on the host side when the connection drops.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	st := b.stream
	b.stream = nil
	close(b.pingDone)
	b.mu.Unlock()

	if st != nil {
		st.markEnded()
	}
	return b.conn.Close()
}

func (b *Bridge) send(msg outbound) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("wsbridge: set write deadline: %w", err)
	}
	if err := b.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("wsbridge: write %s: %w", msg.Type, err)
	}
	return nil
}

func (b *Bridge) pingLoop() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-b.pingDone:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := b.conn.WriteMessage(websocket.PingMessage, nil)
			b.writeMu.Unlock()
			if err != nil {
				log.Printf("wsbridge: ping failed: %v", err)
				return
			}
		}
	}
}

func (b *Bridge) readPump() {
	for {
		var msg inbound
		if err := b.conn.ReadJSON(&msg); err != nil {
			b.mu.Lock()
			st := b.stream
			b.stream = nil
			closed := b.closed
			b.mu.Unlock()
			if !closed {
				log.Printf("wsbridge: read pump stopped: %v", err)
			}
			if st != nil {
				st.markEnded()
			}
			return
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg inbound) {
	b.mu.Lock()
	opened := b.opened
	st := b.stream
	b.mu.Unlock()

	switch msg.Type {
	case "opened", "error":
		if opened != nil {
			select {
			case opened <- msg:
			default:
			}
			return
		}
		if msg.Type == "error" && st != nil {
			log.Printf("wsbridge: host error: %s (%s)", msg.Message, msg.Code)
		}
	case "dimensions":
		if st != nil {
			st.setDimensions(msg.Width, msg.Height)
		}
	case "frame":
		if st != nil {
			st.deliverFrame(msg)
		}
	case "chunk":
		if st != nil {
			st.deliverChunk(msg)
		}
	case "record-stopped":
		if st != nil {
			st.recordStopped()
		}
	case "ended":
		if st != nil {
			st.markEnded()
		}
	default:
		log.Printf("wsbridge: ignoring message type %q", msg.Type)
	}
}

// hostError maps host failure codes onto the capture error taxonomy.
func hostError(msg inbound) error {
	var base error
	switch msg.Code {
	case "not-found":
		base = capture.ErrNoCamera
	case "permission-denied":
		base = capture.ErrPermissionDenied
	case "busy":
		base = capture.ErrDeviceBusy
	case "constraints":
		base = capture.ErrConstraints
	case "unsupported":
		base = capture.ErrUnsupported
	default:
		base = capture.ErrUnsupported
	}
	if msg.Message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg.Message)
}

func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty payload")
	}
	return base64.StdEncoding.DecodeString(s)
}

var _ capture.Device = (*Bridge)(nil)
