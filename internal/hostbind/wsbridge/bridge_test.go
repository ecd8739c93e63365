package wsbridge

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fieldreport/internal/capture"
)

// fakeHost runs a scripted capture host behind an httptest server.
type fakeHost struct {
	t       *testing.T
	srv     *httptest.Server
	openErr string // error code to answer "open" with; empty means success
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{t: t}
	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		h.serve(conn)
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHost) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *fakeHost) serve(conn *websocket.Conn) {
	recording := false
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		reply := func(v any) {
			if err := conn.WriteJSON(v); err != nil {
				h.t.Logf("host write: %v", err)
			}
		}
		switch msg["type"] {
		case "open":
			if h.openErr != "" {
				reply(map[string]any{"type": "error", "code": h.openErr, "message": "host says no"})
				continue
			}
			reply(map[string]any{"type": "opened", "width": 640, "height": 480})
		case "frame":
			reply(map[string]any{
				"type": "frame", "width": 2, "height": 1,
				"pixels": base64.StdEncoding.EncodeToString(make([]byte, 8)),
			})
		case "record-start":
			recording = true
			reply(map[string]any{
				"type": "chunk",
				"data": base64.StdEncoding.EncodeToString([]byte("chunk-1")),
			})
		case "record-stop":
			if recording {
				reply(map[string]any{
					"type": "chunk",
					"data": base64.StdEncoding.EncodeToString([]byte("chunk-2")),
				})
				recording = false
			}
			reply(map[string]any{"type": "record-stopped"})
		case "close":
			reply(map[string]any{"type": "ended"})
		}
	}
}

func dialTest(t *testing.T, h *fakeHost) *Bridge {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := Dial(ctx, h.url())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestOpenAndReadFrame(t *testing.T) {
	b := dialTest(t, newFakeHost(t))

	st, err := b.Open(context.Background(), capture.Constraints{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if w, h := st.Dimensions(); w != 640 || h != 480 {
		t.Fatalf("dimensions = %dx%d", w, h)
	}

	f, err := st.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Width != 2 || f.Height != 1 || len(f.Pixels) != 8 {
		t.Fatalf("frame = %dx%d, %d pixel bytes", f.Width, f.Height, len(f.Pixels))
	}
}

func TestOpenMapsHostErrorCodes(t *testing.T) {
	h := newFakeHost(t)
	h.openErr = "permission-denied"
	b := dialTest(t, h)

	_, err := b.Open(context.Background(), capture.Constraints{})
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
	if !strings.Contains(err.Error(), "host says no") {
		t.Fatalf("host message lost: %v", err)
	}
}

func TestRecordCollectsChunksThroughStop(t *testing.T) {
	b := dialTest(t, newFakeHost(t))

	st, err := b.Open(context.Background(), capture.Constraints{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec, err := st.NewRecorder("video/webm")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	chunks := make(chan []byte, 4)
	if err := rec.Start(func(c []byte) { chunks <- c }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var got []string
	for len(got) < 2 {
		select {
		case c := <-chunks:
			got = append(got, string(c))
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, have %v", got)
		}
	}
	if got[0] != "chunk-1" || got[1] != "chunk-2" {
		t.Fatalf("chunks = %v", got)
	}
}

func TestSecondOpenIsBusy(t *testing.T) {
	b := dialTest(t, newFakeHost(t))

	if _, err := b.Open(context.Background(), capture.Constraints{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := b.Open(context.Background(), capture.Constraints{}); !errors.Is(err, capture.ErrDeviceBusy) {
		t.Fatalf("want ErrDeviceBusy, got %v", err)
	}
}

func TestHostEndedMarksStream(t *testing.T) {
	b := dialTest(t, newFakeHost(t))

	st, err := b.Open(context.Background(), capture.Constraints{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := st.ReadFrame(); err == nil {
		t.Fatal("reads after close must fail")
	}
}
