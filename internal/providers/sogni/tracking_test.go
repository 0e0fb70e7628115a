package sogni

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/provider"
	"mediagen/internal/status"
	"mediagen/internal/track"
)

// scriptedConn replays provider wire frames to the push tracker.
type scriptedConn struct {
	frames chan []byte

	mu     sync.Mutex
	writes [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptedConn(frames ...string) *scriptedConn {
	ch := make(chan []byte, len(frames))
	for _, f := range frames {
		ch <- []byte(f)
	}
	return &scriptedConn{frames: ch, closed: make(chan struct{})}
}

func (c *scriptedConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.frames:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *scriptedConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *scriptedConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Full lifecycle through the real adapter and the real push tracker: wire
// frames in, canonical updates out.
func TestPushTrackingLifecycle(t *testing.T) {
	conn := newScriptedConn(
		`{"type":"queued","project_id":"p1","queue_position":1}`,
		`{"type":"accepted","project_id":"p1"}`,
		`{"type":"job_started","project_id":"p1"}`,
		`{"type":"worker_pool_resized","project_id":"p1"}`,
		`{"type":"job_output","project_id":"p1","url":"http://out/x.png"}`,
		`{"type":"postprocess_end","project_id":"p1"}`,
	)
	dial := func(ctx context.Context, url string) (track.Conn, error) { return conn, nil }
	plugin := testPlugin("http://example")
	tracker := track.NewPush(plugin, dial, zerolog.New(io.Discard))

	updates := tracker.Track(context.Background(), provider.Task{ID: "p1", Handle: "p1"})
	var got []status.Update
	deadline := time.After(5 * time.Second)
	for {
		var done bool
		select {
		case u, ok := <-updates:
			if !ok {
				done = true
			} else {
				got = append(got, u)
			}
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		}
		if done {
			break
		}
	}

	// The unknown event type fires no callback, so it contributes no update:
	// connecting, connected, then one update per recognized frame.
	wantKeys := []status.Key{
		status.KeyConnecting, status.KeyConnected, status.KeyQueued,
		status.KeyAccepted, status.KeyStarted, status.KeyProcessingOutput,
		status.KeyComplete,
	}
	if len(got) != len(wantKeys) {
		t.Fatalf("got %d updates, want %d: %v", len(got), len(wantKeys), got)
	}
	for i, k := range wantKeys {
		if got[i].Status != k {
			t.Fatalf("update %d status = %q, want %q", i, got[i].Status, k)
		}
	}

	final := got[len(got)-1]
	if final.Percent != 100 {
		t.Fatalf("final percent = %g", final.Percent)
	}
	if len(final.OutputURLs) != 1 || final.OutputURLs[0] != "http://out/x.png" {
		t.Fatalf("final outputs = %v", final.OutputURLs)
	}
	terminals := 0
	for _, u := range got {
		if u.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal updates = %d, want 1", terminals)
	}

	var prev float64
	for _, u := range got {
		if u.Percent < prev {
			t.Fatalf("percent decreased across lifecycle: %v", got)
		}
		prev = u.Percent
	}

	conn.mu.Lock()
	writes := len(conn.writes)
	conn.mu.Unlock()
	if writes != 1 {
		t.Fatalf("subscribe frames sent = %d, want 1", writes)
	}
	select {
	case <-conn.closed:
	default:
		t.Fatalf("tracker left the connection open after completion")
	}
}
