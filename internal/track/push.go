// Package track runs the two tracking state machines that resume a
// submitted task to its terminal state: an event-driven push tracker for
// providers that stream progress over a socket, and a polling loop for
// providers that only expose a status endpoint. Both emit canonical
// status.Update values on a channel and guarantee a non-decreasing percent
// and exactly one terminal update per task.
package track

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mediagen/internal/provider"
	"mediagen/internal/status"
)

// Conn is the minimal transport surface the push tracker needs. It matches
// the websocket client underneath and keeps tests free of real sockets.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a transport connection to the provider's push endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WebsocketDialer returns a Dialer backed by the default websocket client.
func WebsocketDialer() Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: conn}, nil
	}
}

// Push tracks one task per call over the provider's streaming transport.
type Push struct {
	plugin provider.PushPlugin
	dial   Dialer
	logger zerolog.Logger
}

// NewPush wires a push tracker for the given plugin. A nil dialer falls back
// to the websocket client.
func NewPush(plugin provider.PushPlugin, dial Dialer, logger zerolog.Logger) *Push {
	if dial == nil {
		dial = WebsocketDialer()
	}
	return &Push{plugin: plugin, dial: dial, logger: logger}
}

// Track opens the transport, sends the plugin's init frame, and decodes
// inbound frames until the plugin requests cleanup or the context is
// cancelled. Updates arrive on the returned channel in provider order; the
// channel is closed once tracking ends. Cancelling the context closes the
// connection and emits no further updates.
func (t *Push) Track(ctx context.Context, task provider.Task) <-chan status.Update {
	updates := make(chan status.Update, 16)
	go t.run(ctx, task, updates)
	return updates
}

func (t *Push) run(ctx context.Context, task provider.Task, updates chan<- status.Update) {
	defer close(updates)

	sink := &pushSink{ctx: ctx, updates: updates}
	sink.SetStatus(status.KeyConnecting)
	sink.flush()

	conn, err := t.dial(ctx, t.plugin.TransportURL())
	if err != nil {
		t.logger.Error().Err(err).Str("task_id", task.ID).Msg("push: dial failed")
		sink.Fail("transport connect failed: " + err.Error())
		sink.flush()
		return
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	// Close the connection as soon as the caller cancels so the read loop
	// unblocks.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-watchDone:
		}
	}()

	sink.SetStatus(status.KeyConnected)
	sink.flush()

	init, err := t.plugin.InitFrame(task.Handle)
	if err != nil {
		sink.Fail("init frame: " + err.Error())
		sink.flush()
		return
	}
	if err := conn.WriteMessage(init); err != nil {
		sink.Fail("send init frame: " + err.Error())
		sink.flush()
		return
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || sink.closed {
				return
			}
			// Connection dropped before a terminal event; surface it as the
			// final update rather than losing the task silently.
			t.logger.Warn().Err(err).Str("task_id", task.ID).Msg("push: transport closed unexpectedly")
			sink.Fail("transport closed: " + err.Error())
			sink.flush()
			return
		}
		if err := t.plugin.HandleFrame(data, sink); err != nil {
			// Decode anomaly: logged and dropped, never fatal to tracking.
			t.logger.Warn().Err(err).Str("task_id", task.ID).Msg("push: dropping malformed frame")
			continue
		}
		sink.flush()
		if sink.closed {
			closeConn()
			return
		}
	}
}

// pushSink accumulates per-task state across adapter callbacks and emits one
// snapshot per inbound frame. It enforces the monotone percent clamp and
// suppresses everything after the single terminal update.
type pushSink struct {
	ctx     context.Context
	updates chan<- status.Update

	status   status.Key
	percent  float64
	queuePos *int
	outputs  []string
	errMsg   string

	dirty  bool
	done   bool
	closed bool
}

func (s *pushSink) SetStatus(key status.Key) {
	s.status = key
	s.dirty = true
}

func (s *pushSink) SetProgress(percent float64) {
	if percent > s.percent {
		s.percent = min(percent, 100)
	}
	s.dirty = true
}

func (s *pushSink) AddProgress(delta float64) {
	s.SetProgress(s.percent + delta)
}

func (s *pushSink) SetQueuePosition(pos int) {
	s.queuePos = &pos
	s.dirty = true
}

func (s *pushSink) Outputs(urls []string) {
	s.outputs = append(s.outputs, urls...)
	s.dirty = true
}

func (s *pushSink) Fail(message string) {
	s.status = status.KeyError
	s.errMsg = message
	s.dirty = true
}

func (s *pushSink) Cleanup() {
	s.closed = true
}

// flush emits the current snapshot if any callback touched it since the last
// frame. Once a terminal update has been delivered, further snapshots are
// dropped: no canonical updates are valid after the terminal one.
func (s *pushSink) flush() {
	if !s.dirty || s.done {
		s.dirty = false
		return
	}
	s.dirty = false
	u := status.Update{
		Status:        s.status,
		Percent:       s.percent,
		QueuePosition: s.queuePos,
		OutputURLs:    append([]string{}, s.outputs...),
		ErrorMessage:  s.errMsg,
	}
	if u.Terminal() {
		s.done = true
	}
	select {
	case s.updates <- u:
	case <-s.ctx.Done():
	}
}
