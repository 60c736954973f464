package transport

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dustingooding/radix-relay/internal/queue"
)

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d fakeDialer) Dial(url string, header map[string][]string) (wsConn, *dialResponse, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	return d.conn, &dialResponse{}, nil
}

type fakeConn struct {
	reads  chan []byte
	writes chan []byte
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 8),
		writes: make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.reads:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case c.writes <- data:
		return nil
	case <-c.closed:
		return errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func newTestTransport(t *testing.T, d dialer) (*Transport, *queue.Queue[Event]) {
	t.Helper()
	events := queue.New[Event](16)
	tr := New(events)
	tr.dial = d
	return tr, events
}

func TestConnectRejectsInsecureScheme(t *testing.T) {
	tr, events := newTestTransport(t, fakeDialer{})
	ctx := context.Background()
	tr.handleConnect(ctx, "ws://insecure.example")

	evt, err := events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvConnectFailed {
		t.Fatalf("Kind = %v, want EvConnectFailed", evt.Kind)
	}
	if tr.State() != StateDisconnected {
		t.Fatalf("State = %v, want StateDisconnected", tr.State())
	}
}

func TestConnectSuccess(t *testing.T) {
	conn := newFakeConn()
	tr, events := newTestTransport(t, fakeDialer{conn: conn})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.handleConnect(ctx, "wss://relay.example")

	evt, err := events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvConnected {
		t.Fatalf("Kind = %v, want EvConnected", evt.Kind)
	}
	if tr.State() != StateConnected {
		t.Fatalf("State = %v, want StateConnected", tr.State())
	}
}

func TestConnectFailure(t *testing.T) {
	tr, events := newTestTransport(t, fakeDialer{err: errors.New("refused")})
	ctx := context.Background()
	tr.handleConnect(ctx, "wss://relay.example")

	evt, err := events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvConnectFailed || evt.Error == "" {
		t.Fatalf("got %+v, want a populated EvConnectFailed", evt)
	}
}

func TestSendWhileDisconnectedFailsImmediately(t *testing.T) {
	tr, events := newTestTransport(t, fakeDialer{})
	tr.handleSend("msg-1", []byte("payload"))

	evt, err := events.Pop(context.Background())
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvSendFailed || evt.MsgID != "msg-1" {
		t.Fatalf("got %+v, want EvSendFailed for msg-1", evt)
	}
}

func TestSendWhileConnectedWritesAndEmitsSent(t *testing.T) {
	conn := newFakeConn()
	tr, events := newTestTransport(t, fakeDialer{conn: conn})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.handleConnect(ctx, "wss://relay.example")
	if _, err := events.Pop(ctx); err != nil {
		t.Fatalf("Pop (connected): %v", err)
	}

	tr.handleSend("msg-1", []byte("payload"))

	select {
	case got := <-conn.writes:
		if string(got) != "payload" {
			t.Fatalf("wrote %q, want payload", got)
		}
	case <-time.After(time.Second):
		t.Fatal("WriteMessage was never called")
	}

	evt, err := events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvSent || evt.MsgID != "msg-1" {
		t.Fatalf("got %+v, want EvSent for msg-1", evt)
	}
}

func TestReadLoopEmitsBytesReceivedThenDisconnectedOnError(t *testing.T) {
	conn := newFakeConn()
	tr, events := newTestTransport(t, fakeDialer{conn: conn})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.handleConnect(ctx, "wss://relay.example")
	if _, err := events.Pop(ctx); err != nil {
		t.Fatalf("Pop (connected): %v", err)
	}

	conn.reads <- []byte(`["EOSE","sub-1"]`)
	evt, err := events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvBytesReceived {
		t.Fatalf("Kind = %v, want EvBytesReceived", evt.Kind)
	}

	close(conn.reads)
	evt, err = events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvDisconnected {
		t.Fatalf("Kind = %v, want EvDisconnected", evt.Kind)
	}
	if tr.State() != StateDisconnected {
		t.Fatalf("State = %v, want StateDisconnected", tr.State())
	}
}

func TestHandleDisconnectClosesConnectionAndEmitsEvent(t *testing.T) {
	conn := newFakeConn()
	tr, events := newTestTransport(t, fakeDialer{conn: conn})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.handleConnect(ctx, "wss://relay.example")
	if _, err := events.Pop(ctx); err != nil {
		t.Fatalf("Pop (connected): %v", err)
	}

	tr.handleDisconnect()

	evt, err := events.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if evt.Kind != EvDisconnected {
		t.Fatalf("Kind = %v, want EvDisconnected", evt.Kind)
	}
	select {
	case <-conn.closed:
	default:
		t.Fatal("connection was not closed")
	}
}
