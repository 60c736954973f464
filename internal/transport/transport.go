// Package transport implements the single-websocket transport of
// spec.md §4.5: it owns one websocket_stream, consumes transport
// commands (connect / send / disconnect), and emits transport events.
// The state machine, ordering rules (T1-T4), and error-isolation policy
// follow spec.md §4.5 exactly. Grounded on the teacher's connection
// lifecycle style in internal/services/ably_realtime_service.go
// (connect/reconnect/state-tracking over a pub/sub channel) and
// internal/services/network_service.go (periodic connectivity
// awareness), adapted here to a raw gorilla/websocket client since this
// module's relay is reached directly over WebSocket rather than through
// a managed pub/sub SDK.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/queue"

	"github.com/gorilla/websocket"
)

// State is the transport's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Command is the tagged union of inputs the transport's run loop reacts to.
type Command struct {
	Kind CommandKind
	URL  string // Connect
	// Send
	MsgID string
	Bytes []byte
}

// CommandKind tags a Command's variant.
type CommandKind int

const (
	CmdConnect CommandKind = iota
	CmdSend
	CmdDisconnect
)

// Event is the tagged union of outputs the transport emits onto the
// session orchestrator's inbox.
type Event struct {
	Kind EventKind

	URL   string // Connected, ConnectFailed
	Error string // ConnectFailed, SendFailed, Disconnected

	MsgID string // Sent, SendFailed
	Bytes []byte // BytesReceived
}

// EventKind tags an Event's variant.
type EventKind int

const (
	EvConnected EventKind = iota
	EvConnectFailed
	EvBytesReceived
	EvSent
	EvSendFailed
	EvDisconnected
)

// dialer is the subset of gorilla/websocket's client entry point this
// package depends on, so tests can substitute a fake.
type dialer interface {
	Dial(url string, header map[string][]string) (wsConn, *dialResponse, error)
}

type dialResponse struct{}

// wsConn is the subset of *websocket.Conn the transport uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type gorillaDialer struct{}

func (gorillaDialer) Dial(rawURL string, header map[string][]string) (wsConn, *dialResponse, error) {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, header)
	if err != nil {
		return nil, nil, err
	}
	return conn, &dialResponse{}, nil
}

// Transport owns one websocket connection and runs the state machine of
// spec.md §4.5.
type Transport struct {
	log    *logging.Logger
	dial   dialer
	inbox  *queue.Queue[Command]
	events *queue.Queue[Event]

	mu    sync.Mutex
	state State
	conn  wsConn
}

// New creates a Transport. events is the queue this transport pushes
// emitted Events onto (the session orchestrator's inbox, wrapped).
func New(events *queue.Queue[Event]) *Transport {
	return &Transport{
		log:    logging.New("transport"),
		dial:   gorillaDialer{},
		inbox:  queue.New[Command](64),
		events: events,
		state:  StateDisconnected,
	}
}

// Inbox returns the queue callers push Commands onto.
func (t *Transport) Inbox() *queue.Queue[Command] { return t.inbox }

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run executes the transport's command loop until ctx is cancelled or
// the inbox is closed. It is meant to run in its own goroutine, wired
// up the way standard_processor wires every other processor
// (internal/processor).
func (t *Transport) Run(ctx context.Context) error {
	for {
		cmd, err := t.inbox.Pop(ctx)
		if err != nil {
			return err
		}
		t.handle(ctx, cmd)
	}
}

func (t *Transport) handle(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdConnect:
		t.handleConnect(ctx, cmd.URL)
	case CmdSend:
		t.handleSend(cmd.MsgID, cmd.Bytes)
	case CmdDisconnect:
		t.handleDisconnect()
	}
}

// handleConnect implements T2 (secure schemes only) and the
// Disconnected -> Connecting -> {Connected, Disconnected} transitions.
func (t *Transport) handleConnect(ctx context.Context, rawURL string) {
	t.mu.Lock()
	t.state = StateConnecting
	t.mu.Unlock()

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme != "wss" {
		t.log.Warn("rejecting connect to %q: insecure or invalid scheme", rawURL)
		t.fail(rawURL, fmt.Errorf("only wss:// URLs are accepted"))
		return
	}

	conn, _, err := t.dial.Dial(rawURL, nil)
	if err != nil {
		t.fail(rawURL, err)
		return
	}

	t.mu.Lock()
	t.conn = conn
	t.state = StateConnected
	t.mu.Unlock()

	t.events.Push(Event{Kind: EvConnected, URL: rawURL})

	go t.readLoop(ctx, conn)
}

func (t *Transport) fail(rawURL string, err error) {
	t.mu.Lock()
	t.state = StateDisconnected
	t.mu.Unlock()
	t.events.Push(Event{Kind: EvConnectFailed, URL: rawURL, Error: err.Error()})
}

// readLoop is the only reader of this connection (T1: exactly one read
// in flight at a time; the next read is issued only after the previous
// one's handler has run, which this sequential for-loop guarantees).
func (t *Transport) readLoop(ctx context.Context, conn wsConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			same := t.conn == conn
			if same {
				t.state = StateDisconnected
				t.conn = nil
			}
			t.mu.Unlock()
			if same {
				t.events.Push(Event{Kind: EvDisconnected, Error: err.Error()})
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		t.events.Push(Event{Kind: EvBytesReceived, Bytes: data})
	}
}

func (t *Transport) handleSend(msgID string, data []byte) {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected
	t.mu.Unlock()

	// T4: a send while Disconnected fails immediately without queueing.
	if !connected || conn == nil {
		t.events.Push(Event{Kind: EvSendFailed, MsgID: msgID, Error: "Not connected"})
		return
	}

	// T3: bytes are handed to the write call and released once it returns.
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.events.Push(Event{Kind: EvSendFailed, MsgID: msgID, Error: err.Error()})
		return
	}
	t.events.Push(Event{Kind: EvSent, MsgID: msgID})
}

func (t *Transport) handleDisconnect() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	t.events.Push(Event{Kind: EvDisconnected})
}

// Shutdown pushes a top-level disconnect and cancels the inbox, step (1)
// and part of step (2) of spec.md §5's shutdown sequence.
func (t *Transport) Shutdown() {
	t.inbox.Push(Command{Kind: CmdDisconnect})
	time.AfterFunc(100*time.Millisecond, t.inbox.Cancel)
}
