// Package app wires every processor in this module into one running
// node: the identity store, the signal_bridge facade, the transport,
// the session orchestrator, the connection monitor, the command parser
// and handler, and the presentation pipeline, connected by the typed
// queues spec.md §2 calls for. Grounded on the teacher's app.go, which
// plays the same role for pollis (a single struct holding every
// service, built up field by field in a startup method), generalized
// from Wails lifecycle hooks to a plain Run/Shutdown pair since this
// module has no desktop shell.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dustingooding/radix-relay/internal/command"
	"github.com/dustingooding/radix-relay/internal/config"
	"github.com/dustingooding/radix-relay/internal/crypto"
	"github.com/dustingooding/radix-relay/internal/keystore"
	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/monitor"
	"github.com/dustingooding/radix-relay/internal/orchestrator"
	"github.com/dustingooding/radix-relay/internal/presentation"
	"github.com/dustingooding/radix-relay/internal/processor"
	"github.com/dustingooding/radix-relay/internal/queue"
	"github.com/dustingooding/radix-relay/internal/signalbridge"
	"github.com/dustingooding/radix-relay/internal/store"
	"github.com/dustingooding/radix-relay/internal/transport"
)

// dbKeyName is the keyring entry holding the key that guards the
// identity database's private key column.
const dbKeyName = "identity-db-key"

// Node is one running instance of the core described in spec.md §2: a
// set of single-purpose processors connected by typed bounded queues,
// with exactly one scheduler driving each processor's loop as its own
// goroutine (the Go analog of the spec's single cooperative event loop;
// spec.md §5 notes "any scheme that preserves the ownership model and
// the serialization invariants is acceptable" for languages that need
// interior mutability for shared references).
type Node struct {
	cfg *config.Config
	log *logging.Logger

	Store        *store.Store
	Bridge       *signalbridge.Bridge
	Transport    *transport.Transport
	Orchestrator *orchestrator.Orchestrator
	Monitor      *monitor.Monitor

	ChatContext *presentation.ChatContext
	Filter      *presentation.Filter
	Parser      *command.Parser
	Handler     *command.Handler

	Display *queue.Queue[presentation.DisplayMessage]

	transportEvents *queue.Queue[transport.Event]

	wg sync.WaitGroup
}

// New opens the identity store and constructs every processor, but
// starts none of their run loops; call Run to start them.
func New(cfg *config.Config) (*Node, error) {
	logging.SetVerbose(cfg.Verbose)
	log := logging.New("app")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dbKey, err := loadOrCreateDBKey(filepath.Dir(cfg.DBPath))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load db key: %w", err)
	}
	st.SetDBKey(dbKey)

	bridge, err := signalbridge.New(st, logging.New("signalbridge"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init signal bridge: %w", err)
	}

	transportEvents := queue.New[transport.Event](256)
	trans := transport.New(transportEvents)

	presentationQueue := queue.New[presentation.Event](256)
	mon := monitor.New()

	orch := orchestrator.New(bridge, trans.Inbox(), presentationQueue, mon)

	chatCtx := presentation.NewChatContext()
	filter := presentation.NewFilter(chatCtx)
	parser := command.NewParser(chatCtx)

	display := queue.New[presentation.DisplayMessage](256)
	handler := command.NewHandler(orch, bridge, mon, display, trans.Inbox())

	return &Node{
		cfg:             cfg,
		log:             log,
		Store:           st,
		Bridge:          bridge,
		Transport:       trans,
		Orchestrator:    orch,
		Monitor:         mon,
		ChatContext:     chatCtx,
		Filter:          filter,
		Parser:          parser,
		Handler:         handler,
		Display:         display,
		transportEvents: transportEvents,
	}, nil
}

// Run starts every processor's loop on its own goroutine and returns
// immediately; the node keeps running until ctx is cancelled or
// Shutdown is called. Each loop follows the same ctx/cancel/queue-pop
// shape as internal/processor.Run (spec.md §5's "every processor
// accepts a cancellation token").
func (n *Node) Run(ctx context.Context) {
	n.spawn(func() error { return n.Transport.Run(ctx) })
	n.spawn(func() error {
		return processor.Run(ctx, logging.New("orchestrator-loop"), n.Orchestrator.Inbox(), n.Orchestrator.Handle)
	})
	n.spawn(func() error { return n.forwardTransportEvents(ctx) })
	n.spawn(func() error { return n.forwardPresentation(ctx) })
}

func (n *Node) spawn(task func() error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := task(); err != nil {
			n.log.Error("processor exited: %v", err)
		}
	}()
}

// forwardTransportEvents relays transport.Events onto the
// orchestrator's inbox as InputTransportEvent (spec.md §2's "transport
// ... emits transport events onto the session orchestrator's inbox").
func (n *Node) forwardTransportEvents(ctx context.Context) error {
	for {
		evt, err := n.transportEvents.Pop(ctx)
		if err != nil {
			return nil
		}
		n.Orchestrator.Inbox().Push(orchestrator.Input{Kind: orchestrator.InputTransportEvent, Transport: evt})
	}
}

// forwardPresentation drains the orchestrator's presentation queue
// through presentation_handler and display_filter onto the Display
// queue a UI front end consumes (spec.md §4.8).
func (n *Node) forwardPresentation(ctx context.Context) error {
	presentationQueue := n.Orchestrator.PresentationQueue()
	for {
		evt, err := presentationQueue.Pop(ctx)
		if err != nil {
			return nil
		}
		msg, ok := presentation.Handle(evt)
		if !ok {
			continue
		}
		if n.Filter.Allow(msg) {
			n.Display.Push(msg)
		}
	}
}

// Connect pushes an initial connect command to the transport using the
// configured relay URL.
func (n *Node) Connect() {
	n.Transport.Inbox().Push(transport.Command{Kind: transport.CmdConnect, URL: n.cfg.RelayURL})
}

// Shutdown runs spec.md §5's shutdown sequence: (1) push a top-level
// disconnect to the transport, (2) cancel every queue, (3) let every
// task observe cancellation and return, (4) close the store once all
// loops have drained.
func (n *Node) Shutdown() {
	n.Transport.Shutdown()
	n.Orchestrator.Inbox().Cancel()
	n.transportEvents.Cancel()
	n.Orchestrator.PresentationQueue().Cancel()
	n.Display.Cancel()
	n.Orchestrator.CancelAll()

	n.wg.Wait()

	if err := n.Store.Close(); err != nil {
		n.log.Error("close store: %v", err)
	}
}

// loadOrCreateDBKey guards the identity database's at-rest encryption
// key in the OS keychain (internal/keystore), generating one on first
// run. dataDir is the directory the identity database itself lives in.
func loadOrCreateDBKey(dataDir string) ([]byte, error) {
	ks, err := keystore.New("radix-relay", dataDir)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	existing, err := ks.Get(dbKeyName)
	if err != nil {
		return nil, fmt.Errorf("get db key: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate db key: %w", err)
	}
	if err := ks.Store(dbKeyName, key); err != nil {
		return nil, fmt.Errorf("store db key: %w", err)
	}
	return key, nil
}
