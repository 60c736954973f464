package orchestrator_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/monitor"
	"github.com/dustingooding/radix-relay/internal/orchestrator"
	"github.com/dustingooding/radix-relay/internal/presentation"
	"github.com/dustingooding/radix-relay/internal/queue"
	"github.com/dustingooding/radix-relay/internal/signalbridge"
	"github.com/dustingooding/radix-relay/internal/store"
	"github.com/dustingooding/radix-relay/internal/transport"
	"github.com/dustingooding/radix-relay/internal/wire"
)

func newTestOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *queue.Queue[transport.Command], *queue.Queue[presentation.Event]) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bridge, err := signalbridge.New(st, logging.New("test"))
	if err != nil {
		t.Fatalf("signalbridge.New: %v", err)
	}

	transportInbox := queue.New[transport.Command](8)
	presentationQueue := queue.New[presentation.Event](8)
	orch := orchestrator.New(bridge, transportInbox, presentationQueue, monitor.New())
	return orch, transportInbox, presentationQueue
}

func popPresentation(t *testing.T, q *queue.Queue[presentation.Event]) presentation.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop presentation event: %v", err)
	}
	return evt
}

// TestSendWithNoSessionFailsAndReportsUnaccepted exercises onSend's
// failure path: without an established session, EncryptMessage errors
// and the orchestrator must emit a negative MessageSent event rather
// than panicking or silently dropping it.
func TestSendWithNoSessionFailsAndReportsUnaccepted(t *testing.T) {
	orch, _, presentationQueue := newTestOrchestrator(t)

	orch.Inbox().Push(orchestrator.Input{
		Kind:    orchestrator.InputCommand,
		Command: orchestrator.Command{Kind: orchestrator.CmdSend, Peer: "RDX:unknown", Message: "hi"},
	})

	ctx := context.Background()
	in, err := orch.Inbox().Pop(ctx)
	if err != nil {
		t.Fatalf("Pop inbox: %v", err)
	}
	if err := orch.Handle(ctx, in); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	evt := popPresentation(t, presentationQueue)
	if evt.Kind != presentation.EvMessageSent || evt.Accepted {
		t.Fatalf("got %+v, want EvMessageSent with Accepted=false", evt)
	}
}

// TestBundleAnnouncementBelowMinimumVersionIsDropped exercises the
// semver gate of spec.md §4.6: an incompatible radix_version tag must
// produce no presentation emission at all.
func TestBundleAnnouncementBelowMinimumVersionIsDropped(t *testing.T) {
	orch, _, presentationQueue := newTestOrchestrator(t)

	event := wire.NewBundleAnnouncement("deadbeef", 1700000000, "aabbcc", "0.3.0")
	eventJSON, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	frame, err := json.Marshal([]any{"EVENT", json.RawMessage(eventJSON)})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	ctx := context.Background()
	err = orch.Handle(ctx, orchestrator.Input{
		Kind:      orchestrator.InputTransportEvent,
		Transport: transport.Event{Kind: transport.EvBytesReceived, Bytes: frame},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if _, ok := presentationQueue.TryPop(); ok {
		t.Fatal("expected no presentation event for an incompatible bundle announcement version")
	}
}

// TestBundleAnnouncementAtMinimumVersionIsAccepted is the inverse: a
// version exactly at the minimum must pass the gate and reach
// presentation_handler.
func TestBundleAnnouncementAtMinimumVersionIsAccepted(t *testing.T) {
	orch, _, presentationQueue := newTestOrchestrator(t)

	event := wire.NewBundleAnnouncement("deadbeef", 1700000000, "aabbcc", wire.BundleAnnouncementMinimumVersion)
	eventJSON, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	frame, err := json.Marshal([]any{"EVENT", json.RawMessage(eventJSON)})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	ctx := context.Background()
	err = orch.Handle(ctx, orchestrator.Input{
		Kind:      orchestrator.InputTransportEvent,
		Transport: transport.Event{Kind: transport.EvBytesReceived, Bytes: frame},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	evt := popPresentation(t, presentationQueue)
	if evt.Kind != presentation.EvBundleAnnouncementReceived {
		t.Fatalf("Kind = %v, want EvBundleAnnouncementReceived", evt.Kind)
	}
}

// TestCancelAllUnblocksPendingAwaitImmediately covers the shutdown
// contract of spec.md §4.4/§5: an in-flight awaitEOSE must observe
// cancellation right away instead of blocking until its own timeout.
func TestCancelAllUnblocksPendingAwaitImmediately(t *testing.T) {
	orch, transportInbox, presentationQueue := newTestOrchestrator(t)

	ctx := context.Background()
	err := orch.Handle(ctx, orchestrator.Input{
		Kind:    orchestrator.InputCommand,
		Command: orchestrator.Command{Kind: orchestrator.CmdSubscribeMessages},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := transportInbox.TryPop(); !ok {
		t.Fatal("expected a transport command for the subscription request")
	}

	orch.CancelAll()

	deadline := time.After(time.Second)
	select {
	case evt := <-waitForPresentation(presentationQueue):
		if evt.Kind != presentation.EvSubscriptionEstablished || evt.Accepted {
			t.Fatalf("got %+v, want a negative EvSubscriptionEstablished", evt)
		}
	case <-deadline:
		t.Fatal("CancelAll did not unblock the pending await within 1s")
	}
}

func waitForPresentation(q *queue.Queue[presentation.Event]) <-chan presentation.Event {
	ch := make(chan presentation.Event, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		evt, err := q.Pop(ctx)
		if err == nil {
			ch <- evt
		}
	}()
	return ch
}

// TestConnectCommandPushesTransportConnect exercises the simple
// pass-through Command -> transport.Command mapping.
func TestConnectCommandPushesTransportConnect(t *testing.T) {
	orch, transportInbox, _ := newTestOrchestrator(t)

	ctx := context.Background()
	err := orch.Handle(ctx, orchestrator.Input{
		Kind:    orchestrator.InputCommand,
		Command: orchestrator.Command{Kind: orchestrator.CmdConnect, URL: "wss://relay.example/ws"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	cmd, ok := transportInbox.TryPop()
	if !ok {
		t.Fatal("expected a transport command")
	}
	if cmd.Kind != transport.CmdConnect || cmd.URL != "wss://relay.example/ws" {
		t.Fatalf("got %+v", cmd)
	}
}
