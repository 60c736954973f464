// Package orchestrator implements session_orchestrator (spec.md §4.6),
// the central reducer: it consumes one inbox whose value type is the
// union of user commands and transport events, dispatches by variant to
// a private handler, and the handlers are the only code that calls both
// the signal_bridge and the transport. Grounded on the teacher's
// internal/services/queue_service.go dispatch loop (now removed) and,
// for the handler contracts themselves, on
// _examples/original_source/lib/core/include/core/session_orchestrator.hpp.
package orchestrator

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/monitor"
	"github.com/dustingooding/radix-relay/internal/presentation"
	"github.com/dustingooding/radix-relay/internal/queue"
	"github.com/dustingooding/radix-relay/internal/signalbridge"
	"github.com/dustingooding/radix-relay/internal/tracker"
	"github.com/dustingooding/radix-relay/internal/transport"
	"github.com/dustingooding/radix-relay/internal/wire"

	"github.com/oklog/ulid/v2"
)

// ProtocolVersion is the radix_version tag this node stamps on every
// event it signs (spec.md §6).
const ProtocolVersion = "0.4.0"

// defaultAwaitTimeout is the request_tracker deadline for OK/EOSE
// correlation (spec.md §4.6, §5: "default 15s for OK and EOSE
// correlation").
const defaultAwaitTimeout = 15 * time.Second

// CommandKind tags a user Command's variant (spec.md §4.6).
type CommandKind int

const (
	CmdSend CommandKind = iota
	CmdPublishIdentity
	CmdUnpublishIdentity
	CmdTrust
	CmdSubscribe
	CmdSubscribeIdentities
	CmdSubscribeMessages
	CmdConnect
)

// Command is a user command pushed by command_handler onto the
// orchestrator's inbox.
type Command struct {
	Kind CommandKind

	Peer    string // Send, Trust
	Message string // Send

	Alias string // Trust

	ReqJSON string // Subscribe

	URL string // Connect
}

// InputKind tags whether an Input is a user Command or a transport.Event.
type InputKind int

const (
	InputCommand InputKind = iota
	InputTransportEvent
)

// Input is the orchestrator inbox's value type: the union of user
// commands and transport events (spec.md §4.6).
type Input struct {
	Kind      InputKind
	Command   Command
	Transport transport.Event
}

// Orchestrator is the reducer. It owns no mutable crypto state; all of
// that lives behind the bridge (spec.md §3 "Ownership summary").
type Orchestrator struct {
	log     *logging.Logger
	bridge  *signalbridge.Bridge
	tracker *tracker.Tracker
	monitor *monitor.Monitor

	inbox             *queue.Queue[Input]
	transportInbox    *queue.Queue[transport.Command]
	presentationQueue *queue.Queue[presentation.Event]
}

// New creates an Orchestrator wired to the given bridge, transport
// command inbox, and presentation output queue.
func New(
	bridge *signalbridge.Bridge,
	transportInbox *queue.Queue[transport.Command],
	presentationQueue *queue.Queue[presentation.Event],
	mon *monitor.Monitor,
) *Orchestrator {
	return &Orchestrator{
		log:               logging.New("orchestrator"),
		bridge:            bridge,
		tracker:           tracker.New(),
		monitor:           mon,
		inbox:             queue.New[Input](256),
		transportInbox:    transportInbox,
		presentationQueue: presentationQueue,
	}
}

// Inbox returns the queue callers (command_handler, the transport
// event-forwarding goroutine) push Inputs onto.
func (o *Orchestrator) Inbox() *queue.Queue[Input] { return o.inbox }

// PresentationQueue returns the queue the presentation-forwarding
// goroutine drains (internal/app).
func (o *Orchestrator) PresentationQueue() *queue.Queue[presentation.Event] { return o.presentationQueue }

// CancelAll cancels every pending awaitOK/awaitEOSE wait immediately
// instead of letting each block until its own timeout. Call during
// shutdown (spec.md §4.4, §5).
func (o *Orchestrator) CancelAll() { o.tracker.CancelAll() }

// Handle dispatches a single Input to its private handler. Error
// isolation (spec.md §4.6): a parse failure or decrypt failure for one
// event must not terminate the loop; every handler catches and logs
// internally instead of returning an error that would stop
// internal/processor.Run.
func (o *Orchestrator) Handle(ctx context.Context, in Input) error {
	switch in.Kind {
	case InputCommand:
		o.handleCommand(ctx, in.Command)
	case InputTransportEvent:
		o.handleTransportEvent(ctx, in.Transport)
	}
	return nil
}

func (o *Orchestrator) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdSend:
		o.onSend(ctx, cmd.Peer, cmd.Message)
	case CmdPublishIdentity:
		o.onPublishIdentity(ctx)
	case CmdUnpublishIdentity:
		o.onUnpublishIdentity(ctx)
	case CmdTrust:
		o.onTrust(cmd.Peer, cmd.Alias)
	case CmdSubscribe:
		o.onSubscribe(ctx, cmd.ReqJSON)
	case CmdSubscribeIdentities:
		o.onSubscribeIdentities(ctx)
	case CmdSubscribeMessages:
		o.onSubscribeMessages(ctx)
	case CmdConnect:
		o.transportInbox.Push(transport.Command{Kind: transport.CmdConnect, URL: cmd.URL})
	}
}

// onSend encrypts via the bridge, builds a bus event, pushes it to the
// transport, and spawns a task awaiting the relay's OK (spec.md §4.6).
func (o *Orchestrator) onSend(ctx context.Context, peer, message string) {
	ciphertext, err := o.bridge.EncryptMessage(peer, []byte(message))
	if err != nil {
		o.log.Error("encrypt for %s: %v", peer, err)
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvMessageSent, Peer: peer, Accepted: false})
		return
	}

	eventJSON, err := o.bridge.CreateAndSignEncryptedMessage(peer, hex.EncodeToString(ciphertext), uint64(time.Now().Unix()), ProtocolVersion)
	if err != nil {
		o.log.Error("sign encrypted message for %s: %v", peer, err)
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvMessageSent, Peer: peer, Accepted: false})
		return
	}

	eventID, data, err := wireEventIDAndBytes(eventJSON)
	if err != nil {
		o.log.Error("prepare send frame for %s: %v", peer, err)
		return
	}

	o.transportInbox.Push(transport.Command{Kind: transport.CmdSend, MsgID: eventID, Bytes: data})

	go o.awaitOK(ctx, eventID, func(accepted bool) {
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvMessageSent, Peer: peer, Accepted: accepted})
	})
}

func (o *Orchestrator) onPublishIdentity(ctx context.Context) {
	announcement, oneTimeID, signedID, pqID, err := o.bridge.GeneratePrekeyBundleAnnouncement(ProtocolVersion)
	if err != nil {
		o.log.Error("generate bundle announcement: %v", err)
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvBundlePublished, Accepted: false})
		return
	}
	o.publishBundle(ctx, announcement, oneTimeID, signedID, pqID)
}

func (o *Orchestrator) onUnpublishIdentity(ctx context.Context) {
	announcement, err := o.bridge.GenerateEmptyBundleAnnouncement(ProtocolVersion)
	if err != nil {
		o.log.Error("generate empty bundle announcement: %v", err)
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvBundlePublished, Accepted: false})
		return
	}
	o.publishBundle(ctx, announcement, 0, 0, 0)
}

func (o *Orchestrator) publishBundle(ctx context.Context, announcementJSON string, oneTimeID, signedID, pqID int64) {
	eventID, data, err := wireEventIDAndBytes(announcementJSON)
	if err != nil {
		o.log.Error("prepare publish frame: %v", err)
		return
	}
	o.transportInbox.Push(transport.Command{Kind: transport.CmdSend, MsgID: eventID, Bytes: data})

	go o.awaitOK(ctx, eventID, func(accepted bool) {
		if accepted {
			if err := o.bridge.RecordPublishedBundle(oneTimeID, signedID, pqID); err != nil {
				o.log.Error("record published bundle: %v", err)
			}
		}
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvBundlePublished, Accepted: accepted})
	})
}

func (o *Orchestrator) onTrust(peer, alias string) {
	if err := o.bridge.AssignContactAlias(peer, alias); err != nil {
		o.log.Error("assign alias for %s: %v", peer, err)
	}
}

func (o *Orchestrator) onSubscribe(ctx context.Context, reqJSON string) {
	subID := extractSubscriptionID(reqJSON)
	o.transportInbox.Push(transport.Command{Kind: transport.CmdSend, MsgID: subID, Bytes: []byte(reqJSON)})
	go o.awaitEOSE(ctx, subID)
}

func (o *Orchestrator) onSubscribeIdentities(ctx context.Context) {
	subID := newSubscriptionID()
	reqJSON, err := o.bridge.CreateIdentitiesSubscription(subID)
	if err != nil {
		o.log.Error("build identities subscription: %v", err)
		return
	}
	o.transportInbox.Push(transport.Command{Kind: transport.CmdSend, MsgID: subID, Bytes: []byte(reqJSON)})
	go o.awaitEOSE(ctx, subID)
}

func (o *Orchestrator) onSubscribeMessages(ctx context.Context) {
	subID := newSubscriptionID()
	reqJSON, err := o.bridge.CreateSubscriptionForSelf(subID, nil)
	if err != nil {
		o.log.Error("build self subscription: %v", err)
		return
	}
	o.transportInbox.Push(transport.Command{Kind: transport.CmdSend, MsgID: subID, Bytes: []byte(reqJSON)})
	go o.awaitEOSE(ctx, subID)
}

func (o *Orchestrator) awaitOK(ctx context.Context, eventID string, onResult func(accepted bool)) {
	resp, err := o.tracker.Await(ctx, eventID, defaultAwaitTimeout)
	if err != nil {
		onResult(false)
		return
	}
	ok, _ := resp.(wire.OK)
	onResult(ok.Accepted)
}

func (o *Orchestrator) awaitEOSE(ctx context.Context, subID string) {
	_, err := o.tracker.Await(ctx, subID, defaultAwaitTimeout)
	o.presentationQueue.Push(presentation.Event{Kind: presentation.EvSubscriptionEstablished, Peer: subID, Accepted: err == nil})
}

// handleTransportEvent reacts to an event emitted by internal/transport
// (spec.md §4.6).
func (o *Orchestrator) handleTransportEvent(ctx context.Context, evt transport.Event) {
	switch evt.Kind {
	case transport.EvConnected:
		o.monitor.Observe(monitor.KindInternet, evt)
		o.onSubscribeIdentities(ctx)
		o.onSubscribeMessages(ctx)
	case transport.EvBytesReceived:
		o.handleBytesReceived(ctx, evt.Bytes)
	case transport.EvSent, transport.EvSendFailed, transport.EvConnectFailed, transport.EvDisconnected:
		o.monitor.Observe(monitor.KindInternet, evt)
	}
}

func (o *Orchestrator) handleBytesReceived(ctx context.Context, data []byte) {
	frame := wire.ParseFrame(data)
	switch frame.Kind {
	case wire.FrameOK:
		o.tracker.Resolve(frame.OK.EventID, frame.OK)
		o.log.Debug("OK %s accepted=%v %s", frame.OK.EventID, frame.OK.Accepted, frame.OK.Message)
	case wire.FrameEOSE:
		o.tracker.Resolve(frame.EOSE.SubscriptionID, frame.EOSE)
		o.log.Debug("EOSE %s", frame.EOSE.SubscriptionID)
	case wire.FrameEvent:
		o.handleEvent(frame.Event.Data)
	case wire.FrameUnknown:
		o.log.Debug("unknown frame: %s", frame.Raw)
	case wire.FrameInvalid:
		o.log.Warn("invalid frame: %s", frame.Raw)
	}
}

func (o *Orchestrator) handleEvent(data wire.EventData) {
	switch data.Kind {
	case wire.KindEncryptedMessage:
		o.handleEncryptedMessage(data)
	case wire.KindBundleAnnouncement:
		o.handleBundleAnnouncement(data)
	case wire.KindIdentityAnnouncement, wire.KindSessionRequest, wire.KindNodeStatus:
		o.log.Debug("received kind %d from %s, no presentation emission", data.Kind, data.Pubkey)
	default:
		o.log.Debug("unhandled kind %d", data.Kind)
	}
}

func (o *Orchestrator) handleEncryptedMessage(data wire.EventData) {
	ciphertext, err := hex.DecodeString(data.Content)
	if err != nil {
		o.log.Warn("malformed ciphertext from %s: %v", data.Pubkey, err)
		return
	}

	result, err := o.bridge.DecryptMessage(data.Pubkey, ciphertext)
	if err != nil {
		o.log.Warn("decrypt from %s: %v", data.Pubkey, err)
		return
	}

	if err := o.bridge.UpdateLastMessageTimestamp(data.CreatedAt); err != nil {
		o.log.Error("update last message timestamp: %v", err)
	}

	contact, err := o.bridge.LookupContact(data.Pubkey)
	peer := data.Pubkey
	contactRDX := data.Pubkey
	if err == nil && contact != nil {
		contactRDX = contact.RDX
		if contact.Alias != "" {
			peer = contact.Alias
		} else {
			peer = contact.RDX
		}
	}

	o.presentationQueue.Push(presentation.Event{
		Kind:    presentation.EvMessageReceived,
		Peer:    peer,
		Content: string(result.Plaintext),
		Contact: contactRDX,
	})

	if result.ShouldRepublishBundle {
		o.onPublishIdentity(context.Background())
	}
}

func (o *Orchestrator) handleBundleAnnouncement(data wire.EventData) {
	version, _ := data.Tag("radix_version")
	if !versionAtLeast(version, wire.BundleAnnouncementMinimumVersion) {
		o.log.Debug("dropping bundle announcement from %s: incompatible version %s", data.Pubkey, version)
		return
	}

	if data.Content == "" {
		o.presentationQueue.Push(presentation.Event{Kind: presentation.EvBundleAnnouncementRemoved, Peer: data.Pubkey})
		return
	}
	o.presentationQueue.Push(presentation.Event{Kind: presentation.EvBundleAnnouncementReceived, Peer: data.Pubkey, Content: data.Content})
}

func wireEventIDAndBytes(eventJSON string) (eventID string, data []byte, err error) {
	var event wire.EventData
	if err := jsonUnmarshal(eventJSON, &event); err != nil {
		return "", nil, fmt.Errorf("parse signed event: %w", err)
	}
	data, err = wire.SerializeEvent(event, "")
	if err != nil {
		return "", nil, err
	}
	return event.ID, data, nil
}

func extractSubscriptionID(reqJSON string) string {
	var arr []any
	if err := jsonUnmarshal(reqJSON, &arr); err != nil || len(arr) < 2 {
		return newSubscriptionID()
	}
	if id, ok := arr[1].(string); ok {
		return id
	}
	return newSubscriptionID()
}

func newSubscriptionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy()).String()
}
