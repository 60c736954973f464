package command

import (
	"fmt"

	"github.com/dustingooding/radix-relay/internal/monitor"
	"github.com/dustingooding/radix-relay/internal/orchestrator"
	"github.com/dustingooding/radix-relay/internal/presentation"
	"github.com/dustingooding/radix-relay/internal/queue"
	"github.com/dustingooding/radix-relay/internal/signalbridge"
	"github.com/dustingooding/radix-relay/internal/transport"
)

// Handler receives a parsed Command and (a) emits a textual
// acknowledgement onto the display queue and (b) pushes a deeper
// command onto the orchestrator inbox or transport inbox, or queries the
// connection monitor directly, as appropriate (spec.md §4.7). It never calls
// the signal_bridge for anything that needs a network round-trip; those
// calls belong to the orchestrator.
type Handler struct {
	orch           *orchestrator.Orchestrator
	bridge         *signalbridge.Bridge
	monitor        *monitor.Monitor
	display        *queue.Queue[presentation.DisplayMessage]
	transportInbox *queue.Queue[transport.Command]
}

// NewHandler creates a Handler wired to the running node's components.
func NewHandler(
	orch *orchestrator.Orchestrator,
	bridge *signalbridge.Bridge,
	mon *monitor.Monitor,
	display *queue.Queue[presentation.DisplayMessage],
	transportInbox *queue.Queue[transport.Command],
) *Handler {
	return &Handler{orch: orch, bridge: bridge, monitor: mon, display: display, transportInbox: transportInbox}
}

func (h *Handler) feedback(text string) {
	h.display.Push(presentation.DisplayMessage{Category: presentation.CategoryCommandFeedback, Text: text})
}

// Handle dispatches one parsed Command.
func (h *Handler) Handle(cmd Command) {
	switch cmd.Kind {
	case KindSend:
		h.orch.Inbox().Push(orchestrator.Input{
			Kind:    orchestrator.InputCommand,
			Command: orchestrator.Command{Kind: orchestrator.CmdSend, Peer: cmd.Peer, Message: cmd.Message},
		})
	case KindChat:
		h.feedback(fmt.Sprintf("Entered chat with %s", cmd.Peer))
	case KindLeave:
		h.feedback("Left chat mode")
	case KindHelp:
		h.feedback(helpText)
	case KindStatus:
		h.feedback(h.monitor.QueryStatus())
	case KindPeers:
		h.handlePeers()
	case KindSessions:
		h.handleSessions()
	case KindConnect:
		h.orch.Inbox().Push(orchestrator.Input{
			Kind:    orchestrator.InputCommand,
			Command: orchestrator.Command{Kind: orchestrator.CmdConnect, URL: cmd.URL},
		})
		h.feedback(fmt.Sprintf("Connecting to %s", cmd.URL))
	case KindDisconnect:
		h.transportInbox.Push(transport.Command{Kind: transport.CmdDisconnect})
		h.feedback("Disconnecting")
	case KindIdentities:
		h.orch.Inbox().Push(orchestrator.Input{
			Kind:    orchestrator.InputCommand,
			Command: orchestrator.Command{Kind: orchestrator.CmdSubscribeIdentities},
		})
	case KindTrust:
		h.orch.Inbox().Push(orchestrator.Input{
			Kind:    orchestrator.InputCommand,
			Command: orchestrator.Command{Kind: orchestrator.CmdTrust, Peer: cmd.Peer, Alias: cmd.Alias},
		})
		h.feedback(fmt.Sprintf("Trusted %s", cmd.Peer))
	case KindVerify:
		h.handleVerify(cmd.Peer)
	case KindBroadcast:
		h.feedback("Broadcast is not yet supported")
	case KindMode:
		h.feedback(fmt.Sprintf("Mode set to %s", cmd.Mode))
	case KindScan:
		h.feedback("Scan is not yet supported")
	case KindVersion:
		h.feedback(orchestrator.ProtocolVersion)
	case KindPublish:
		h.orch.Inbox().Push(orchestrator.Input{
			Kind:    orchestrator.InputCommand,
			Command: orchestrator.Command{Kind: orchestrator.CmdPublishIdentity},
		})
	case KindUnpublish:
		h.orch.Inbox().Push(orchestrator.Input{
			Kind:    orchestrator.InputCommand,
			Command: orchestrator.Command{Kind: orchestrator.CmdUnpublishIdentity},
		})
	case KindUnknown:
		h.feedback(fmt.Sprintf("Unknown command: %s", cmd.Raw))
	}
}

func (h *Handler) handlePeers() {
	contacts, err := h.bridge.ListContacts()
	if err != nil {
		h.feedback(fmt.Sprintf("Failed to list peers: %v", err))
		return
	}
	if len(contacts) == 0 {
		h.feedback("No peers")
		return
	}
	text := "Peers:"
	for _, c := range contacts {
		name := c.RDX
		if c.Alias != "" {
			name = fmt.Sprintf("%s (%s)", c.Alias, c.RDX)
		}
		text += "\n  " + name
	}
	h.feedback(text)
}

func (h *Handler) handleSessions() {
	contacts, err := h.bridge.ListContacts()
	if err != nil {
		h.feedback(fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	text := "Sessions:"
	count := 0
	for _, c := range contacts {
		if c.HasSession {
			text += "\n  " + c.RDX
			count++
		}
	}
	if count == 0 {
		h.feedback("No active sessions")
		return
	}
	h.feedback(text)
}

func (h *Handler) handleVerify(peer string) {
	contact, err := h.bridge.LookupContact(peer)
	if err != nil {
		h.feedback(fmt.Sprintf("Unknown contact: %s", peer))
		return
	}
	h.feedback(fmt.Sprintf("%s has session=%v", contact.RDX, contact.HasSession))
}

const helpText = `Commands:
  /send <peer> <message>
  /chat <contact>
  /leave
  /status
  /peers
  /sessions
  /connect <url>
  /disconnect
  /identities
  /trust <peer> [alias]
  /verify <peer>
  /broadcast <msg>
  /mode <internet|mesh|hybrid>
  /scan
  /version
  /publish
  /unpublish`
