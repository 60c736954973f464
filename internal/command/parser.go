// Package command implements command_parser and command_handler (spec.md
// §4.7): parsing a raw input line into a tagged command variant, with
// chat-mode rewriting, and turning a parsed command into queue pushes
// plus immediate textual feedback. Grounded on the teacher's
// internal/services/message_service.go dispatch-by-prefix style (now
// removed) and the original's lib/core/include/core/command_parser.hpp
// for the exact rule list and ordering.
package command

import (
	"strings"

	"github.com/dustingooding/radix-relay/internal/presentation"
)

// Kind tags a parsed Command's variant.
type Kind int

const (
	KindSend Kind = iota
	KindChat
	KindLeave
	KindHelp
	KindStatus
	KindPeers
	KindSessions
	KindConnect
	KindDisconnect
	KindIdentities
	KindTrust
	KindVerify
	KindBroadcast
	KindMode
	KindScan
	KindVersion
	KindPublish
	KindUnpublish
	KindUnknown
)

// Command is the parser's output: a tagged variant with only the fields
// relevant to Kind populated.
type Command struct {
	Kind Kind

	Peer    string // Send, Chat, Trust, Verify
	Message string // Send, Broadcast
	Alias   string // Trust
	URL     string // Connect
	Mode    string // Mode
	Raw     string // Unknown: the original input
}

// Parser owns the chat context mutation side effects of entering/leaving
// chat mode (spec.md §4.7: "The parser owns the chat context"). The
// context is shared with presentation.Filter, since spec.md §3 "Chat
// Context" governs both command parsing and display filtering from one
// process-wide value.
type Parser struct {
	ctx *presentation.ChatContext
}

// NewParser creates a Parser backed by ctx.
func NewParser(ctx *presentation.ChatContext) *Parser {
	return &Parser{ctx: ctx}
}

// ActiveChat returns the RDX of the contact currently in chat mode, or
// "" if none.
func (p *Parser) ActiveChat() string {
	return p.ctx.Active()
}

// Parse maps a raw input line to a tagged Command, applying chat-mode
// preprocessing first: if a chat context is set and input does not
// start with "/", it is rewritten to "/send <active_rdx> <input>"
// (spec.md §4.7).
func (p *Parser) Parse(input string) Command {
	if active := p.ctx.Active(); active != "" && !strings.HasPrefix(input, "/") {
		return Command{Kind: KindSend, Peer: active, Message: input}
	}

	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{Kind: KindUnknown, Raw: input}
	}

	switch fields[0] {
	case "/send":
		if len(fields) < 3 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		return Command{Kind: KindSend, Peer: fields[1], Message: strings.Join(fields[2:], " ")}
	case "/chat":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		p.ctx.Enter(fields[1])
		return Command{Kind: KindChat, Peer: fields[1]}
	case "/leave":
		p.ctx.Leave()
		return Command{Kind: KindLeave}
	case "/help":
		return Command{Kind: KindHelp}
	case "/status":
		return Command{Kind: KindStatus}
	case "/peers":
		return Command{Kind: KindPeers}
	case "/sessions":
		return Command{Kind: KindSessions}
	case "/connect":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		return Command{Kind: KindConnect, URL: fields[1]}
	case "/disconnect":
		return Command{Kind: KindDisconnect}
	case "/identities":
		return Command{Kind: KindIdentities}
	case "/trust":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		alias := ""
		if len(fields) >= 3 {
			alias = strings.Join(fields[2:], " ")
		}
		return Command{Kind: KindTrust, Peer: fields[1], Alias: alias}
	case "/verify":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		return Command{Kind: KindVerify, Peer: fields[1]}
	case "/broadcast":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		return Command{Kind: KindBroadcast, Message: strings.Join(fields[1:], " ")}
	case "/mode":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown, Raw: input}
		}
		return Command{Kind: KindMode, Mode: fields[1]}
	case "/scan":
		return Command{Kind: KindScan}
	case "/version":
		return Command{Kind: KindVersion}
	case "/publish":
		return Command{Kind: KindPublish}
	case "/unpublish":
		return Command{Kind: KindUnpublish}
	default:
		return Command{Kind: KindUnknown, Raw: input}
	}
}
