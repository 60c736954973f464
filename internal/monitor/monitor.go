// Package monitor implements connection_monitor (spec.md §4.9): it
// maintains last-known transport state per transport kind and answers
// status queries by formatting a human-readable block. Grounded on the
// teacher's internal/services/network_service.go, which tracked
// connectivity state for display the same way, generalized from its
// single internet-only check to the {internet, bluetooth} kind space
// spec.md §4.5/§1 calls for.
package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustingooding/radix-relay/internal/transport"
)

// Kind identifies which transport a status entry describes.
type Kind int

const (
	KindInternet Kind = iota
	KindBluetooth
)

func (k Kind) String() string {
	switch k {
	case KindInternet:
		return "internet"
	case KindBluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// Status is one transport kind's last-known state.
type Status struct {
	State     string
	URL       string
	Error     string
	UpdatedAt time.Time
}

// Monitor tracks per-kind transport status and formats it for display.
type Monitor struct {
	mu     sync.Mutex
	status map[Kind]Status
}

// New creates a Monitor with every kind Disconnected.
func New() *Monitor {
	return &Monitor{
		status: map[Kind]Status{
			KindInternet:  {State: "disconnected"},
			KindBluetooth: {State: "disconnected"},
		},
	}
}

// Observe updates the kind's status from a transport event (spec.md
// §4.6 "on Transport::Sent / SendFailed / ConnectFailed / Disconnected:
// Relayed to the connection_monitor's input").
func (m *Monitor) Observe(kind Kind, evt transport.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.status[kind]
	s.UpdatedAt = time.Now()

	switch evt.Kind {
	case transport.EvConnected:
		s.State = "connected"
		s.URL = evt.URL
		s.Error = ""
	case transport.EvConnectFailed:
		s.State = "failed"
		s.URL = evt.URL
		s.Error = evt.Error
	case transport.EvDisconnected:
		s.State = "disconnected"
		s.Error = evt.Error
	case transport.EvSendFailed:
		s.Error = evt.Error
	}

	m.status[kind] = s
}

// QueryStatus formats a human-readable status block for every tracked
// transport kind (spec.md §4.9).
func (m *Monitor) QueryStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	for _, kind := range []Kind{KindInternet, KindBluetooth} {
		s := m.status[kind]
		fmt.Fprintf(&b, "%s: %s", kind, s.State)
		if s.URL != "" {
			fmt.Fprintf(&b, " (%s)", s.URL)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, " (%s)", s.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
