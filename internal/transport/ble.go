package transport

import "errors"

// ErrNotImplemented is returned by the Bluetooth LE transport stub.
// spec.md §1 lists a second transport as "mentioned in the source but is
// a stub; this spec covers only the primary WebSocket-over-TLS
// transport." This type exists only so connection_monitor's dual-key
// map (internet/bluetooth) has a second kind to key on.
var ErrNotImplemented = errors.New("bluetooth LE transport is not implemented")

// Kind identifies which physical transport connection_monitor is
// reporting on.
type Kind int

const (
	KindInternet Kind = iota
	KindBluetooth
)

func (k Kind) String() string {
	if k == KindBluetooth {
		return "bluetooth"
	}
	return "internet"
}

// BLEStream is an unimplemented stub for the Bluetooth LE transport.
type BLEStream struct{}

func (*BLEStream) Connect(string) error { return ErrNotImplemented }
func (*BLEStream) Send([]byte) error    { return ErrNotImplemented }
func (*BLEStream) Close() error         { return nil }
