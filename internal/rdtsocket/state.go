// Package rdtsocket implements the RDT connection state machine shared by
// the Stop-and-Wait and Selective Repeat reliability variants (spec §4.3):
// the handshake, the packet-handler worker, and the FIN/FINACK termination
// protocol (§4.6). The reliability-specific send/receive accounting lives
// in the Strategy a caller plugs in (internal/rdtsocket/saw,
// internal/rdtsocket/sr).
//
// Grounded on the teacher's deleted internal/client/client.go for the
// struct-with-locks socket shape, and algorithmically on xtaci/kcp-go's
// sess.go for per-packet retransmission timer bookkeeping (present in the
// pack via m277m277-kcptun's vendored copy and other_examples copies) —
// no kcp-go code is imported, since the wire format and state machine here
// are bespoke per spec §3/§4.3.
package rdtsocket

// State names the position in the spec §4.3 lifecycle.
type State int

const (
	NotConnected State = iota
	Connecting
	Connected
	FinSent
	FinRecv
	SendingFin
	Disconnecting
	Disconnected
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case FinSent:
		return "FinSent"
	case FinRecv:
		return "FinRecv"
	case SendingFin:
		return "SendingFin"
	case Disconnecting:
		return "Disconnecting"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// CanSend reports whether the application may still call Send in this state.
func (s State) CanSend() bool { return s == Connected }

// CanRecv reports whether the application may still expect new bytes in
// this state (data already buffered can still be drained regardless).
func (s State) CanRecv() bool {
	switch s {
	case Connected, FinSent, SendingFin:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions occur from this state.
func (s State) Terminal() bool { return s == Disconnected }
