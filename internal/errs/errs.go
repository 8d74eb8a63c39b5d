// Package errs defines the RDT error taxonomy from spec §7: Timeout,
// ProtocolError, EndOfStream, ForcedClose and InvalidUse, plus Closed and
// WouldBlock for endpoints and listeners. The transport layers return these
// sentinels, or wrap them, so callers can classify failures with errors.Is;
// socket, file and configuration errors (including rdtconf validation) are
// returned as they are.
package errs

import "github.com/pkg/errors"

var (
	// Timeout: a bounded wait expired. Recoverable by retry up to the
	// configured ceiling (ACK_TIMEOUT/FIN_WAIT_TIMEOUT/etc retries).
	Timeout = errors.New("rdt: timeout")

	// ProtocolError: a packet was received that no state accepts. Recoverable
	// by transitioning the connection to Disconnected; never kills the
	// listener.
	ProtocolError = errors.New("rdt: protocol error")

	// EndOfStream: the peer closed and buffered data is exhausted.
	EndOfStream = errors.New("rdt: end of stream")

	// ForcedClose: a retry ceiling was exhausted; the connection tore down
	// without coordinated FIN/FINACK.
	ForcedClose = errors.New("rdt: forced close")

	// InvalidUse: API misuse (connect twice, close twice, send while not
	// connected, etc).
	InvalidUse = errors.New("rdt: invalid use")

	// Closed: operation attempted on an already-closed resource (UDE,
	// listener). Distinct from InvalidUse because it can arise from
	// concurrent teardown, not just caller error.
	Closed = errors.New("rdt: closed")

	// WouldBlock: non-blocking mode had nothing ready.
	WouldBlock = errors.New("rdt: would block")
)

// Wrap attaches a stack trace and message to one of the sentinels above.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Is reports whether err is, or wraps, target.
func Is(err, target error) bool { return errors.Is(err, target) }
