// Package ude implements the Unreliable Datagram Endpoint from spec §4.1:
// a single UDP socket with independent send/receive locks, a configurable
// timeout and blocking flag, and (for tests) probabilistic loss injection
// on send.
//
// Grounded on the teacher's internal/tnet/udp/adapter.go, which wraps a
// net.PacketConn the same way for smux; the AEAD Cipher field there is
// replaced here by the buggyness-factor drop hook, occupying the same spot
// in the pipeline (between the raw WriteTo/ReadFrom and the caller).
package ude

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"rostov/internal/errs"
	"rostov/internal/rlog"
)

var log = rlog.New("ude")

// Endpoint is a blocking-by-default, timeout-aware wrapper around one
// UDP socket. All sends are serialized by sendMu, all receives by recvMu;
// they are separate locks because a blocking receive must not stall sends
// (spec §4.1).
type Endpoint struct {
	conn net.PacketConn

	sendMu sync.Mutex
	recvMu sync.Mutex

	mu        sync.RWMutex // guards timeout/blocking/closed/buggyness
	timeout   time.Duration
	blocking  bool
	closed    bool
	buggyness float64 // outbound drop probability in [0,1], test-only
}

// Bind opens a UDP socket on addr ("host:port", "" for any, ":0" for an
// ephemeral port).
func Bind(addr string) (*Endpoint, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Endpoint{conn: conn, blocking: true}, nil
}

// FromConn adapts an already-open net.PacketConn (e.g. a connected client
// socket obtained via net.DialUDP) into an Endpoint.
func FromConn(conn net.PacketConn) *Endpoint {
	return &Endpoint{conn: conn, blocking: true}
}

// SetBuggyness sets the outbound-drop probability used by tests to simulate
// a lossy link (spec §4.1). f is clamped to [0,1].
func (e *Endpoint) SetBuggyness(f float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	e.mu.Lock()
	e.buggyness = f
	e.mu.Unlock()
}

// SetTimeout sets the deadline used for subsequent RecvFrom calls when
// blocking. Zero or negative means "no timeout" (wait forever).
func (e *Endpoint) SetTimeout(d time.Duration) {
	e.mu.Lock()
	e.timeout = d
	e.mu.Unlock()
}

// SetBlocking toggles whether RecvFrom waits for a datagram (true) or
// returns errs.WouldBlock immediately when none is ready (false).
func (e *Endpoint) SetBlocking(b bool) {
	e.mu.Lock()
	e.blocking = b
	e.mu.Unlock()
}

func (e *Endpoint) snapshot() (time.Duration, bool, bool, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.timeout, e.blocking, e.closed, e.buggyness
}

// SendTo writes one datagram. Under loss injection, the datagram is
// silently dropped with probability buggyness and SendTo still reports
// success, per spec §4.1.
func (e *Endpoint) SendTo(b []byte, addr net.Addr) error {
	_, _, closed, buggyness := e.snapshot()
	if closed {
		return errs.Closed
	}
	if buggyness > 0 && rand.Float64() < buggyness {
		log.Debugf("loss injection dropped %d bytes to %s", len(b), addr)
		return nil
	}
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	_, err := e.conn.WriteTo(b, addr)
	return err
}

// RecvFrom reads one datagram into buf. It honors the configured timeout
// (blocking mode) or returns errs.WouldBlock immediately (non-blocking
// mode) when nothing is ready.
func (e *Endpoint) RecvFrom(buf []byte) (int, net.Addr, error) {
	timeout, blocking, closed, _ := e.snapshot()
	if closed {
		return 0, nil, errs.Closed
	}

	e.recvMu.Lock()
	defer e.recvMu.Unlock()

	if !blocking {
		_ = e.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return 0, nil, errs.WouldBlock
			}
			return 0, nil, err
		}
		return n, addr, nil
	}

	if timeout > 0 {
		_ = e.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = e.conn.SetReadDeadline(time.Time{})
	}
	n, addr, err := e.conn.ReadFrom(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil, errs.Timeout
		}
		return 0, nil, err
	}
	return n, addr, nil
}

// LocalAddr returns the endpoint's bound local address.
func (e *Endpoint) LocalAddr() net.Addr { return e.conn.LocalAddr() }

// Close shuts down the underlying socket. Idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.conn.Close()
}
