// Package rdt is the socket-like contract presented to external callers
// (spec §1, §6): connect, accept, send, recv, recv_exact, close,
// set_timeout, set_blocking, on top of the reliable transport built from
// internal/ude, internal/muxdemux, internal/rdtsocket and its two
// reliability variants.
//
// Grounded on the teacher's internal/tnet/udp Listen/Dial pair returning a
// tnet.Conn — this package mirrors that shape at the top level, swapping
// smux sessions for rdtsocket sockets.
package rdt

import (
	"net"
	"time"

	"rostov/internal/listener"
	"rostov/internal/rdtconf"
	"rostov/internal/rdtsocket"
)

// Conf re-exports the configuration surface external callers tune.
type Conf = rdtconf.Conf

// Variant re-exports the two reliability algorithm choices.
type Variant = rdtconf.Variant

const (
	SAW = rdtconf.SAW
	SR  = rdtconf.SR
)

// DefaultConf returns a Conf with every spec §6 default applied.
func DefaultConf() *Conf { return rdtconf.Default() }

// Listener accepts inbound RDT connections on one shared UDP port.
type Listener struct{ l *listener.Listener }

// Listen binds addr and is ready to Accept.
func Listen(addr string, conf *Conf) (*Listener, error) {
	l, err := listener.Listen(addr, conf)
	if err != nil {
		return nil, err
	}
	return &Listener{l}, nil
}

// Accept blocks for the next peer and returns a Connected Conn.
func (ln *Listener) Accept() (*Conn, error) {
	sock, err := ln.l.Accept()
	if err != nil {
		return nil, err
	}
	return &Conn{sock}, nil
}

// Addr returns the listener's bound local address.
func (ln *Listener) Addr() net.Addr { return ln.l.Addr() }

// Close tears down the listener's mux/demux layer.
func (ln *Listener) Close() error { return ln.l.Close() }

// Connect dials addr and runs the client-side handshake.
func Connect(addr string, conf *Conf) (*Conn, error) {
	sock, err := listener.Connect(addr, conf)
	if err != nil {
		return nil, err
	}
	return &Conn{sock}, nil
}

// Conn is one reliable, ordered, byte-stream connection (spec §6).
type Conn struct {
	sock *rdtsocket.Socket
}

// Send delivers the entire buffer reliably; may block.
func (c *Conn) Send(buf []byte) error { return c.sock.Send(buf) }

// Recv returns up to n bytes (at least 1 if not at end-of-stream).
func (c *Conn) Recv(n int) ([]byte, error) { return c.sock.Recv(n) }

// RecvExact returns exactly n bytes or fails.
func (c *Conn) RecvExact(n int) ([]byte, error) { return c.sock.RecvExact(n) }

// SetTimeout bounds Recv/RecvExact waits. Send and Close do not use it.
func (c *Conn) SetTimeout(d time.Duration) { c.sock.SetTimeout(d) }

// SetBlocking toggles whether Recv/RecvExact block when no data is ready.
func (c *Conn) SetBlocking(b bool) { c.sock.SetBlocking(b) }

// Close runs the coordinated FIN/FINACK termination protocol (spec §4.6).
func (c *Conn) Close() error { return c.sock.Close() }

// LocalAddr and RemoteAddr expose the underlying endpoints.
func (c *Conn) LocalAddr() net.Addr  { return c.sock.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.sock.RemoteAddr() }
