// Package muxdemux implements spec §4.2: on a listener, one UDE is shared
// among all peers via a receive worker (demultiplexing inbound datagrams by
// source address into per-peer byte streams) and a send worker (funneling
// every per-peer sender's outbound datagrams through one writer); on a
// client, a thin single-peer pass-through.
//
// Grounded directly on the teacher's internal/tnet/udp/demux.go (the
// ReadFrom loop keyed by source address, sync.Map of per-peer state, a
// bounded new-connection channel) and internal/tnet/udp/listen.go (the
// Listener/Accept shape). Where the teacher hands a raw net.Conn off to
// smux, this package hands a Stream off to internal/rdtsocket.
package muxdemux

import (
	"net"
	"sync"
	"time"

	"rostov/internal/bytestream"
	"rostov/internal/errs"
	"rostov/internal/wire"
)

// Stream is what internal/rdtsocket consumes: a per-peer ordered byte
// channel plus a way to emit framed packets back to that peer. SetTimeout/
// SetBlocking flow down to the underlying byte-stream queue's Get semantics
// (spec §4.2).
type Stream interface {
	SendPacket(p wire.Packet) error
	RecvPacket() (wire.Packet, error)
	SetTimeout(d time.Duration)
	SetBlocking(b bool)
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// queueReader adapts a bytestream.Queue into an io.Reader driven by the
// timeout/blocking configuration each Stream implementation owns, so
// wire.ReadPacket can decode incrementally off it.
type queueReader struct {
	q *bytestream.Queue

	mu       sync.RWMutex
	timeout  time.Duration
	blocking bool

	leftover []byte
}

func newQueueReader(q *bytestream.Queue) *queueReader {
	return &queueReader{q: q, blocking: true}
}

func (r *queueReader) SetTimeout(d time.Duration) {
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()
}

func (r *queueReader) SetBlocking(b bool) {
	r.mu.Lock()
	r.blocking = b
	r.mu.Unlock()
}

func (r *queueReader) Read(b []byte) (int, error) {
	if len(r.leftover) > 0 {
		n := copy(b, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}
	r.mu.RLock()
	timeout, blocking := r.timeout, r.blocking
	r.mu.RUnlock()

	chunk, err := r.q.Get(len(b), timeout, blocking)
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 {
		return 0, nil
	}
	n := copy(b, chunk)
	if n < len(chunk) {
		r.leftover = chunk[n:]
	}
	return n, nil
}

// readPacket decodes exactly one wire.Packet, translating queue errors into
// errs sentinels the reliability layer understands.
func readPacket(r *queueReader) (wire.Packet, error) {
	p, err := wire.ReadPacket(r)
	if err != nil {
		if errs.Is(err, errs.Timeout) || errs.Is(err, errs.EndOfStream) {
			return wire.Packet{}, err
		}
		return wire.Packet{}, errs.Wrap(errs.ProtocolError, err.Error())
	}
	return p, nil
}
