package muxdemux

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rostov/internal/bytestream"
	"rostov/internal/errs"
	"rostov/internal/metrics"
	"rostov/internal/rlog"
	"rostov/internal/ude"
	"rostov/internal/wire"
)

var log = rlog.New("muxdemux")

const maxDatagram = 65527

type sendJob struct {
	data       []byte
	addr       net.Addr
	disconnect bool
}

// peerEntry is the per-peer state the receive and send workers share,
// keyed by address string in Listener.peers.
type peerEntry struct {
	addr  net.Addr
	queue *bytestream.Queue
}

// Listener demultiplexes inbound datagrams on one shared UDE by source
// address and funnels every peer's outbound datagrams through a single
// send worker (spec §4.2).
type Listener struct {
	ude     *ude.Endpoint
	backlog int

	peers sync.Map // string(addr) -> *peerEntry

	sendCh  chan sendJob
	pending chan net.Addr

	closeOnce sync.Once
	closed    chan struct{}
	group     *errgroup.Group
}

// NewListener starts the receive and send workers over e. backlog bounds
// the pending-accept queue, mirroring a TCP listen backlog.
func NewListener(e *ude.Endpoint, backlog int) *Listener {
	if backlog <= 0 {
		backlog = 128
	}
	g, ctx := errgroup.WithContext(context.Background())
	l := &Listener{
		ude:     e,
		backlog: backlog,
		sendCh:  make(chan sendJob, 256),
		pending: make(chan net.Addr, backlog),
		closed:  make(chan struct{}),
		group:   g,
	}
	g.Go(func() error { l.recvWorker(ctx); return nil })
	g.Go(func() error { l.sendWorker(ctx); return nil })
	return l
}

func (l *Listener) recvWorker(ctx context.Context) {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, addr, err := l.ude.RecvFrom(buf)
		if err != nil {
			if errs.Is(err, errs.Closed) {
				return
			}
			if errs.Is(err, errs.Timeout) || errs.Is(err, errs.WouldBlock) {
				continue
			}
			return
		}

		data := buf[:n]
		if !wire.HasMagic(data) {
			log.Warnf("dropping datagram from %s: bad magic", addr)
			metrics.DroppedBadMagic.Inc()
			continue
		}
		payload := data[6:]

		key := addr.String()
		if v, ok := l.peers.Load(key); ok {
			v.(*peerEntry).queue.Put(payload)
			continue
		}

		if len(l.pending) >= l.backlog {
			log.Warnf("dropping new peer %s: accept backlog full", addr)
			continue
		}

		entry := &peerEntry{addr: addr, queue: bytestream.New()}
		entry.queue.Put(payload)
		l.peers.Store(key, entry)
		metrics.ActiveConnections.Inc()

		select {
		case l.pending <- addr:
		default:
			log.Warnf("dropping new peer %s: pending channel full", addr)
			l.peers.Delete(key)
			metrics.ActiveConnections.Dec()
		}
	}
}

func (l *Listener) sendWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-l.sendCh:
			if !ok {
				return
			}
			if job.disconnect {
				l.peers.Delete(job.addr.String())
				metrics.ActiveConnections.Dec()
				continue
			}
			if err := l.ude.SendTo(job.data, job.addr); err != nil {
				log.Debugf("send to %s failed: %v", job.addr, err)
			}
		}
	}
}

// Accept waits for a new peer and returns a Stream scoped to it.
func (l *Listener) Accept() (Stream, error) {
	select {
	case addr, ok := <-l.pending:
		if !ok {
			return nil, errs.Closed
		}
		v, ok := l.peers.Load(addr.String())
		if !ok {
			return nil, errs.Wrap(errs.ProtocolError, "peer vanished before accept")
		}
		entry := v.(*peerEntry)
		return newListenerStream(l, entry), nil
	case <-l.closed:
		return nil, errs.Closed
	}
}

// Addr returns the listener's bound local address.
func (l *Listener) Addr() net.Addr { return l.ude.LocalAddr() }

// Close tears down both workers and joins them before returning, satisfying
// spec §5's "every background worker joins before Close returns".
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.ude.Close()
		close(l.sendCh)
		_ = l.group.Wait()
	})
	return err
}

// listenerStream is the Stream implementation Accept() hands to
// internal/rdtsocket for an accepted peer.
type listenerStream struct {
	l      *Listener
	entry  *peerEntry
	reader *queueReader
}

func newListenerStream(l *Listener, entry *peerEntry) *listenerStream {
	return &listenerStream{l: l, entry: entry, reader: newQueueReader(entry.queue)}
}

func (s *listenerStream) SendPacket(p wire.Packet) error {
	body, err := wire.EncodeBody(p)
	if err != nil {
		return err
	}
	framed := make([]byte, 0, len(wire.Magic)+len(body))
	framed = append(framed, wire.Magic[:]...)
	framed = append(framed, body...)

	select {
	case s.l.sendCh <- sendJob{data: framed, addr: s.entry.addr}:
		return nil
	case <-s.l.closed:
		return errs.Closed
	}
}

func (s *listenerStream) RecvPacket() (wire.Packet, error) { return readPacket(s.reader) }
func (s *listenerStream) SetTimeout(d time.Duration)        { s.reader.SetTimeout(d) }
func (s *listenerStream) SetBlocking(b bool)                { s.reader.SetBlocking(b) }
func (s *listenerStream) LocalAddr() net.Addr               { return s.l.Addr() }
func (s *listenerStream) RemoteAddr() net.Addr              { return s.entry.addr }

// Close posts the disconnect sentinel so the send worker drops this peer's
// entry from the listener's map (spec §4.2), and closes the peer's byte
// stream so any blocked RecvPacket unblocks with EndOfStream.
func (s *listenerStream) Close() error {
	s.entry.queue.Close()
	select {
	case s.l.sendCh <- sendJob{addr: s.entry.addr, disconnect: true}:
	case <-s.l.closed:
	case <-time.After(time.Second):
	}
	return nil
}
