package muxdemux

import (
	"net"
	"sync"
	"time"

	"rostov/internal/bytestream"
	"rostov/internal/errs"
	"rostov/internal/ude"
	"rostov/internal/wire"
)

// ClientStream is the client-side mux/demux pass-through from spec §4.2: a
// single UDE serving a single peer, with a receive worker that rejects
// datagrams from any address other than the configured remote.
type ClientStream struct {
	ude    *ude.Endpoint
	remote net.Addr
	queue  *bytestream.Queue
	reader *queueReader

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a client-side stream from e to remote.
func Dial(e *ude.Endpoint, remote net.Addr) *ClientStream {
	c := &ClientStream{
		ude:    e,
		remote: remote,
		queue:  bytestream.New(),
		done:   make(chan struct{}),
	}
	c.reader = newQueueReader(c.queue)
	go c.recvWorker()
	return c
}

func (c *ClientStream) recvWorker() {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, addr, err := c.ude.RecvFrom(buf)
		if err != nil {
			if errs.Is(err, errs.Closed) {
				c.queue.Close()
				return
			}
			if errs.Is(err, errs.Timeout) || errs.Is(err, errs.WouldBlock) {
				continue
			}
			c.queue.Close()
			return
		}

		if addr.String() != c.remote.String() {
			continue // reject datagrams from anyone but the configured peer
		}

		data := buf[:n]
		if !wire.HasMagic(data) {
			continue
		}
		c.queue.Put(data[6:])
	}
}

func (c *ClientStream) SendPacket(p wire.Packet) error {
	encoded, err := wire.Encode(p)
	if err != nil {
		return err
	}
	return c.ude.SendTo(encoded, c.remote)
}

func (c *ClientStream) RecvPacket() (wire.Packet, error) { return readPacket(c.reader) }
func (c *ClientStream) SetTimeout(d time.Duration)        { c.reader.SetTimeout(d) }
func (c *ClientStream) SetBlocking(b bool)                { c.reader.SetBlocking(b) }
func (c *ClientStream) LocalAddr() net.Addr               { return c.ude.LocalAddr() }
func (c *ClientStream) RemoteAddr() net.Addr              { return c.remote }

func (c *ClientStream) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.queue.Close()
	})
	return c.ude.Close()
}
