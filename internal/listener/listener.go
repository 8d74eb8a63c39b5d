// Package listener implements the Listener facade from spec §2 layer 4:
// accept new connections, spawn an RDT socket per peer using the
// configured reliability variant, hand it to the caller.
//
// Grounded on the teacher's internal/tnet/udp/listen.go Listen/Accept
// shape, adapted to spawn an internal/rdtsocket.Socket (running its own
// handshake) per accepted muxdemux.Stream instead of handing a raw
// net.Conn off to smux.
package listener

import (
	"net"

	"rostov/internal/muxdemux"
	"rostov/internal/rdtconf"
	"rostov/internal/rdtsocket"
	"rostov/internal/rdtsocket/saw"
	"rostov/internal/rdtsocket/sr"
	"rostov/internal/rlog"
	"rostov/internal/ude"
)

var log = rlog.New("listener")

// Listener accepts new RDT connections over a single shared UDP socket.
type Listener struct {
	mux  *muxdemux.Listener
	conf *rdtconf.Conf
}

// Listen binds addr and starts the mux/demux layer, ready to Accept.
func Listen(addr string, conf *rdtconf.Conf) (*Listener, error) {
	e, err := ude.Bind(addr)
	if err != nil {
		return nil, err
	}
	if conf.BuggynessFactor > 0 {
		e.SetBuggyness(conf.BuggynessFactor)
	}
	return &Listener{mux: muxdemux.NewListener(e, conf.AcceptBacklog), conf: conf}, nil
}

func strategyFor(conf *rdtconf.Conf) rdtsocket.NewStrategy {
	if conf.Variant == rdtconf.SAW {
		return saw.New
	}
	return sr.New
}

// Accept blocks for the next peer, runs the server-side handshake (spec
// §4.3), and returns a Connected socket.
func (l *Listener) Accept() (*rdtsocket.Socket, error) {
	stream, err := l.mux.Accept()
	if err != nil {
		return nil, err
	}
	sock, err := rdtsocket.NewServer(stream, l.conf, strategyFor(l.conf), string(l.conf.Variant))
	if err != nil {
		log.Warnf("handshake with %s failed: %v", stream.RemoteAddr(), err)
		stream.Close()
		return nil, err
	}
	return sock, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.mux.Addr() }

// Close tears down the mux/demux layer. In-flight accepted sockets are
// unaffected; each must be closed independently by its owner.
func (l *Listener) Close() error { return l.mux.Close() }

// Connect dials addr and runs the client-side handshake, returning a
// Connected socket using conf's configured reliability variant.
func Connect(addr string, conf *rdtconf.Conf) (*rdtsocket.Socket, error) {
	e, err := ude.Bind("0.0.0.0:0")
	if err != nil {
		return nil, err
	}
	if conf.BuggynessFactor > 0 {
		e.SetBuggyness(conf.BuggynessFactor)
	}
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		e.Close()
		return nil, err
	}
	stream := muxdemux.Dial(e, remote)
	sock, err := rdtsocket.Connect(stream, conf, strategyFor(conf), string(conf.Variant))
	if err != nil {
		stream.Close()
		return nil, err
	}
	return sock, nil
}
