package rdtsocket

import (
	"net"
	"sync"
	"time"

	"rostov/internal/bytestream"
	"rostov/internal/errs"
	"rostov/internal/metrics"
	"rostov/internal/muxdemux"
	"rostov/internal/rdtconf"
	"rostov/internal/rlog"
	"rostov/internal/wire"
)

var log = rlog.New("rdtsocket")

// pollInterval bounds how long the packet-handler worker blocks on a single
// RecvPacket call, so it can observe a close request without holding up
// teardown indefinitely (spec §5: "short polling intervals to observe the
// close flag without holding the receive lock").
const pollInterval = 200 * time.Millisecond

// Deps is what a Strategy needs from its owning Socket, handed to the
// strategy factory at construction so internal/rdtsocket/saw and
// internal/rdtsocket/sr never import muxdemux or bytestream directly.
type Deps struct {
	Transmit func(p wire.Packet) error
	Deliver  func(body []byte)
	Conf     *rdtconf.Conf
}

// Strategy is the reliability-specific sender/receiver accounting shared
// contract (spec §4.4 Stop-and-Wait, §4.5 Selective Repeat). Socket owns
// everything transport- and state-machine-related; Strategy owns sequence
// numbering, windowing, retransmission and reorder buffering.
type Strategy interface {
	// Send fragments buf into INFO packets and transmits all of them.
	// Stop-and-Wait returns once every fragment is acknowledged, or fails
	// with errs.ForcedClose when one exhausts the retry ceiling. Selective
	// Repeat returns once every fragment has been sent, blocking only while
	// the window is full; its ACKs and retry failures are observed by Drain.
	Send(buf []byte) error

	// HandleInfo processes one inbound INFO packet: delivers any
	// now-contiguous bytes and emits the ACK(s) the accepted/duplicate
	// cases require.
	HandleInfo(p wire.Packet)

	// HandleAck processes one inbound ACK, advancing window/unacked state.
	HandleAck(p wire.Packet)

	// Drain reports whether every INFO sent so far has been acknowledged,
	// failing with errs.ForcedClose when one was not within the retry
	// ceiling. Selective Repeat waits here for outstanding ACKs;
	// Stop-and-Wait returns at once, since its Send already waited.
	Drain() error

	// Stop cancels every timer and releases anything blocked on
	// backpressure so outstanding Send/Drain calls unblock.
	Stop()
}

// NewStrategy builds a Strategy bound to a socket's transmit/deliver hooks.
type NewStrategy func(d Deps) Strategy

// Socket is the shared connection state machine (spec §4.3) both
// reliability variants run inside.
type Socket struct {
	stream   muxdemux.Stream
	conf     *rdtconf.Conf
	strategy Strategy
	recv     *bytestream.Queue
	variant  string

	stateMu sync.RWMutex
	state   State

	ioMu     sync.RWMutex
	timeout  time.Duration
	blocking bool

	closeMu sync.Mutex
	closed  bool

	handlerWG   sync.WaitGroup
	stop        chan struct{}
	connectedCh chan struct{}
	finAckCh    chan struct{}
	peerFinCh   chan struct{}
}

func newSocket(stream muxdemux.Stream, conf *rdtconf.Conf, newStrategy NewStrategy, variant string) *Socket {
	s := &Socket{
		stream:      stream,
		conf:        conf,
		recv:        bytestream.New(),
		variant:     variant,
		blocking:    true,
		stop:        make(chan struct{}),
		connectedCh: make(chan struct{}),
		finAckCh:    make(chan struct{}, 1),
		peerFinCh:   make(chan struct{}, 1),
	}
	s.strategy = newStrategy(Deps{
		Transmit: stream.SendPacket,
		Deliver:  s.recv.Put,
		Conf:     conf,
	})
	return s
}

// NewServer runs the server-side handshake from spec §4.3's transition
// table (wait CONNECT, reply CONNACK, tolerate duplicate CONNECTs, wait the
// confirming INFO) and returns a Connected socket.
func NewServer(stream muxdemux.Stream, conf *rdtconf.Conf, newStrategy NewStrategy, variant string) (*Socket, error) {
	s := newSocket(stream, conf, newStrategy, variant)
	s.setState(NotConnected)
	stream.SetBlocking(true)
	stream.SetTimeout(conf.AckTimeout)

	for {
		p, err := stream.RecvPacket()
		if err != nil {
			if errs.Is(err, errs.Timeout) {
				continue
			}
			return nil, err
		}
		if p.Type == wire.CONNECT {
			break
		}
	}
	if err := stream.SendPacket(wire.Packet{Type: wire.CONNACK}); err != nil {
		return nil, err
	}
	s.setState(Connecting)
	s.startHandler()

	ceiling := conf.AckTimeout * time.Duration(conf.ConnectRetries+1)
	select {
	case <-s.connectedCh:
	case <-time.After(ceiling):
		return nil, errs.Wrap(errs.Timeout, "accept: no confirming INFO within retry ceiling")
	}
	metrics.ActiveConnections.Inc()
	return s, nil
}

// Connect runs the client-side handshake: retry CONNECT until CONNACK,
// then send the confirming INFO(seq=InitialPacketNumber) through the
// strategy, which doubles as the handshake's final step (spec §4.3/§4.4).
func Connect(stream muxdemux.Stream, conf *rdtconf.Conf, newStrategy NewStrategy, variant string) (*Socket, error) {
	s := newSocket(stream, conf, newStrategy, variant)
	s.setState(NotConnected)
	stream.SetBlocking(true)
	stream.SetTimeout(conf.AckTimeout)

	var connacked bool
	for attempt := 0; attempt < conf.ConnectRetries; attempt++ {
		if err := stream.SendPacket(wire.Packet{Type: wire.CONNECT}); err != nil {
			return nil, err
		}
		p, err := stream.RecvPacket()
		if err != nil {
			if errs.Is(err, errs.Timeout) {
				continue
			}
			return nil, err
		}
		if p.Type == wire.CONNACK {
			connacked = true
			break
		}
	}
	if !connacked {
		return nil, errs.Wrap(errs.Timeout, "connect: no CONNACK within retry ceiling")
	}

	s.setState(Connecting)
	s.startHandler()

	if err := s.strategy.Send(nil); err != nil {
		return nil, err
	}
	s.setState(Connected)
	metrics.ActiveConnections.Inc()
	return s, nil
}

func (s *Socket) startHandler() {
	s.handlerWG.Add(1)
	go s.runHandler()
}

func (s *Socket) runHandler() {
	defer s.handlerWG.Done()
	s.stream.SetBlocking(true)
	s.stream.SetTimeout(pollInterval)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		p, err := s.stream.RecvPacket()
		if err != nil {
			if errs.Is(err, errs.Timeout) {
				continue
			}
			if errs.Is(err, errs.EndOfStream) || errs.Is(err, errs.Closed) {
				return
			}
			log.Debugf("handler: %v", err)
			continue
		}
		s.dispatch(p)
	}
}

func (s *Socket) dispatch(p wire.Packet) {
	switch p.Type {
	case wire.INFO:
		st := s.getState()
		s.strategy.HandleInfo(p)
		if st == Connecting {
			s.setState(Connected)
			close(s.connectedCh)
		}
	case wire.ACK:
		s.strategy.HandleAck(p)
	case wire.CONNECT:
		if err := s.stream.SendPacket(wire.Packet{Type: wire.CONNACK}); err != nil {
			log.Debugf("resend CONNACK: %v", err)
		}
	case wire.CONNACK:
		// stray/duplicate: ignored per spec §9 Open Questions.
	case wire.FIN:
		s.handleFin()
	case wire.FINACK:
		s.notify(s.finAckCh)
	default:
		metrics.DroppedUnknownType.Inc()
	}
}

func (s *Socket) handleFin() {
	switch s.getState() {
	case Connected:
		if err := s.stream.SendPacket(wire.Packet{Type: wire.FINACK}); err != nil {
			log.Debugf("FINACK: %v", err)
		}
		s.setState(FinRecv)
		// The peer sends no INFO after its FIN: once the buffered bytes are
		// read, Recv/RecvExact report errs.EndOfStream.
		s.recv.Close()
	case SendingFin, Disconnecting, FinRecv, FinSent:
		if err := s.stream.SendPacket(wire.Packet{Type: wire.FINACK}); err != nil {
			log.Debugf("FINACK: %v", err)
		}
		s.notify(s.peerFinCh)
	}
}

func (s *Socket) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Socket) getState() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Socket) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// State reports the socket's current lifecycle state.
func (s *Socket) State() State { return s.getState() }

// Send reliably delivers the entire buffer (spec §6), blocking per the
// active reliability strategy.
func (s *Socket) Send(buf []byte) error {
	if s.getState() != Connected {
		return errs.InvalidUse
	}
	return s.strategy.Send(buf)
}

// Recv returns up to n bytes (spec §6): any positive count while not at
// end-of-stream, honoring the socket's timeout/blocking configuration.
func (s *Socket) Recv(n int) ([]byte, error) {
	timeout, blocking := s.ioParams()
	return s.recv.Get(n, timeout, blocking)
}

// RecvExact returns exactly n bytes or fails, looping Recv internally.
func (s *Socket) RecvExact(n int) ([]byte, error) {
	timeout, blocking := s.ioParams()
	out := make([]byte, 0, n)

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for len(out) < n {
		remaining := n - len(out)
		perCall := timeout
		if !deadline.IsZero() {
			perCall = time.Until(deadline)
			if perCall <= 0 {
				return out, errs.Timeout
			}
		}
		chunk, err := s.recv.Get(remaining, perCall, blocking)
		out = append(out, chunk...)
		if err != nil {
			return out, err
		}
		if len(chunk) == 0 {
			if !blocking {
				return out, errs.WouldBlock
			}
			return out, errs.EndOfStream
		}
	}
	return out, nil
}

func (s *Socket) ioParams() (time.Duration, bool) {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()
	return s.timeout, s.blocking
}

func (s *Socket) SetTimeout(d time.Duration) {
	s.ioMu.Lock()
	s.timeout = d
	s.ioMu.Unlock()
}

func (s *Socket) SetBlocking(b bool) {
	s.ioMu.Lock()
	s.blocking = b
	s.ioMu.Unlock()
}

func (s *Socket) LocalAddr() net.Addr  { return s.stream.LocalAddr() }
func (s *Socket) RemoteAddr() net.Addr { return s.stream.RemoteAddr() }

// Close runs the termination protocol (spec §4.6): drain outstanding INFO,
// coordinate FIN/FINACK (tolerating simultaneous close from both sides),
// then join every background worker before returning. A second concurrent
// call observes errs.InvalidUse rather than silently no-opping.
func (s *Socket) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return errs.InvalidUse
	}
	s.closed = true
	s.closeMu.Unlock()

	var err error
	switch s.getState() {
	case Disconnected, NotConnected:
	case FinRecv:
		err = s.strategy.Drain()
		if err == nil {
			err = s.finHandshake()
		}
	default:
		err = s.strategy.Drain()
		if err == nil {
			s.setState(SendingFin)
			err = s.finHandshake()
		}
	}

	close(s.stop)
	s.strategy.Stop()
	s.handlerWG.Wait()
	s.recv.Close()
	streamErr := s.stream.Close()
	s.setState(Disconnected)
	metrics.ActiveConnections.Dec()

	if err != nil {
		return err
	}
	return streamErr
}

// finHandshake sends FIN, retrying until FINACK arrives or FIN_RETRIES is
// exhausted, tolerating a simultaneous FIN from the peer along the way
// (spec §4.6 guarantee 3).
func (s *Socket) finHandshake() error {
	for attempt := 0; attempt < s.conf.FinRetries; attempt++ {
		if err := s.stream.SendPacket(wire.Packet{Type: wire.FIN}); err != nil {
			return errs.Wrap(errs.ForcedClose, err.Error())
		}
		select {
		case <-s.finAckCh:
			return s.safetyWindow()
		case <-s.peerFinCh:
			s.setState(Disconnecting)
			continue
		case <-time.After(s.conf.FinAckWaitTimeout):
			continue
		}
	}
	return errs.ForcedClose
}

// safetyWindow answers any repeated FIN with FINACK for FIN_WAIT_TIMEOUT
// before declaring the connection Disconnected (spec §4.6 guarantee 4).
func (s *Socket) safetyWindow() error {
	s.setState(FinSent)
	deadline := time.After(s.conf.FinWaitTimeout)
	for {
		select {
		case <-s.peerFinCh:
			continue
		case <-deadline:
			return nil
		}
	}
}
