// Package saw implements the Stop-and-Wait reliability algorithm from spec
// §4.4: exactly one unacknowledged INFO at a time, with the receiver
// tolerating a single retransmitted duplicate by re-sending the previous
// ACK.
//
// Grounded on internal/rdtsocket's Strategy contract and, algorithmically,
// on the attempt-counted retry loop in the teacher's deleted
// internal/client/client.go dial path.
package saw

import (
	"sync"
	"time"

	"rostov/internal/errs"
	"rostov/internal/metrics"
	"rostov/internal/rdtconf"
	"rostov/internal/rdtsocket"
	"rostov/internal/wire"
)

// Strategy is the Stop-and-Wait rdtsocket.Strategy implementation.
type Strategy struct {
	transmit func(wire.Packet) error
	deliver  func([]byte)
	conf     *rdtconf.Conf

	mu          sync.Mutex
	cond        *sync.Cond
	nextSendSeq uint32
	awaiting    bool
	awaitingSeq uint32
	acked       bool
	stopped     bool

	expectedRecvSeq uint32
}

// New returns a Stop-and-Wait strategy bound to d.
func New(d rdtsocket.Deps) rdtsocket.Strategy {
	s := &Strategy{
		transmit:        d.Transmit,
		deliver:         d.Deliver,
		conf:            d.Conf,
		nextSendSeq:     d.Conf.InitialPacketNumber,
		expectedRecvSeq: d.Conf.InitialPacketNumber,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Send fragments buf and transmits each fragment in turn, advancing
// next_send_seq only once the matching ACK arrives (spec §4.4).
func (s *Strategy) Send(buf []byte) error {
	start := s.currentSeq()
	pkts := wire.Fragment(buf, start, s.conf.MSS)
	for _, p := range pkts {
		if err := s.sendOne(p); err != nil {
			return err
		}
		s.mu.Lock()
		s.nextSendSeq = p.Seq + 1
		s.mu.Unlock()
	}
	return nil
}

func (s *Strategy) currentSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSendSeq
}

func (s *Strategy) sendOne(p wire.Packet) error {
	s.mu.Lock()
	s.awaiting = true
	s.awaitingSeq = p.Seq
	s.acked = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.awaiting = false
		s.mu.Unlock()
	}()

	for attempt := 0; attempt < s.conf.AckRetries; attempt++ {
		if s.isStopped() {
			return errs.ForcedClose
		}
		if err := s.transmit(p); err != nil {
			return err
		}
		if attempt > 0 {
			metrics.Retransmissions.WithLabelValues("saw").Inc()
		}
		if s.waitAck(s.conf.AckTimeout) {
			return nil
		}
	}
	return errs.ForcedClose
}

// waitAck blocks until HandleAck reports the in-flight seq acked, Stop is
// called, or timeout elapses, returning whether it was acked.
func (s *Strategy) waitAck(timeout time.Duration) bool {
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.acked && !s.stopped {
		if time.Now().After(deadline) {
			return false
		}
		s.cond.Wait()
	}
	return s.acked
}

// HandleAck marks the in-flight packet acknowledged if the sequence matches.
func (s *Strategy) HandleAck(p wire.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting && p.Seq == s.awaitingSeq {
		s.acked = true
		s.cond.Broadcast()
	}
}

// HandleInfo implements the receiver side of §4.4: deliver in strict order,
// tolerate exactly one retransmitted duplicate of the previous sequence.
func (s *Strategy) HandleInfo(p wire.Packet) {
	s.mu.Lock()
	expected := s.expectedRecvSeq
	s.mu.Unlock()

	switch {
	case p.Seq == expected:
		s.deliver(p.Body)
		s.mu.Lock()
		s.expectedRecvSeq = expected + 1
		s.mu.Unlock()
		s.ack(p.Seq)
	case p.Seq == expected-1:
		s.ack(p.Seq)
	default:
		// drop silently: neither the next expected nor its duplicate.
	}
}

func (s *Strategy) ack(seq uint32) {
	if err := s.transmit(wire.Packet{Type: wire.ACK, Seq: seq}); err == nil {
		metrics.AcksEmitted.Inc()
	}
}

// Drain is a no-op beyond reporting whether the single in-flight slot is
// still outstanding: Send already blocks until its own fragment is acked,
// so by the time Close calls Drain nothing should remain in flight.
func (s *Strategy) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting && !s.acked {
		return errs.ForcedClose
	}
	return nil
}

// Stop releases any blocked waitAck so an in-progress Send unblocks with
// errs.ForcedClose.
func (s *Strategy) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Strategy) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
