// Package bytestream implements the multi-producer/single-consumer byte
// chunk queue from spec §3: Put is non-blocking, Get(n, timeout, blocking)
// returns up to n bytes with residual buffering so a Get never wastes
// producer chunks larger than n, and Empty() is a predicate usable under
// the queue's own lock alongside state-derived decisions (spec §5).
//
// Grounded on the pooled-buffer pattern in the teacher's
// internal/pkg/buffer package and the ad hoc chan-of-chunks used by
// internal/tnet/udp/demux.go's clientConn, generalized into a named,
// independently testable type.
package bytestream

import (
	"sync"
	"time"

	"rostov/internal/errs"
)

// Queue is safe for many concurrent Put callers and exactly one Get caller.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	chunks  [][]byte // pending whole chunks, FIFO
	residual []byte  // leftover from the front chunk after a partial Get

	closed bool
}

func New() *Queue {
	q := &Queue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Put appends a chunk. Non-blocking: it always succeeds unless the queue is
// closed, in which case it is silently dropped (the writer side of a closed
// stream has nothing left to deliver to).
func (q *Queue) Put(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	q.chunks = append(q.chunks, cp)
	q.notEmpty.Broadcast()
}

// Empty reports whether the queue currently has no bytes buffered. Callers
// that need to combine this with a state-derived decision (e.g. "may the
// reader still expect data?") should call Empty while holding a lock that
// also protects that state, per spec §5; WithLock exposes the queue's own
// mutex for that purpose.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.emptyLocked()
}

func (q *Queue) emptyLocked() bool {
	return len(q.residual) == 0 && len(q.chunks) == 0
}

// WithLock runs fn while holding the queue's internal lock, so a caller can
// atomically check Empty() together with other connection state.
func (q *Queue) WithLock(fn func(empty bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(q.emptyLocked())
}

// Get returns up to n bytes. If blocking is true, it waits (up to timeout,
// or forever if timeout <= 0) for at least one byte to become available; if
// blocking is false, it returns immediately with whatever is buffered (zero
// bytes is not an error in that case). It returns errs.EndOfStream when the
// queue has been closed and is empty, and errs.Timeout when blocking timed
// out with nothing available.
func (q *Queue) Get(n int, timeout time.Duration, blocking bool) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !blocking {
		if q.emptyLocked() {
			if q.closed {
				return nil, errs.EndOfStream
			}
			return nil, nil
		}
		return q.drainLocked(n), nil
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for q.emptyLocked() && !q.closed {
		if deadline.IsZero() {
			q.notEmpty.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errs.Timeout
		}
		if !q.waitWithTimeout(remaining) {
			// Re-check under lock; a spurious/late wake may have raced a Put.
			if q.emptyLocked() && !q.closed {
				return nil, errs.Timeout
			}
		}
	}

	if q.emptyLocked() {
		// closed and nothing left
		return nil, errs.EndOfStream
	}
	return q.drainLocked(n), nil
}

// waitWithTimeout waits on notEmpty for at most d, returning true if it was
// (probably) woken by a signal rather than the timeout. sync.Cond has no
// native timed wait, so this spins a helper goroutine that signals after d.
func (q *Queue) waitWithTimeout(d time.Duration) bool {
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()
	before := time.Now()
	q.notEmpty.Wait()
	return time.Since(before) < d
}

// drainLocked must be called with mu held and with data known to be available.
func (q *Queue) drainLocked(n int) []byte {
	out := make([]byte, 0, n)

	if len(q.residual) > 0 {
		take := min(n, len(q.residual))
		out = append(out, q.residual[:take]...)
		q.residual = q.residual[take:]
		if len(out) == n {
			return out
		}
	}

	for len(q.chunks) > 0 && len(out) < n {
		chunk := q.chunks[0]
		remaining := n - len(out)
		if remaining >= len(chunk) {
			out = append(out, chunk...)
			q.chunks = q.chunks[1:]
			continue
		}
		out = append(out, chunk[:remaining]...)
		q.residual = chunk[remaining:]
		q.chunks = q.chunks[1:]
	}
	return out
}

// Close marks the stream as ended: pending data already buffered can still
// be drained via Get, but once exhausted further Gets return EndOfStream,
// and any blocked Get is woken immediately.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}
