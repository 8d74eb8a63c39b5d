package sr

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// window is the blocking free-sequence-number provider from spec §4.5:
// initial contents are [initial, initial+size); acquire() blocks (subject
// to ctx) until a number is free, release(seq) returns (seq+size) mod 2^32
// to the pool once its ACK lands. Acquire/release order need not match,
// which is what makes this Selective Repeat rather than Go-back-N.
//
// Library: golang.org/x/sync/semaphore gates the blocking capacity check;
// a mutex-guarded FIFO slice hands out the actual sequence values, since a
// bare semaphore only counts permits and carries no payload.
type window struct {
	size int64
	sem  *semaphore.Weighted

	mu   sync.Mutex
	free []uint32
}

func newWindow(initial uint32, size int) *window {
	w := &window{size: int64(size), sem: semaphore.NewWeighted(int64(size))}
	w.free = make([]uint32, size)
	for i := 0; i < size; i++ {
		w.free[i] = initial + uint32(i)
	}
	return w
}

// acquire blocks until a sequence number is free or ctx is done.
func (w *window) acquire(ctx context.Context) (uint32, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	w.mu.Lock()
	seq := w.free[0]
	w.free = w.free[1:]
	w.mu.Unlock()
	return seq, nil
}

// release returns seq's slot, W sequence numbers further along, to the pool.
func (w *window) release(seq uint32) {
	w.mu.Lock()
	w.free = append(w.free, seq+uint32(w.size))
	w.mu.Unlock()
	w.sem.Release(1)
}
