package bytestream

import (
	"errors"
	"testing"
	"time"

	"rostov/internal/errs"
)

func TestPutGetExact(t *testing.T) {
	q := New()
	q.Put([]byte("hello"))
	got, err := q.Get(5, 0, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestResidualBuffering(t *testing.T) {
	q := New()
	q.Put([]byte("abcdefgh"))
	first, err := q.Get(3, 0, false)
	if err != nil || string(first) != "abc" {
		t.Fatalf("first get: %q %v", first, err)
	}
	second, err := q.Get(10, 0, false)
	if err != nil || string(second) != "defgh" {
		t.Fatalf("second get should drain residual, got %q %v", second, err)
	}
}

func TestGetNeverWastesLargerChunks(t *testing.T) {
	q := New()
	q.Put([]byte("0123456789"))
	q.Put([]byte("ABCDE"))
	a, _ := q.Get(4, 0, false)
	b, _ := q.Get(4, 0, false)
	c, _ := q.Get(100, 0, false)
	all := string(a) + string(b) + string(c)
	if all != "0123456789ABCDE" {
		t.Fatalf("bytes reordered or lost: %q", all)
	}
}

func TestNonBlockingEmptyReturnsNoError(t *testing.T) {
	q := New()
	got, err := q.Get(4, 0, false)
	if err != nil {
		t.Fatalf("expected no error on non-blocking empty read, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no bytes, got %d", len(got))
	}
}

func TestBlockingTimeout(t *testing.T) {
	q := New()
	_, err := q.Get(4, 20*time.Millisecond, true)
	if !errors.Is(err, errs.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestBlockingWakesOnPut(t *testing.T) {
	q := New()
	done := make(chan []byte, 1)
	go func() {
		got, err := q.Get(5, time.Second, true)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- got
	}()
	time.Sleep(10 * time.Millisecond)
	q.Put([]byte("hello"))
	select {
	case got := <-done:
		if string(got) != "hello" {
			t.Fatalf("expected hello, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked Get never woke up")
	}
}

func TestEndOfStreamAfterClose(t *testing.T) {
	q := New()
	q.Put([]byte("x"))
	q.Close()
	got, err := q.Get(1, 0, true)
	if err != nil || string(got) != "x" {
		t.Fatalf("buffered byte before close should still be readable: %q %v", got, err)
	}
	_, err = q.Get(1, 0, true)
	if !errors.Is(err, errs.EndOfStream) {
		t.Fatalf("expected EndOfStream after drain, got %v", err)
	}
}
