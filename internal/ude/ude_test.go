package ude

import (
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	a, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind a: %v", err)
	}
	defer a.Close()
	b, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind b: %v", err)
	}
	defer b.Close()

	if err := a.SendTo([]byte("hola"), b.LocalAddr()); err != nil {
		t.Fatalf("send: %v", err)
	}

	b.SetTimeout(time.Second)
	buf := make([]byte, 1500)
	n, addr, err := b.RecvFrom(buf)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(buf[:n]) != "hola" {
		t.Fatalf("expected hola, got %q", buf[:n])
	}
	if addr.String() != a.LocalAddr().String() {
		t.Fatalf("expected sender %s, got %s", a.LocalAddr(), addr)
	}
}

func TestRecvTimeout(t *testing.T) {
	a, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer a.Close()
	a.SetTimeout(20 * time.Millisecond)
	buf := make([]byte, 1500)
	_, _, err = a.RecvFrom(buf)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNonBlockingWouldBlock(t *testing.T) {
	a, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer a.Close()
	a.SetBlocking(false)
	buf := make([]byte, 1500)
	_, _, err = a.RecvFrom(buf)
	if err == nil {
		t.Fatalf("expected WouldBlock")
	}
}

func TestBuggynessDropsAllTraffic(t *testing.T) {
	a, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind a: %v", err)
	}
	defer a.Close()
	b, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind b: %v", err)
	}
	defer b.Close()

	a.SetBuggyness(1.0)
	if err := a.SendTo([]byte("never arrives"), b.LocalAddr()); err != nil {
		t.Fatalf("send should report success even when dropped: %v", err)
	}

	b.SetTimeout(50 * time.Millisecond)
	buf := make([]byte, 1500)
	if _, _, err := b.RecvFrom(buf); err == nil {
		t.Fatalf("expected timeout: datagram should have been dropped")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if err := a.SendTo([]byte("x"), a.LocalAddr()); err == nil {
		t.Fatalf("expected error sending on closed endpoint")
	}
}
