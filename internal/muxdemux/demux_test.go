package muxdemux

import (
	"testing"
	"time"

	"rostov/internal/ude"
	"rostov/internal/wire"
)

func TestAcceptAndEcho(t *testing.T) {
	serverUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind server: %v", err)
	}
	listener := NewListener(serverUDE, 4)
	defer listener.Close()

	clientUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind client: %v", err)
	}
	client := Dial(clientUDE, serverUDE.LocalAddr())
	defer client.Close()

	if err := client.SendPacket(wire.Packet{Type: wire.CONNECT}); err != nil {
		t.Fatalf("client send: %v", err)
	}

	serverStream, err := listener.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	serverStream.SetTimeout(time.Second)
	p, err := serverStream.RecvPacket()
	if err != nil {
		t.Fatalf("server recv: %v", err)
	}
	if p.Type != wire.CONNECT {
		t.Fatalf("expected CONNECT, got %s", p.Type)
	}

	if err := serverStream.SendPacket(wire.Packet{Type: wire.CONNACK}); err != nil {
		t.Fatalf("server send: %v", err)
	}

	client.SetTimeout(time.Second)
	p2, err := client.RecvPacket()
	if err != nil {
		t.Fatalf("client recv: %v", err)
	}
	if p2.Type != wire.CONNACK {
		t.Fatalf("expected CONNACK, got %s", p2.Type)
	}
}

func TestMultiplePeersIsolated(t *testing.T) {
	serverUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind server: %v", err)
	}
	listener := NewListener(serverUDE, 4)
	defer listener.Close()

	c1UDE, _ := ude.Bind("127.0.0.1:0")
	c2UDE, _ := ude.Bind("127.0.0.1:0")
	c1 := Dial(c1UDE, serverUDE.LocalAddr())
	c2 := Dial(c2UDE, serverUDE.LocalAddr())
	defer c1.Close()
	defer c2.Close()

	c1.SendPacket(wire.Packet{Type: wire.INFO, Seq: 1, Body: []byte("from c1")})
	c2.SendPacket(wire.Packet{Type: wire.INFO, Seq: 1, Body: []byte("from c2")})

	s1, err := listener.Accept()
	if err != nil {
		t.Fatalf("accept 1: %v", err)
	}
	s2, err := listener.Accept()
	if err != nil {
		t.Fatalf("accept 2: %v", err)
	}
	s1.SetTimeout(time.Second)
	s2.SetTimeout(time.Second)

	p1, err := s1.RecvPacket()
	if err != nil {
		t.Fatalf("recv 1: %v", err)
	}
	p2, err := s2.RecvPacket()
	if err != nil {
		t.Fatalf("recv 2: %v", err)
	}

	bodies := map[string]bool{string(p1.Body): true, string(p2.Body): true}
	if !bodies["from c1"] || !bodies["from c2"] {
		t.Fatalf("expected isolated bodies from c1 and c2, got %q and %q", p1.Body, p2.Body)
	}
	if s1.RemoteAddr().String() == s2.RemoteAddr().String() {
		t.Fatalf("expected distinct peer addresses")
	}
}

func TestRejectsMagicMismatch(t *testing.T) {
	serverUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	listener := NewListener(serverUDE, 4)
	defer listener.Close()

	clientUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind client: %v", err)
	}
	defer clientUDE.Close()

	// Send raw garbage without the magic token directly, bypassing Dial/Encode.
	if err := clientUDE.SendTo([]byte("not a rostov datagram"), serverUDE.LocalAddr()); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case <-listener.pending:
		t.Fatalf("garbage datagram should not create a pending peer")
	case <-time.After(100 * time.Millisecond):
	}
}
