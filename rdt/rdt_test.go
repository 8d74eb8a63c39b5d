package rdt_test

import (
	"sync"
	"testing"
	"time"

	"rostov/rdt"
)

func testConf(variant rdt.Variant) *rdt.Conf {
	c := rdt.DefaultConf()
	c.Variant = variant
	c.AckTimeout = 200 * time.Millisecond
	c.FinAckWaitTimeout = 150 * time.Millisecond
	c.FinWaitTimeout = 300 * time.Millisecond
	c.ConnectRetries = 20
	c.AckRetries = 20
	return c
}

// TestSingleMessage exercises spec §8 scenario 1 through the public API
// only: connect, send one message, accept, recv_exact, close both ends.
func TestSingleMessage(t *testing.T) {
	for _, variant := range []rdt.Variant{rdt.SAW, rdt.SR} {
		variant := variant
		t.Run(string(variant), func(t *testing.T) {
			conf := testConf(variant)
			ln, err := rdt.Listen("127.0.0.1:0", conf)
			if err != nil {
				t.Fatalf("listen: %v", err)
			}
			defer ln.Close()

			type acceptResult struct {
				conn *rdt.Conn
				err  error
			}
			accepted := make(chan acceptResult, 1)
			go func() {
				conn, err := ln.Accept()
				accepted <- acceptResult{conn, err}
			}()

			client, err := rdt.Connect(ln.Addr().String(), conf)
			if err != nil {
				t.Fatalf("connect: %v", err)
			}
			defer client.Close()

			msg := []byte("hello over rdt")
			if err := client.Send(msg); err != nil {
				t.Fatalf("send: %v", err)
			}

			r := <-accepted
			if r.err != nil {
				t.Fatalf("accept: %v", r.err)
			}
			defer r.conn.Close()

			got, err := r.conn.RecvExact(len(msg))
			if err != nil {
				t.Fatalf("recv_exact: %v", err)
			}
			if string(got) != string(msg) {
				t.Fatalf("got %q, want %q", got, msg)
			}
		})
	}
}

// TestBidirectionalExchange exercises spec §8 scenario 2: both ends Send
// and Recv independently of each other over the same connection.
func TestBidirectionalExchange(t *testing.T) {
	for _, variant := range []rdt.Variant{rdt.SAW, rdt.SR} {
		variant := variant
		t.Run(string(variant), func(t *testing.T) {
			conf := testConf(variant)
			ln, err := rdt.Listen("127.0.0.1:0", conf)
			if err != nil {
				t.Fatalf("listen: %v", err)
			}
			defer ln.Close()

			type acceptResult struct {
				conn *rdt.Conn
				err  error
			}
			accepted := make(chan acceptResult, 1)
			go func() {
				conn, err := ln.Accept()
				accepted <- acceptResult{conn, err}
			}()

			client, err := rdt.Connect(ln.Addr().String(), conf)
			if err != nil {
				t.Fatalf("connect: %v", err)
			}
			defer client.Close()

			r := <-accepted
			if r.err != nil {
				t.Fatalf("accept: %v", r.err)
			}
			server := r.conn
			defer server.Close()

			clientMsg := []byte("ping-from-client")
			serverMsg := []byte("pong-from-server")

			var wg sync.WaitGroup
			wg.Add(2)
			var clientSendErr, serverSendErr error
			go func() {
				defer wg.Done()
				clientSendErr = client.Send(clientMsg)
			}()
			go func() {
				defer wg.Done()
				serverSendErr = server.Send(serverMsg)
			}()
			wg.Wait()
			if clientSendErr != nil {
				t.Fatalf("client send: %v", clientSendErr)
			}
			if serverSendErr != nil {
				t.Fatalf("server send: %v", serverSendErr)
			}

			gotOnServer, err := server.RecvExact(len(clientMsg))
			if err != nil {
				t.Fatalf("server recv_exact: %v", err)
			}
			if string(gotOnServer) != string(clientMsg) {
				t.Fatalf("server got %q, want %q", gotOnServer, clientMsg)
			}

			gotOnClient, err := client.RecvExact(len(serverMsg))
			if err != nil {
				t.Fatalf("client recv_exact: %v", err)
			}
			if string(gotOnClient) != string(serverMsg) {
				t.Fatalf("client got %q, want %q", gotOnClient, serverMsg)
			}
		})
	}
}

// TestCloseThenRecvEndOfStream exercises spec §8 scenario 4: once the peer
// has closed, a pending Recv eventually surfaces end-of-stream rather than
// blocking forever.
func TestCloseThenRecvEndOfStream(t *testing.T) {
	conf := testConf(rdt.SAW)
	ln, err := rdt.Listen("127.0.0.1:0", conf)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type acceptResult struct {
		conn *rdt.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- acceptResult{conn, err}
	}()

	client, err := rdt.Connect(ln.Addr().String(), conf)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	r := <-accepted
	if r.err != nil {
		t.Fatalf("accept: %v", r.err)
	}
	server := r.conn

	if err := client.Close(); err != nil {
		t.Fatalf("client close: %v", err)
	}

	server.SetTimeout(500 * time.Millisecond)
	_, err = server.RecvExact(1)
	if err == nil {
		t.Fatalf("expected end-of-stream or timeout error after peer close, got nil")
	}
	server.Close()
}
