package rdtsocket_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"rostov/internal/muxdemux"
	"rostov/internal/rdtconf"
	"rostov/internal/rdtsocket"
	"rostov/internal/rdtsocket/sr"
	"rostov/internal/ude"
)

// TestLossyBulkTransferSR exercises spec §8 scenario 3: 25% outbound drop
// on both sides must still complete a bulk SR transfer within a bounded
// number of retry cycles, and the bytes must match exactly.
func TestLossyBulkTransferSR(t *testing.T) {
	serverUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind server: %v", err)
	}
	clientUDE, err := ude.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind client: %v", err)
	}
	serverUDE.SetBuggyness(0.25)
	clientUDE.SetBuggyness(0.25)

	conf := testConf(rdtconf.SR)
	conf.AckTimeout = 80 * time.Millisecond
	conf.AckRetries = 200

	listener := muxdemux.NewListener(serverUDE, conf.AcceptBacklog)
	defer listener.Close()

	type result struct {
		sock *rdtsocket.Socket
		err  error
	}
	srvCh := make(chan result, 1)
	go func() {
		stream, err := listener.Accept()
		if err != nil {
			srvCh <- result{nil, err}
			return
		}
		sock, err := rdtsocket.NewServer(stream, conf, sr.New, "sr")
		srvCh <- result{sock, err}
	}()

	clientStream := muxdemux.Dial(clientUDE, listener.Addr())
	client, err := rdtsocket.Connect(clientStream, conf, sr.New, "sr")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	srvRes := <-srvCh
	if srvRes.err != nil {
		t.Fatalf("accept: %v", srvRes.err)
	}
	server := srvRes.sock
	defer client.Close()
	defer server.Close()

	payload := make([]byte, 80000)
	for i := 0; i < 40000; i++ {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(i))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- client.Send(payload) }()

	server.SetTimeout(10 * time.Second)
	got, err := server.RecvExact(len(payload))
	if err != nil {
		t.Fatalf("recv_exact under loss: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("lossy bulk transfer mismatch")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send under loss: %v", err)
	}
}
