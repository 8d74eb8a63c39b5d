package apptransfer_test

import (
	"bytes"
	"testing"

	"rostov/internal/apptransfer"
)

// pipe is a tiny in-memory Sender/Receiver/Recv adapter so frame and
// transfer logic can be tested without a real RDT connection.
type pipe struct {
	buf bytes.Buffer
}

func (p *pipe) Send(b []byte) error {
	p.buf.Write(b)
	return nil
}

func (p *pipe) RecvExact(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := p.buf.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *pipe) Recv(n int) ([]byte, error) {
	out := make([]byte, n)
	k, err := p.buf.Read(out)
	return out[:k], err
}

func TestHeaderRoundTripUpload(t *testing.T) {
	p := &pipe{}
	want := apptransfer.Header{Op: apptransfer.OpUpload, Size: 12345, Filename: "report.pdf"}
	if err := apptransfer.WriteHeader(p, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := apptransfer.ReadHeader(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHeaderRoundTripDownloadHasNoSize(t *testing.T) {
	p := &pipe{}
	want := apptransfer.Header{Op: apptransfer.OpDownload, Filename: "notes.txt"}
	if err := apptransfer.WriteHeader(p, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := apptransfer.ReadHeader(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Op != apptransfer.OpDownload || got.Filename != "notes.txt" || got.Size != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestSizeRoundTrip(t *testing.T) {
	p := &pipe{}
	if err := apptransfer.WriteSize(p, 9876543210); err != nil {
		t.Fatalf("write size: %v", err)
	}
	got, err := apptransfer.ReadSize(p)
	if err != nil {
		t.Fatalf("read size: %v", err)
	}
	if got != 9876543210 {
		t.Fatalf("got %d", got)
	}
}
