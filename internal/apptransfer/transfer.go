package apptransfer

import (
	"io"
	"os"
	"path/filepath"

	"rostov/internal/errs"
	"rostov/internal/rlog"
)

var log = rlog.New("apptransfer")

// chunkSize mirrors original_source's BYTES_READ: file bytes cross the RDT
// socket in 1024-byte Send/Recv calls rather than one giant buffer.
const chunkSize = 1024

// Conn is the socket contract apptransfer drives: send/recv_exact plus an
// unconstrained recv for streaming file bodies.
type Conn interface {
	Sender
	Receiver
	Recv(n int) ([]byte, error)
}

// Upload sends filepath to the peer as an OpUpload request, then streams
// its contents in chunkSize pieces, and reports the server's response.
func Upload(conn Conn, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errs.Wrap(errs.InvalidUse, "upload: "+err.Error())
	}

	if err := WriteHeader(conn, Header{
		Op:       OpUpload,
		Size:     uint64(info.Size()),
		Filename: filepath.Base(path),
	}); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := conn.Send(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	resp, err := conn.RecvExact(1)
	if err != nil {
		return err
	}
	switch resp[0] {
	case RespUploadOK:
		log.Infof("upload of %s confirmed", path)
		return nil
	case RespError:
		code, err := conn.RecvExact(1)
		if err != nil {
			return err
		}
		return errs.Wrap(errs.ProtocolError, describeError(code[0]))
	default:
		return errs.Wrap(errs.ProtocolError, "unexpected upload response")
	}
}

// Download requests filename from the peer as an OpDownload request and
// writes the response body to destDir/filename.
func Download(conn Conn, filename, destDir string) error {
	if err := WriteHeader(conn, Header{Op: OpDownload, Filename: filename}); err != nil {
		return err
	}

	respType, err := conn.RecvExact(1)
	if err != nil {
		return err
	}
	switch respType[0] {
	case RespError:
		code, err := conn.RecvExact(1)
		if err != nil {
			return err
		}
		return errs.Wrap(errs.ProtocolError, describeError(code[0]))
	case RespConfirmDownload:
		// fall through to size + body
	default:
		return errs.Wrap(errs.ProtocolError, "unexpected download response")
	}

	size, err := ReadSize(conn)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(destDir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	var received uint64
	for received < size {
		want := chunkSize
		if remaining := size - received; remaining < uint64(want) {
			want = int(remaining)
		}
		chunk, err := conn.Recv(want)
		if err != nil {
			return err
		}
		if _, err := f.Write(chunk); err != nil {
			return err
		}
		received += uint64(len(chunk))
	}
	log.Infof("download of %s complete (%d bytes)", filename, received)
	return nil
}

func describeError(code byte) string {
	switch code {
	case ErrFileNotFound:
		return "file not found"
	default:
		return "unknown error"
	}
}

// ServeRequest is the server-side counterpart: read one request header and
// either stream srcDir/filename back (download) or receive and store an
// uploaded file into srcDir, replying with the appropriate response codes.
func ServeRequest(conn Conn, srcDir string) error {
	h, err := ReadHeader(conn)
	if err != nil {
		return err
	}

	switch h.Op {
	case OpUpload:
		return serveUpload(conn, h, srcDir)
	case OpDownload:
		return serveDownload(conn, h, srcDir)
	default:
		return conn.Send([]byte{RespError, ErrUnknownType})
	}
}

func serveUpload(conn Conn, h Header, srcDir string) error {
	f, err := os.Create(filepath.Join(srcDir, h.Filename))
	if err != nil {
		return conn.Send([]byte{RespError, ErrUnknownType})
	}
	defer f.Close()

	var received uint64
	for received < h.Size {
		want := chunkSize
		if remaining := h.Size - received; remaining < uint64(want) {
			want = int(remaining)
		}
		chunk, err := conn.Recv(want)
		if err != nil {
			return err
		}
		if _, err := f.Write(chunk); err != nil {
			return err
		}
		received += uint64(len(chunk))
	}
	return conn.Send([]byte{RespUploadOK})
}

func serveDownload(conn Conn, h Header, srcDir string) error {
	path := filepath.Join(srcDir, h.Filename)
	info, err := os.Stat(path)
	if err != nil {
		return conn.Send([]byte{RespError, ErrFileNotFound})
	}
	if err := conn.Send([]byte{RespConfirmDownload}); err != nil {
		return err
	}
	if err := WriteSize(conn, uint64(info.Size())); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := conn.Send(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
