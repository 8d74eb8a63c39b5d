// Package apptransfer is the tiny application-layer framing the spec
// explicitly places outside the RDT core (§1): a fixed header (operation
// type, file size, filename) prefixing the raw file bytes, plus the
// upload/download response codes.
//
// Grounded on original_source's src/ftp/upload.py and download.py: the
// same field order and widths (type byte, little-endian 8-byte size,
// little-endian 2-byte filename length, filename bytes), translated from
// ad hoc int.to_bytes calls into a single little-endian binary codec.
package apptransfer

import (
	"encoding/binary"

	"rostov/internal/errs"
)

// Op identifies the operation a Header's header-phase segment announces.
type Op byte

const (
	OpUpload   Op = 0
	OpDownload Op = 1
)

// Response codes a server sends back after processing a request.
const (
	RespConfirmDownload byte = 2
	RespUploadOK        byte = 3
	RespError           byte = 4
)

// Error codes carried as the single byte following RespError.
const (
	ErrUnknownType  byte = 0
	ErrFileNotFound byte = 1
)

// Sender is the subset of the RDT socket contract a framing writer needs.
type Sender interface {
	Send(buf []byte) error
}

// Receiver is the subset of the RDT socket contract a framing reader needs.
type Receiver interface {
	RecvExact(n int) ([]byte, error)
}

// Header is the fixed-width request preamble: operation, file size (for
// uploads; 0 and ignored for downloads, which learn size from the
// server's response instead), and filename.
type Header struct {
	Op       Op
	Size     uint64
	Filename string
}

// WriteHeader sends op, size (uploads only), filename-length and filename
// as separate Send calls, matching the teacher-of-the-original's one-field-
// per-send style.
func WriteHeader(s Sender, h Header) error {
	if err := s.Send([]byte{byte(h.Op)}); err != nil {
		return err
	}
	if h.Op == OpUpload {
		var sizeBuf [8]byte
		binary.LittleEndian.PutUint64(sizeBuf[:], h.Size)
		if err := s.Send(sizeBuf[:]); err != nil {
			return err
		}
	}
	name := []byte(h.Filename)
	if len(name) > 0xFFFF {
		return errs.Wrap(errs.InvalidUse, "filename too long")
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(name)))
	if err := s.Send(lenBuf[:]); err != nil {
		return err
	}
	return s.Send(name)
}

// ReadHeader reads a Header back off r, in the same field order WriteHeader
// used. The size field is only present for OpUpload; OpDownload requests
// carry no size (the server learns it by stat'ing the requested file).
func ReadHeader(r Receiver) (Header, error) {
	var h Header
	opByte, err := r.RecvExact(1)
	if err != nil {
		return h, err
	}
	h.Op = Op(opByte[0])

	if h.Op == OpUpload {
		sizeBuf, err := r.RecvExact(8)
		if err != nil {
			return h, err
		}
		h.Size = binary.LittleEndian.Uint64(sizeBuf)
	}

	lenBuf, err := r.RecvExact(2)
	if err != nil {
		return h, err
	}
	n := binary.LittleEndian.Uint16(lenBuf)
	if n > 0 {
		name, err := r.RecvExact(int(n))
		if err != nil {
			return h, err
		}
		h.Filename = string(name)
	}
	return h, nil
}

// WriteSize sends an 8-byte little-endian file size, used by the download
// response path once the server has confirmed the file exists.
func WriteSize(s Sender, size uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], size)
	return s.Send(buf[:])
}

// ReadSize reads an 8-byte little-endian file size back.
func ReadSize(r Receiver) (uint64, error) {
	buf, err := r.RecvExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}
