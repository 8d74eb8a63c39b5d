// Package wire implements the RDT datagram codec from spec §3/§6: the
// 6-byte "ROSTOV" magic token, the six packet kinds, and big-endian framing
// of INFO/ACK sequence numbers and lengths. Shared by the Stop-and-Wait and
// Selective Repeat reliability variants.
package wire

import (
	"encoding/binary"
	"io"

	"rostov/internal/errs"
)

// Magic prefixes every datagram on the wire. Datagrams lacking it are dropped.
var Magic = [6]byte{'R', 'O', 'S', 'T', 'O', 'V'}

type Type byte

const (
	CONNECT Type = 0
	CONNACK Type = 1
	INFO    Type = 2
	ACK     Type = 3
	FIN     Type = 4
	FINACK  Type = 5
)

func (t Type) String() string {
	switch t {
	case CONNECT:
		return "CONNECT"
	case CONNACK:
		return "CONNACK"
	case INFO:
		return "INFO"
	case ACK:
		return "ACK"
	case FIN:
		return "FIN"
	case FINACK:
		return "FINACK"
	default:
		return "UNKNOWN"
	}
}

// MaxBody is the largest INFO body: 65527 (max UDP payload) minus magic(6),
// type(1) and the INFO header (length(2) + seq(4)).
const MaxBody = 65527 - 6 - 1 - 2 - 4

// Packet is the tagged wire unit. Only the fields relevant to Type are
// meaningful: CONNECT/CONNACK/FIN/FINACK carry no payload, INFO carries Seq
// and Body, ACK carries Seq.
type Packet struct {
	Type Type
	Seq  uint32
	Body []byte
}

// Encode serializes p with the magic token prefix, ready to hand to a
// net.PacketConn.
func Encode(p Packet) ([]byte, error) {
	body, err := EncodeBody(p)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(Magic)+len(body))
	buf = append(buf, Magic[:]...)
	buf = append(buf, body...)
	return buf, nil
}

// EncodeBody serializes p WITHOUT the magic token: the listener-side
// mux/demux stream prepends the magic exactly once and then queues the
// datagram for the shared send worker.
func EncodeBody(p Packet) ([]byte, error) {
	buf := make([]byte, 0, 1+6+len(p.Body))
	buf = append(buf, byte(p.Type))
	switch p.Type {
	case CONNECT, CONNACK, FIN, FINACK:
		// no payload
	case INFO:
		if len(p.Body) > MaxBody {
			return nil, errs.Wrap(errs.InvalidUse, "info body exceeds MaxBody")
		}
		var hdr [6]byte
		binary.BigEndian.PutUint16(hdr[0:2], uint16(len(p.Body)))
		binary.BigEndian.PutUint32(hdr[2:6], p.Seq)
		buf = append(buf, hdr[:]...)
		buf = append(buf, p.Body...)
	case ACK:
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], p.Seq)
		buf = append(buf, hdr[:]...)
	default:
		return nil, errs.Wrap(errs.ProtocolError, "unknown packet type")
	}
	return buf, nil
}

// Decode parses a single framed datagram, validating the magic token.
// Decode never retains a reference into data for CONNECT/CONNACK/FIN/FINACK/ACK;
// for INFO, Body aliases data and must be copied by the caller before reuse
// of the underlying buffer.
func Decode(data []byte) (Packet, error) {
	if len(data) < len(Magic)+1 {
		return Packet{}, errs.Wrap(errs.ProtocolError, "datagram too short")
	}
	var magic [6]byte
	copy(magic[:], data[:6])
	if magic != Magic {
		return Packet{}, errs.Wrap(errs.ProtocolError, "magic mismatch")
	}
	rest := data[6:]
	typ := Type(rest[0])
	rest = rest[1:]

	switch typ {
	case CONNECT, CONNACK, FIN, FINACK:
		return Packet{Type: typ}, nil
	case ACK:
		if len(rest) < 4 {
			return Packet{}, errs.Wrap(errs.ProtocolError, "truncated ACK")
		}
		seq := binary.BigEndian.Uint32(rest[:4])
		return Packet{Type: ACK, Seq: seq}, nil
	case INFO:
		if len(rest) < 6 {
			return Packet{}, errs.Wrap(errs.ProtocolError, "truncated INFO header")
		}
		length := binary.BigEndian.Uint16(rest[0:2])
		seq := binary.BigEndian.Uint32(rest[2:6])
		body := rest[6:]
		if len(body) < int(length) {
			return Packet{}, errs.Wrap(errs.ProtocolError, "truncated INFO body")
		}
		return Packet{Type: INFO, Seq: seq, Body: body[:length]}, nil
	default:
		return Packet{}, errs.Wrap(errs.ProtocolError, "unknown packet type")
	}
}

// ReadFrom decodes one framed packet from r, which must yield exactly one
// datagram per Read (as net.PacketConn does). buf is scratch space sized to
// the transport's max datagram size.
func ReadFrom(r io.Reader, buf []byte) (Packet, int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return Packet{}, n, err
	}
	p, err := Decode(buf[:n])
	return p, n, err
}

// HasMagic reports whether data begins with the magic token, without fully
// decoding it. Used by the mux/demux receive worker to cheaply discard
// foreign traffic before it reaches the per-peer queue.
func HasMagic(data []byte) bool {
	if len(data) < len(Magic) {
		return false
	}
	var magic [6]byte
	copy(magic[:], data[:6])
	return magic == Magic
}

// ReadPacket decodes one packet from r, which must NOT include the magic
// token: the mux/demux receive worker validates and strips the magic
// before the payload ever reaches a per-connection byte stream (spec
// §4.2), so the packet-handler worker parses the bare type+fields framing
// incrementally off that stream instead of off a single datagram buffer.
func ReadPacket(r io.Reader) (Packet, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return Packet{}, err
	}
	typ := Type(typeBuf[0])

	switch typ {
	case CONNECT, CONNACK, FIN, FINACK:
		return Packet{Type: typ}, nil
	case ACK:
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return Packet{}, err
		}
		return Packet{Type: ACK, Seq: binary.BigEndian.Uint32(hdr[:])}, nil
	case INFO:
		var hdr [6]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return Packet{}, err
		}
		length := binary.BigEndian.Uint16(hdr[0:2])
		if int(length) > MaxBody {
			return Packet{}, errs.Wrap(errs.ProtocolError, "info length exceeds max body")
		}
		seq := binary.BigEndian.Uint32(hdr[2:6])
		body := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(r, body); err != nil {
				return Packet{}, err
			}
		}
		return Packet{Type: INFO, Seq: seq, Body: body}, nil
	default:
		return Packet{}, errs.Wrap(errs.ProtocolError, "unknown packet type")
	}
}

// Fragment splits buf into INFO packets of at most mss bytes, numbered
// sequentially from start (mod 2^32). Concatenating the returned bodies in
// order reproduces buf exactly (spec §8 round-trip law).
func Fragment(buf []byte, start uint32, mss int) []Packet {
	if mss <= 0 || mss > MaxBody {
		mss = MaxBody
	}
	if len(buf) == 0 {
		return []Packet{{Type: INFO, Seq: start, Body: nil}}
	}
	var pkts []Packet
	seq := start
	for off := 0; off < len(buf); off += mss {
		end := off + mss
		if end > len(buf) {
			end = len(buf)
		}
		pkts = append(pkts, Packet{Type: INFO, Seq: seq, Body: buf[off:end]})
		seq++
	}
	return pkts
}
