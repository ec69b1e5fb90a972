package wire

import (
	"encoding/binary"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// Message is one fully-framed inbound request: a target object id, an
// opcode, and the typed arguments still to be parsed.
type Message struct {
	Sender ObjectID
	Opcode uint16
	Flags  uint8
	Args   *ArgReader
}

// ObjectID mirrors object.ID without importing the object package —
// wire stays a leaf dependency, decoupled from the object table.
type ObjectID uint32

// Decoder reads framed messages off a unix connection, buffering bytes
// and ancillary fds independently since the kernel attaches fds to
// arbitrary byte boundaries, not to message boundaries.
type Decoder struct {
	conn *net.UnixConn
	v2   bool

	buf []byte
	fds []int

	readBuf [4096]byte
	oobBuf  [4096]byte
}

func NewDecoder(conn *net.UnixConn) *Decoder {
	return &Decoder{conn: conn}
}

// SetV2 flips the opcode-field interpretation for every message
// decoded after this call, per the display object's v2 bootstrap
// request (spec.md §6).
func (d *Decoder) SetV2(v2 bool) {
	d.v2 = v2
}

func (d *Decoder) fill() error {
	n, oobn, _, _, err := d.conn.ReadMsgUnix(d.readBuf[:], d.oobBuf[:])
	if n > 0 {
		d.buf = append(d.buf, d.readBuf[:n]...)
	}
	if oobn > 0 {
		scms, parseErr := unix.ParseSocketControlMessage(d.oobBuf[:oobn])
		if parseErr == nil {
			for _, scm := range scms {
				fds, rightsErr := unix.ParseUnixRights(&scm)
				if rightsErr == nil {
					d.fds = append(d.fds, fds...)
				}
			}
		}
	}
	if err != nil {
		if err == io.EOF {
			return errEOF
		}
		return err
	}
	return nil
}

// Next reads and returns one full message, suspending (blocking the
// caller's goroutine) until enough bytes have arrived.
func (d *Decoder) Next() (*Message, error) {
	for len(d.buf) < HeaderSize {
		if err := d.fill(); err != nil {
			return nil, err
		}
	}
	id := binary.LittleEndian.Uint32(d.buf[0:4])
	sizeAndOp := binary.LittleEndian.Uint32(d.buf[4:8])
	size := int(sizeAndOp >> 16)
	if size < HeaderSize || size%4 != 0 || size > MaxMessageSize {
		return nil, ErrMisaligned
	}
	opcode, flags := decodeOpcode(sizeAndOp, d.v2)

	for len(d.buf) < size {
		if err := d.fill(); err != nil {
			return nil, err
		}
	}
	payload := make([]byte, size-HeaderSize)
	copy(payload, d.buf[HeaderSize:size])
	d.buf = d.buf[size:]

	return &Message{
		Sender: ObjectID(id),
		Opcode: opcode,
		Flags:  flags,
		Args:   newArgReader(payload, &d.fds),
	}, nil
}

// Close releases every fd still queued but never consumed by a
// handler. Spec.md §5: until a handler reads an fd-typed argument "the
// receive buffer owns it and will close it on client teardown" — an
// untrusted client can pass fds that no core interface ever reads
// (display/callback/registry declare none), and those would otherwise
// leak one kernel fd per message forever. Callers invoke this once,
// after decoding has stopped for good.
func (d *Decoder) Close() {
	for _, fd := range d.fds {
		unix.Close(fd)
	}
	d.fds = nil
}

// errEOF marks a clean peer-close: not an error per spec.md §7, the
// receive loop treats it as quiet removal.
var errEOF = &peerClosedError{}

type peerClosedError struct{}

func (*peerClosedError) Error() string { return "wire: peer closed" }

// IsPeerClosed reports whether err is the sentinel returned when the
// connection was closed cleanly by the peer.
func IsPeerClosed(err error) bool {
	_, ok := err.(*peerClosedError)
	return ok
}
