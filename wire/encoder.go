package wire

import (
	"encoding/binary"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// bufferSize is the size of one buffer in the outbound swap-chain.
// Encoding appends into the active buffer; once it would exceed this,
// the buffer is committed and a fresh one begins.
const bufferSize = 16 * 1024

// Encoder implements the outbound half of the wire codec: a
// swap-chain of byte buffers plus a parallel queue of pending fds.
// All messages from one client are written in order; the swap-chain
// may coalesce several logical messages into one underlying write but
// never splits a single message across two writes.
type Encoder struct {
	conn *net.UnixConn

	active     []byte
	committed  [][]byte
	pendingFDs []int
}

func NewEncoder(conn *net.UnixConn) *Encoder {
	return &Encoder{conn: conn}
}

// EncodeMessage appends one message (header + payload) to the active
// buffer, committing it first if the new message would overflow the
// fixed buffer size.
func (e *Encoder) EncodeMessage(id ObjectID, opcode uint16, v2 bool, build func(*ArgWriter)) {
	w := &ArgWriter{}
	if build != nil {
		build(w)
	}
	size := HeaderSize + len(w.buf)

	if len(e.active) > 0 && len(e.active)+size > bufferSize {
		e.commit()
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(id))
	opField := encodeOpcodeField(opcode, 0, v2)
	binary.LittleEndian.PutUint32(header[4:8], uint32(size)<<16|opField)

	e.active = append(e.active, header...)
	e.active = append(e.active, w.buf...)
	e.pendingFDs = append(e.pendingFDs, w.fds...)
}

func (e *Encoder) commit() {
	if len(e.active) == 0 {
		return
	}
	e.committed = append(e.committed, e.active)
	e.active = nil
}

// BufferedBytes reports the total bytes queued but not yet flushed,
// the quantity client.Client compares against its soft limit for
// backpressure (spec.md §4.3).
func (e *Encoder) BufferedBytes() int {
	n := len(e.active)
	for _, b := range e.committed {
		n += len(b)
	}
	return n
}

// Flush drains every committed (and the current active) buffer to the
// endpoint as a single write carrying every pending fd, under the
// given deadline. It is a no-op if nothing is buffered.
func (e *Encoder) Flush(deadline time.Duration) error {
	e.commit()
	if len(e.committed) == 0 {
		return nil
	}

	total := 0
	for _, b := range e.committed {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range e.committed {
		out = append(out, b...)
	}

	var oob []byte
	if len(e.pendingFDs) > 0 {
		oob = unix.UnixRights(e.pendingFDs...)
	}

	if err := e.conn.SetWriteDeadline(time.Now().Add(deadline)); err != nil {
		return err
	}
	_, _, err := e.conn.WriteMsgUnix(out, oob, nil)
	if err != nil {
		return err
	}

	e.committed = nil
	e.pendingFDs = nil
	return nil
}
