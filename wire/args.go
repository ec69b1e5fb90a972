package wire

import (
	"encoding/binary"
)

// ArgReader parses the typed arguments of one message's payload in
// declared order, consuming fds from the connection's shared fd queue
// as it encounters fd-typed arguments.
type ArgReader struct {
	buf []byte
	off int
	fds *[]int
}

func newArgReader(payload []byte, fds *[]int) *ArgReader {
	return &ArgReader{buf: payload, fds: fds}
}

// NewArgReader builds a reader over an already-assembled payload, for
// callers (and tests) that construct messages without going through a
// Decoder.
func NewArgReader(payload []byte, fds []int) *ArgReader {
	return &ArgReader{buf: payload, fds: &fds}
}

// Bytes returns the accumulated payload of an ArgWriter.
func (w *ArgWriter) Bytes() []byte {
	return w.buf
}

// FDs returns the fds queued by an ArgWriter's FD calls.
func (w *ArgWriter) FDs() []int {
	return w.fds
}

func (r *ArgReader) need(n int) error {
	if r.off+n > len(r.buf) {
		return ErrShortRead
	}
	return nil
}

func (r *ArgReader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *ArgReader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *ArgReader) Fixed() (Fixed, error) {
	v, err := r.Uint32()
	return Fixed(v), err
}

// Object reads an object-id argument; 0 denotes null. Non-nullable
// arguments are validated by the caller (a null id for a non-nullable
// argument is a fatal protocol error per spec.md §4.2, not a wire
// error — the decoder only extracts the raw value here).
func (r *ArgReader) Object() (uint32, error) {
	return r.Uint32()
}

func (r *ArgReader) NewID() (uint32, error) {
	return r.Uint32()
}

func (r *ArgReader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	s := string(r.buf[r.off : r.off+int(n)-1]) // drop trailing NUL
	r.off += int(n)
	r.off += padding(int(n))
	return s, nil
}

func (r *ArgReader) Array() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	r.off += padding(int(n))
	return out, nil
}

func (r *ArgReader) FD() (int, error) {
	if r.fds == nil || len(*r.fds) == 0 {
		return -1, ErrNoFD
	}
	fd := (*r.fds)[0]
	*r.fds = (*r.fds)[1:]
	return fd, nil
}

// Done reports whether the whole payload was consumed. Trailing bytes
// beyond the declared arguments are a parse error (spec.md §4.1).
func (r *ArgReader) Done() error {
	if r.off != len(r.buf) {
		return ErrTrailingBytes
	}
	return nil
}

func padding(n int) int {
	return (4 - n%4) % 4
}

// ArgWriter builds one message's payload plus the fds it carries.
type ArgWriter struct {
	buf []byte
	fds []int
}

func (w *ArgWriter) Uint32(v uint32) *ArgWriter {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *ArgWriter) Int32(v int32) *ArgWriter {
	return w.Uint32(uint32(v))
}

func (w *ArgWriter) Fixed(v Fixed) *ArgWriter {
	return w.Uint32(uint32(v))
}

func (w *ArgWriter) Object(id uint32) *ArgWriter {
	return w.Uint32(id)
}

func (w *ArgWriter) NewID(id uint32) *ArgWriter {
	return w.Uint32(id)
}

func (w *ArgWriter) String(s string) *ArgWriter {
	n := len(s) + 1
	w.Uint32(uint32(n))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	for i := 0; i < padding(n); i++ {
		w.buf = append(w.buf, 0)
	}
	return w
}

func (w *ArgWriter) Array(b []byte) *ArgWriter {
	w.Uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	for i := 0; i < padding(len(b)); i++ {
		w.buf = append(w.buf, 0)
	}
	return w
}

func (w *ArgWriter) FD(fd int) *ArgWriter {
	w.fds = append(w.fds, fd)
	return w
}
