package wire

import "testing"

func TestArgWriterReaderRoundTrip(t *testing.T) {
	w := &ArgWriter{}
	w.Uint32(42).Int32(-7).Fixed(FixedFromFloat64(1.5)).Object(99).NewID(100).String("hello").Array([]byte{1, 2, 3})

	r := newArgReader(w.buf, nil)

	if v, err := r.Uint32(); err != nil || v != 42 {
		t.Fatalf("Uint32 = %d, %v", v, err)
	}
	if v, err := r.Int32(); err != nil || v != -7 {
		t.Fatalf("Int32 = %d, %v", v, err)
	}
	if v, err := r.Fixed(); err != nil || v.Float64() != 1.5 {
		t.Fatalf("Fixed = %v, %v", v, err)
	}
	if v, err := r.Object(); err != nil || v != 99 {
		t.Fatalf("Object = %d, %v", v, err)
	}
	if v, err := r.NewID(); err != nil || v != 100 {
		t.Fatalf("NewID = %d, %v", v, err)
	}
	if s, err := r.String(); err != nil || s != "hello" {
		t.Fatalf("String = %q, %v", s, err)
	}
	if b, err := r.Array(); err != nil || string(b) != "\x01\x02\x03" {
		t.Fatalf("Array = %v, %v", b, err)
	}
	if err := r.Done(); err != nil {
		t.Fatalf("Done() = %v, want nil", err)
	}
}

func TestArgReaderShortRead(t *testing.T) {
	r := newArgReader([]byte{1, 2}, nil)
	if _, err := r.Uint32(); err != ErrShortRead {
		t.Fatalf("got %v, want ErrShortRead", err)
	}
}

func TestArgReaderTrailingBytes(t *testing.T) {
	w := &ArgWriter{}
	w.Uint32(1)
	w.buf = append(w.buf, 0, 0, 0, 0) // stray extra word
	r := newArgReader(w.buf, nil)
	if _, err := r.Uint32(); err != nil {
		t.Fatal(err)
	}
	if err := r.Done(); err != ErrTrailingBytes {
		t.Fatalf("got %v, want ErrTrailingBytes", err)
	}
}

func TestArgReaderFDQueue(t *testing.T) {
	fds := []int{5, 6}
	r := newArgReader(nil, &fds)
	fd, err := r.FD()
	if err != nil || fd != 5 {
		t.Fatalf("FD() = %d, %v", fd, err)
	}
	fd, err = r.FD()
	if err != nil || fd != 6 {
		t.Fatalf("FD() = %d, %v", fd, err)
	}
	if _, err := r.FD(); err != ErrNoFD {
		t.Fatalf("got %v, want ErrNoFD", err)
	}
}

func TestStringPadding(t *testing.T) {
	w := &ArgWriter{}
	w.String("ab") // len 3 incl NUL, pads to 4
	if len(w.buf) != 4+4 {
		t.Fatalf("len = %d, want 8", len(w.buf))
	}
}
