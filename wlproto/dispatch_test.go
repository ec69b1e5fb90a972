package wlproto

import (
	"net"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wire"
)

func socketpair(t *testing.T) (a, b *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	fa := os.NewFile(uintptr(fds[0]), "sp-a")
	fb := os.NewFile(uintptr(fds[1]), "sp-b")
	ca, err := net.FileConn(fa)
	if err != nil {
		t.Fatal(err)
	}
	fa.Close()
	cb, err := net.FileConn(fb)
	if err != nil {
		t.Fatal(err)
	}
	fb.Close()
	return ca.(*net.UnixConn), cb.(*net.UnixConn)
}

func newTestContext(t *testing.T) (*Context, *object.Table, *wire.Decoder, func()) {
	t.Helper()
	a, b := socketpair(t)
	table := object.New()
	table.AddClientObject(object.Display, DisplayInterface, &DisplayState{})

	next := object.MinServerID
	ctx := &Context{
		Table: table,
		Out:   wire.NewEncoder(a),
		AllocServerID: func() (object.ID, error) {
			id := next
			next++
			return id, nil
		},
		Disconnect: func(err error) {},
		Protocol:   func(obj object.ID, code ErrorCode, msg string) {},
	}
	return ctx, table, wire.NewDecoder(b), func() { a.Close(); b.Close() }
}

func TestDispatchUnknownObject(t *testing.T) {
	ctx, _, _, cleanup := newTestContext(t)
	defer cleanup()

	msg := &wire.Message{Sender: 999, Opcode: 0, Args: nil}
	err := Dispatch(ctx, msg)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != KindProtocol || de.Code != ErrorInvalidObject {
		t.Fatalf("got %#v, want protocol invalid_object", err)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	ctx, _, _, cleanup := newTestContext(t)
	defer cleanup()

	w := &wire.ArgWriter{}
	msg := &wire.Message{Sender: wire.ObjectID(object.Display), Opcode: 42, Args: wire.NewArgReader(w.Bytes(), w.FDs())}
	err := Dispatch(ctx, msg)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != KindProtocol || de.Code != ErrorInvalidMethod {
		t.Fatalf("got %#v, want protocol invalid_method", err)
	}
}

func TestDisplaySyncFiresCallbackAndDestroys(t *testing.T) {
	ctx, table, dec, cleanup := newTestContext(t)
	defer cleanup()

	w := &wire.ArgWriter{}
	w.NewID(2)
	msg := &wire.Message{Sender: wire.ObjectID(object.Display), Opcode: displayRequestSync, Args: wire.NewArgReader(w.Bytes(), w.FDs())}
	if err := Dispatch(ctx, msg); err != nil {
		t.Fatal(err)
	}

	if err := ctx.Out.Flush(time.Second); err != nil {
		t.Fatal(err)
	}
	got, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got.Sender != 2 || got.Opcode != callbackEventDone {
		t.Fatalf("got sender=%d opcode=%d", got.Sender, got.Opcode)
	}

	if _, err := table.Get(object.ID(2)); err == nil {
		t.Fatal("callback object should have been destroyed after firing")
	}

	deleted, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if deleted.Sender != wire.ObjectID(object.Display) || deleted.Opcode != displayEventDeleteID {
		t.Fatalf("got sender=%d opcode=%d, want delete_id on the display object", deleted.Sender, deleted.Opcode)
	}
	freed, err := deleted.Args.Uint32()
	if err != nil || freed != 2 {
		t.Fatalf("delete_id arg = %d, %v, want 2", freed, err)
	}
}

func TestSyncRejectsServerPartitionNewID(t *testing.T) {
	ctx, _, _, cleanup := newTestContext(t)
	defer cleanup()

	w := &wire.ArgWriter{}
	w.NewID(uint32(object.MinServerID) + 1)
	msg := &wire.Message{Sender: wire.ObjectID(object.Display), Opcode: displayRequestSync, Args: wire.NewArgReader(w.Bytes(), w.FDs())}
	err := Dispatch(ctx, msg)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != KindProtocol || de.Code != ErrorInvalidObject {
		t.Fatalf("got %#v, want protocol invalid_object (partition crossing)", err)
	}
}

func TestGetRegistryWithoutFactoryIsImplementationError(t *testing.T) {
	ctx, _, _, cleanup := newTestContext(t)
	defer cleanup()

	w := &wire.ArgWriter{}
	w.NewID(2)
	msg := &wire.Message{Sender: wire.ObjectID(object.Display), Opcode: displayRequestGetRegistry, Args: wire.NewArgReader(w.Bytes(), w.FDs())}
	err := Dispatch(ctx, msg)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != KindImplementation {
		t.Fatalf("got %#v, want implementation error", err)
	}
}
