package client

import (
	"testing"
	"time"

	"wlcore.dev/wlcored/capability"
	"wlcore.dev/wlcored/clienttest"
	"wlcore.dev/wlcored/common/socket"
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/serial"
	"wlcore.dev/wlcored/wire"
	"wlcore.dev/wlcored/wlproto"
)

func newTestClient(t *testing.T) (*Client, *clienttest.Pair, *wire.Encoder, *wire.Decoder) {
	t.Helper()
	pair := clienttest.NewPair(t)
	c := New(1, pair.Server, socket.Credentials{UID: 1000, PID: 42}, capability.Default, capability.Default, false, serial.NewAllocator(), DefaultLimits())
	go c.Run()
	t.Cleanup(c.Kill)

	enc := wire.NewEncoder(pair.Remote)
	dec := wire.NewDecoder(pair.Remote)
	return c, pair, enc, dec
}

func TestHandshakeSyncCallback(t *testing.T) {
	_, _, enc, dec := newTestClient(t)

	enc.EncodeMessage(wire.ObjectID(object.Display), 0 /* sync */, false, func(w *wire.ArgWriter) {
		w.NewID(2)
	})
	if err := enc.Flush(time.Second); err != nil {
		t.Fatal(err)
	}

	msg, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Sender != 2 || msg.Opcode != 0 {
		t.Fatalf("expected callback.done on object 2, got sender=%d opcode=%d", msg.Sender, msg.Opcode)
	}
	data, err := msg.Args.Uint32()
	if err != nil {
		t.Fatal(err)
	}
	if data != 0 {
		t.Fatalf("callback.done data = %d, want 0", data)
	}
	if err := msg.Args.Done(); err != nil {
		t.Fatal(err)
	}
}

func TestInvalidMethodTearsDownConnection(t *testing.T) {
	c, _, enc, dec := newTestClient(t)

	enc.EncodeMessage(wire.ObjectID(object.Display), 42, false, nil)
	if err := enc.Flush(time.Second); err != nil {
		t.Fatal(err)
	}

	msg, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Opcode != 0 /* display.error */ {
		t.Fatalf("expected display.error, got opcode %d", msg.Opcode)
	}
	obj, decErr := msg.Args.Object()
	if decErr != nil {
		t.Fatal(decErr)
	}
	code, decErr := msg.Args.Uint32()
	if decErr != nil {
		t.Fatal(decErr)
	}
	if object.ID(obj) != object.Display || wlproto.ErrorCode(code) != wlproto.ErrorInvalidMethod {
		t.Fatalf("got object=%d code=%d", obj, code)
	}

	select {
	case <-c.shutdown:
	case <-time.After(time.Second):
		t.Fatal("expected client to raise shutdown after a protocol error")
	}
}

func TestPartitionCrossingNewIDIsFatal(t *testing.T) {
	_, _, enc, dec := newTestClient(t)

	enc.EncodeMessage(wire.ObjectID(object.Display), 0 /* sync */, false, func(w *wire.ArgWriter) {
		w.NewID(uint32(object.MinServerID) + 1)
	})
	if err := enc.Flush(time.Second); err != nil {
		t.Fatal(err)
	}

	msg, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Opcode != 0 /* display.error */ {
		t.Fatalf("expected display.error for partition crossing, got opcode %d", msg.Opcode)
	}
}

func TestSerialAllocateAndReconstructRoundTrip(t *testing.T) {
	c, _, _, _ := newTestClient(t)

	var last serial.Serial
	for i := 0; i < 3; i++ {
		last = c.AllocateSerial()
	}
	got, err := c.ReconstructSerial(uint32(last))
	if err != nil {
		t.Fatal(err)
	}
	if got != last {
		t.Fatalf("got %d, want %d", got, last)
	}
}

func TestBackpressureKillsSlowConsumer(t *testing.T) {
	pair := clienttest.NewPair(t)
	limits := Limits{SoftBufferBytes: 64, FlushDeadline: time.Second, ShutdownDrain: time.Second}
	c := New(1, pair.Server, socket.Credentials{UID: 1}, capability.Default, capability.Default, false, serial.NewAllocator(), limits)
	t.Cleanup(c.Kill)

	// Queue well past the soft cap without ever draining the remote
	// end, the same shape a consumer stuck mid-read produces.
	ctx := c.context()
	for i := 0; i < 20; i++ {
		ctx.SendImplementationError("padding padding padding padding")
	}
	if c.enc.BufferedBytes() <= limits.SoftBufferBytes {
		t.Fatalf("test setup: expected buffered bytes above %d, got %d", limits.SoftBufferBytes, c.enc.BufferedBytes())
	}

	c.checkBackpressure()

	if !c.IsSlow() {
		t.Fatal("expected client to be marked slow")
	}
	select {
	case <-c.shutdown:
	default:
		t.Fatal("expected a client still over its soft buffer limit after the yield to be killed")
	}
}

func TestPeerCloseIsQuiet(t *testing.T) {
	c, pair, _, _ := newTestClient(t)
	pair.Remote.Close()

	select {
	case <-c.shutdown:
	case <-time.After(time.Second):
		t.Fatal("expected client to notice peer close and raise shutdown")
	}
}
