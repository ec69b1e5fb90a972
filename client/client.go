// Package client implements one live connection: the per-client
// object table, wire codec, receive/send tasks, backpressure, and
// shutdown sequencing (spec.md §4.3).
package client

import (
	"fmt"
	"net"
	"runtime"
	"sync"

	"wlcore.dev/wlcored/capability"
	"wlcore.dev/wlcored/common/log"
	"wlcore.dev/wlcored/common/socket"
	"wlcore.dev/wlcored/common/util"
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/serial"
	"wlcore.dev/wlcored/wire"
	"wlcore.dev/wlcored/wlproto"
)

// ID is a ClientId: opaque, monotonically increasing, never reused.
type ID uint64

// Client is one accepted connection. Its receive and send tasks run
// as two goroutines sharing the shutdown and flushRequest signals;
// everything else on the struct is owned by those two goroutines
// alone and needs no lock of its own (spec.md §5).
type Client struct {
	ID          ID
	Credentials socket.Credentials
	TraceID     string

	Effective capability.Set
	Bounding  capability.Set
	Xwayland  bool

	Table   *object.Table
	Serials *serial.Allocator
	ring    serial.Ring

	limits Limits

	conn *net.UnixConn
	dec  *wire.Decoder
	enc  *wire.Encoder

	v2 bool

	shutdown     chan struct{}
	flushRequest chan struct{}
	closeOnce    sync.Once

	slow bool

	// NewRegistryView constructs the registry object's State when this
	// client issues get_registry. Wired by whoever spawns the client
	// (the acceptor, via the registry package) so that wlproto and
	// client need not import registry directly.
	NewRegistryView func(ctx *wlproto.Context, id object.ID) wlproto.RegistryView

	// OnProtocolError and OnDisconnect report classified dispatch
	// failures up to the spawning package (registry.ClientRegistry),
	// which owns removal from the live/shutdown-pending tables.
	OnProtocolError func(c *Client, obj object.ID, code wlproto.ErrorCode, message string)
	OnDisconnect    func(c *Client, err error)
}

// New constructs a Client around an already-accepted connection. The
// caller has already captured credentials and decided the effective
// and bounding capability sets (spec.md §4.3's "Creation").
func New(id ID, conn *net.UnixConn, creds socket.Credentials, effective, bounding capability.Set, xwayland bool, serials *serial.Allocator, limits Limits) *Client {
	c := &Client{
		ID:           id,
		Credentials:  creds,
		TraceID:      util.NewTraceID(),
		Effective:    effective,
		Bounding:     bounding,
		Xwayland:     xwayland,
		Table:        object.New(),
		Serials:      serials,
		limits:       limits,
		conn:         conn,
		dec:          wire.NewDecoder(conn),
		enc:          wire.NewEncoder(conn),
		shutdown:     make(chan struct{}),
		flushRequest: make(chan struct{}, 1),
	}
	c.Table.AddClientObject(object.Display, wlproto.DisplayInterface, &wlproto.DisplayState{})
	return c
}

// context builds the wlproto.Context a single Dispatch call sees. V2
// is read fresh each time since display.set_v2 can flip it mid
// connection.
func (c *Client) context() *wlproto.Context {
	return &wlproto.Context{
		Table:    c.Table,
		Out:      c.enc,
		V2:       c.v2,
		ClientID: uint64(c.ID),
		AllocServerID: c.Table.ReserveServerID,
		NewRegistryView: c.NewRegistryView,
		Disconnect: func(err error) {
			if c.OnDisconnect != nil {
				c.OnDisconnect(c, err)
			}
		},
		Protocol: func(obj object.ID, code wlproto.ErrorCode, message string) {
			if c.OnProtocolError != nil {
				c.OnProtocolError(c, obj, code, message)
			}
		},
	}
}

// Context builds a fresh wlproto.Context for a broadcast-originated
// send (e.g. a registry announcement) that does not arise from
// dispatching one of this client's own requests.
func (c *Client) Context() *wlproto.Context {
	return c.context()
}

// FlushSoon runs the backpressure check and wakes the send task, for
// callers that encoded an event directly through Context() rather
// than through the receive loop's own dispatch cycle.
func (c *Client) FlushSoon() {
	c.checkBackpressure()
	c.requestFlush()
}

// AllocateSerial draws the next serial from the shared allocator and
// records it in this client's echo ring.
func (c *Client) AllocateSerial() serial.Serial {
	s := c.Serials.Next()
	c.ring.Record(s)
	return s
}

// ReconstructSerial recovers the 64-bit serial a client echoed back as
// its low 32 bits (spec.md §4.6).
func (c *Client) ReconstructSerial(echoLow uint32) (serial.Serial, error) {
	return c.ring.Reconstruct(echoLow)
}

// Run starts the receive and send tasks and blocks until both have
// exited. Callers that want a detached client spawn Run in its own
// goroutine.
func (c *Client) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.receiveLoop()
	}()
	go func() {
		defer wg.Done()
		c.sendLoop()
	}()
	wg.Wait()
	c.conn.Close()
	c.dec.Close()
}

// receiveLoop decodes and dispatches messages in wire order until the
// peer closes, a wire error occurs, or shutdown is raised by the send
// side (spec.md §4.3's "Receive task").
func (c *Client) receiveLoop() {
	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		c.dec.SetV2(c.v2)
		msg, err := c.dec.Next()
		if err != nil {
			if wire.IsPeerClosed(err) {
				log.Log.Debugf("client %d (%s) disconnected", c.ID, c.TraceID)
			} else {
				log.Log.Warningf("client %d (%s) wire error: %v", c.ID, c.TraceID, err)
			}
			c.raiseShutdown()
			return
		}

		ctx := c.context()
		if err := wlproto.Dispatch(ctx, msg); err != nil {
			if c.handleDispatchError(ctx, err) {
				c.raiseShutdown()
				return
			}
		}
		c.v2 = ctx.V2

		c.checkBackpressure()
		c.requestFlush()
	}
}

// handleDispatchError classifies a Dispatch failure per spec.md §7.
// It reports the appropriate terminator event and returns whether the
// connection must now be torn down.
func (c *Client) handleDispatchError(ctx *wlproto.Context, err error) bool {
	de, ok := err.(*wlproto.DispatchError)
	if !ok {
		log.Log.Errorf("client %d (%s) unclassified dispatch error: %v", c.ID, c.TraceID, err)
		return true
	}
	switch de.Kind {
	case wlproto.KindProtocol:
		ctx.SendError(de.Object, de.Code, de.Message)
		if c.OnProtocolError != nil {
			c.OnProtocolError(c, de.Object, de.Code, de.Message)
		}
		return true
	case wlproto.KindImplementation:
		ctx.SendImplementationError(de.Message)
		return true
	default: // KindWire
		log.Log.Warningf("client %d (%s) wire-level dispatch error: %v", c.ID, c.TraceID, de)
		return true
	}
}

// sendLoop waits on flushRequest or shutdown and drains the swap-chain
// under the flush deadline (spec.md §4.3's "Send task").
func (c *Client) sendLoop() {
	for {
		select {
		case <-c.flushRequest:
			if err := c.enc.Flush(c.limits.FlushDeadline); err != nil {
				log.Log.Warningf("client %d (%s) flush error: %v", c.ID, c.TraceID, err)
				c.raiseShutdown()
				return
			}
		case <-c.shutdown:
			// Final drain attempt within the shutdown window before
			// giving up on the connection entirely.
			_ = c.enc.Flush(c.limits.ShutdownDrain)
			return
		}
	}
}

func (c *Client) requestFlush() {
	select {
	case c.flushRequest <- struct{}{}:
	default:
	}
}

// raiseShutdown closes the shutdown signal and half-closes the read
// side of the connection so a receive task blocked in Decoder.Next
// wakes with an error instead of leaving the send task's final drain
// waiting on a goroutine that will never notice shutdown.
func (c *Client) raiseShutdown() {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		_ = c.conn.CloseRead()
	})
}

// checkBackpressure implements spec.md §4.3's backpressure policy: if
// the swap-chain exceeds the soft limit, yield once and recheck; if
// still over, the client is too slow and is killed.
func (c *Client) checkBackpressure() {
	if c.enc.BufferedBytes() <= c.limits.SoftBufferBytes {
		c.slow = false
		return
	}
	c.slow = true
	runtime.Gosched()
	if c.enc.BufferedBytes() > c.limits.SoftBufferBytes {
		log.Log.Warningf("client %d (%s) exceeded soft buffer limit (%d bytes), killing",
			c.ID, c.TraceID, c.limits.SoftBufferBytes)
		c.Kill()
	}
}

// IsSlow reports whether the client was over its soft buffer limit as
// of the last backpressure check — exposed for tests and operator
// diagnostics, not part of the wire protocol.
func (c *Client) IsSlow() bool {
	return c.slow
}

// Shutdown raises the shutdown signal after emitting a terminator
// event, the graceful path for a fatal server-side condition
// originating outside Dispatch (spec.md §4.3's "Shutdown").
func (c *Client) Shutdown(obj object.ID, code wlproto.ErrorCode, message string) {
	ctx := c.context()
	if obj == object.Null {
		ctx.SendImplementationError(message)
	} else {
		ctx.SendError(obj, code, message)
	}
	c.requestFlush()
	c.raiseShutdown()
}

// Kill tears the connection down immediately, skipping the graceful
// drain window — used for the too-slow path, ClientRegistry.Kill and
// process shutdown.
func (c *Client) Kill() {
	c.raiseShutdown()
	c.conn.Close()
}

// KillXwaylandProcess best-effort signals the peer process if this
// client was the X11 translator (spec.md §4.3's "Xwayland kill"). A
// failure to signal is logged, never fatal: the process may already
// be gone.
func (c *Client) KillXwaylandProcess(signal func(pid int32) error) {
	if !c.Xwayland || signal == nil {
		return
	}
	if err := signal(c.Credentials.PID); err != nil {
		log.Log.Debugf("client %d (%s) xwayland kill signal failed: %v", c.ID, c.TraceID, err)
	}
}

// String renders the client for log lines: trace id plus credentials.
func (c *Client) String() string {
	return fmt.Sprintf("client %d trace=%s %s", c.ID, c.TraceID, c.Credentials.String())
}
