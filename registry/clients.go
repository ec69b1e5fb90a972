package registry

import (
	"net"

	lru "github.com/hashicorp/golang-lru"

	"wlcore.dev/wlcored/capability"
	"wlcore.dev/wlcored/client"
	"wlcore.dev/wlcored/common/log"
	"wlcore.dev/wlcored/common/socket"
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/serial"
	"wlcore.dev/wlcored/wlproto"
)

// capCacheSize bounds the (uid, sandbox)→capability.Set cache at 256
// entries, enough to cover every distinct service account / sandbox
// descriptor pairing a session-managed app launcher spawns clients
// under, per SPEC_FULL.md §4.4.
const capCacheSize = 256

type entry struct {
	client *client.Client
	view   *View
}

// ClientRegistry is the process-wide table of every live and
// shutting-down Client (spec.md §4.4): spawn, kill, shutdown, get, and
// capability/xwayland-filtered broadcast.
type ClientRegistry struct {
	nextID client.ID

	live         map[client.ID]*entry
	shuttingDown map[client.ID]*entry

	globals *Globals
	serials *serial.Allocator
	limits  client.Limits

	capCache *lru.Cache

	core *Core
}

// NewClientRegistry constructs an empty registry bound to globals and
// a shared serial allocator. limits applies to every client spawned
// through it. Every map mutation below runs on core, the single
// goroutine spec.md §5 designates as the only writer of process-wide
// state; callers reach it through Spawn/Shutdown/Kill/Get/Broadcast
// without needing a lock of their own.
func NewClientRegistry(globals *Globals, serials *serial.Allocator, limits client.Limits) *ClientRegistry {
	cache, err := lru.New(capCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size; capCacheSize is
		// a positive constant, so this is unreachable.
		panic(err)
	}
	cr := &ClientRegistry{
		nextID:       1,
		live:         make(map[client.ID]*entry),
		shuttingDown: make(map[client.ID]*entry),
		globals:      globals,
		serials:      serials,
		limits:       limits,
		capCache:     cache,
		core:         NewCore(),
	}
	go cr.core.Run()
	return cr
}

// Stop ends the registry's core goroutine. Callers shut down every
// spawned client first; Stop does not touch live connections.
func (cr *ClientRegistry) Stop() {
	cr.core.Stop()
}

// capKey is the LRU's key: uid alone would collapse two connections
// from the same service account that carry different sandbox
// descriptors onto whichever narrowed first, so the sandbox descriptor
// (itself a plain comparable value) joins uid in the key.
type capKey struct {
	uid     uint32
	sandbox capability.SandboxDescriptor
}

// capabilityFor resolves the effective/bounding capability sets for a
// peer uid under sandbox, consulting the LRU cache first — grounded on
// krd/ssh_agent.go's hostAuthCallbacksBySessionID *lru.Cache usage.
func (cr *ClientRegistry) capabilityFor(uid uint32, sandbox capability.SandboxDescriptor) (effective, bounding capability.Set) {
	type cached struct{ effective, bounding capability.Set }
	key := capKey{uid: uid, sandbox: sandbox}
	if v, ok := cr.capCache.Get(key); ok {
		c := v.(cached)
		return c.effective, c.bounding
	}
	effective, bounding = sandbox.Narrow(capability.Default, ^capability.Set(0))
	cr.capCache.Add(key, cached{effective, bounding})
	return
}

// Spawn creates a Client around an accepted connection and its
// already-captured credentials: narrows capabilities, allocates a ClientId, inserts the
// display object, constructs its registry-view factory, and starts its
// receive/send tasks (spec.md §4.3's "Creation"). The bookkeeping runs
// on the core goroutine; c.Run() itself runs on its own goroutine once
// Spawn returns.
func (cr *ClientRegistry) Spawn(conn *net.UnixConn, creds socket.Credentials, sandbox capability.SandboxDescriptor, xwayland bool) *client.Client {
	effective, bounding := cr.capabilityFor(creds.UID, sandbox)

	var c *client.Client
	cr.core.Do(func() {
		id := cr.nextID
		cr.nextID++

		c = client.New(id, conn, creds, effective, bounding, xwayland, cr.serials, cr.limits)

		e := &entry{client: c}
		cr.live[id] = e

		c.NewRegistryView = func(ctx *wlproto.Context, registryID object.ID) wlproto.RegistryView {
			var v *View
			cr.core.Do(func() {
				v = NewView(c, cr.globals, registryID)
				e.view = v
			})
			return v
		}
		c.OnProtocolError = func(c *client.Client, obj object.ID, code wlproto.ErrorCode, message string) {
			log.Log.Noticef("%s protocol error on object %d: %s", c.String(), obj, message)
		}
		c.OnDisconnect = func(c *client.Client, err error) {
			log.Log.Warningf("%s disconnected: %v", c.String(), err)
		}

		cr.broadcastLocked(capability.CapNone, false, func(other *client.Client) {
			log.Log.Debugf("%s observed new %s", other.String(), c.String())
		})
	})

	go func() {
		c.Run()
		cr.core.Submit(func() { cr.onClientDone(c.ID) })
	}()

	return c
}

// onClientDone moves a client out of whichever table holds it once its
// receive/send tasks have both exited, releasing its registry view and
// object table (spec.md §4.3's "Kill path"). Runs on the core
// goroutine — called only via cr.core.Submit/Do.
func (cr *ClientRegistry) onClientDone(id client.ID) {
	if e, ok := cr.live[id]; ok {
		delete(cr.live, id)
		cr.teardown(e)
		return
	}
	if e, ok := cr.shuttingDown[id]; ok {
		delete(cr.shuttingDown, id)
		cr.teardown(e)
	}
}

func (cr *ClientRegistry) teardown(e *entry) {
	if e.view != nil {
		e.view.Close()
	}
	cr.globals.Forget(e.client.ID)
	e.client.Table.Each(func(id object.ID, entry *object.Entry) {
		e.client.Table.Remove(id)
	})
}

// Shutdown moves id from the live table to the shutting-down table
// without removing it outright, letting its send task finish draining
// (spec.md §4.3's "Shutdown").
func (cr *ClientRegistry) Shutdown(id client.ID, obj object.ID, code wlproto.ErrorCode, message string) {
	cr.core.Do(func() {
		e, ok := cr.live[id]
		if !ok {
			return
		}
		delete(cr.live, id)
		cr.shuttingDown[id] = e
		e.client.Shutdown(obj, code, message)
	})
}

// Kill tears the connection down without a graceful drain. Once the
// client's receive/send tasks have exited, onClientDone removes it
// from whichever table holds it and releases its registry view and
// objects.
func (cr *ClientRegistry) Kill(id client.ID) {
	cr.core.Do(func() {
		if e, ok := cr.live[id]; ok {
			e.client.Kill()
			return
		}
		if e, ok := cr.shuttingDown[id]; ok {
			e.client.Kill()
		}
	})
}

// Get returns the live client for id, if any.
func (cr *ClientRegistry) Get(id client.ID) (*client.Client, bool) {
	var c *client.Client
	var found bool
	cr.core.Do(func() {
		e, ok := cr.live[id]
		if !ok {
			return
		}
		c, found = e.client, true
	})
	return c, found
}

// Broadcast applies f to every live client whose effective capability
// set contains requiredCaps, filtered additionally by xwaylandOnly
// (spec.md §4.4).
func (cr *ClientRegistry) Broadcast(requiredCaps capability.Set, xwaylandOnly bool, f func(*client.Client)) {
	cr.core.Do(func() {
		cr.broadcastLocked(requiredCaps, xwaylandOnly, f)
	})
}

// broadcastLocked is Broadcast's body, callable directly by other core
// jobs (e.g. Spawn) without nesting a second Do call on top of the one
// already running.
func (cr *ClientRegistry) broadcastLocked(requiredCaps capability.Set, xwaylandOnly bool, f func(*client.Client)) {
	for _, e := range cr.live {
		if !e.client.Effective.Contains(requiredCaps) {
			continue
		}
		if xwaylandOnly && !e.client.Xwayland {
			continue
		}
		f(e.client)
	}
}

// Len reports the number of live clients, for tests.
func (cr *ClientRegistry) Len() int {
	n := 0
	cr.core.Do(func() { n = len(cr.live) })
	return n
}
