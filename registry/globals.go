// Package registry implements the process-wide Globals table and the
// per-client registry object that advertises it (spec.md §4.5), plus
// the ClientRegistry that owns every live and shutting-down Client
// (spec.md §4.4).
package registry

import (
	"wlcore.dev/wlcored/capability"
	"wlcore.dev/wlcored/client"
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wlproto"
)

// GlobalSpec is what an external collaborator hands to Globals.Add or
// AddSingleton to register one advertisable implementation of an
// interface (SPEC_FULL.md §6's "External collaborator registration
// API").
type GlobalSpec struct {
	Interface    *wlproto.Interface
	Version      uint32
	RequiredCaps capability.Set
	XwaylandOnly bool
	Exposed      func() bool
	Singleton    bool

	// Construct builds the State for a newly bound object. The core
	// never inspects the returned value beyond what the interface's
	// own dispatch table does with it.
	Construct func(t *object.Table, id object.ID, version uint32) (any, error)
}

func (s GlobalSpec) exposed() bool {
	if s.Exposed == nil {
		return true
	}
	return s.Exposed()
}

// Global is one live or shadow entry in the Globals table: a
// GlobalSpec plus the opaque, never-reused name it was assigned.
type Global struct {
	Name uint32
	GlobalSpec
}

func (g *Global) visibleTo(c *client.Client) bool {
	if !c.Effective.Contains(g.RequiredCaps) {
		return false
	}
	if g.XwaylandOnly && !c.Xwayland {
		return false
	}
	return true
}

// view is the minimal shape Globals needs from a per-client registry
// object to broadcast announcements — satisfied by *View.
type view interface {
	client() *client.Client
	announce(g *Global)
	unannounce(name uint32)
}

// Globals holds the live and shadow tables plus the set of
// currently-instantiated per-client registry views to broadcast to.
// It carries no lock: per spec.md §5, all mutation is expected to
// happen from the single core-loop goroutine (see core.go).
type Globals struct {
	nextName uint32

	live         map[uint32]*Global
	liveOrder    []uint32
	singletons   map[uint32]bool
	shadow       map[uint32]*shadowEntry
	views        map[client.ID]view
}

// shadowEntry is a removed Global retained so a late bind (scenario
// S6) can still resolve it, plus the set of client ids that had an
// active registry view at removal time. An entry is reclaimed only
// once every one of those clients has disconnected (Forget) — there is
// no acknowledgement-driven sweep; bounding this set to live clients
// with an open view keeps it from growing unboundedly across a long
// server lifetime.
type shadowEntry struct {
	global        *Global
	pendingForget map[client.ID]bool
}

// NewGlobals returns an empty table; name allocation starts at 1 (0 is
// never a valid GlobalName per spec.md §3).
func NewGlobals() *Globals {
	return &Globals{
		nextName:   1,
		live:       make(map[uint32]*Global),
		singletons: make(map[uint32]bool),
		shadow:     make(map[uint32]*shadowEntry),
		views:      make(map[client.ID]view),
	}
}

// add is the shared body of Add/AddSingleton: allocate a name, insert
// into the live table, and broadcast an announcement to every
// currently-registered view for which the Global is visible.
func (g *Globals) add(spec GlobalSpec) *Global {
	name := g.nextName
	g.nextName++

	global := &Global{Name: name, GlobalSpec: spec}
	g.live[name] = global
	g.liveOrder = append(g.liveOrder, name)
	if spec.Singleton {
		g.singletons[name] = true
	}

	if spec.exposed() {
		for _, v := range g.views {
			if global.visibleTo(v.client()) {
				v.announce(global)
			}
		}
	}
	return global
}

// AddSingleton registers a Global created at startup that is never
// removed.
func (g *Globals) AddSingleton(spec GlobalSpec) *Global {
	spec.Singleton = true
	return g.add(spec)
}

// Add registers a dynamic Global, one that may later be removed via
// Remove.
func (g *Globals) Add(spec GlobalSpec) *Global {
	spec.Singleton = false
	return g.add(spec)
}

// Remove moves a live dynamic Global to the shadow table and
// broadcasts global_remove to every view that had previously announced
// it (spec.md invariant 5, testable property 5). Removing a singleton
// or an unknown name is a no-op. The shadow entry is reclaimed only by
// Forget, at each observing client's disconnect — see the shadowEntry
// doc comment.
func (g *Globals) Remove(name uint32) {
	global, ok := g.live[name]
	if !ok || global.Singleton {
		return
	}
	delete(g.live, name)
	for i, n := range g.liveOrder {
		if n == name {
			g.liveOrder = append(g.liveOrder[:i], g.liveOrder[i+1:]...)
			break
		}
	}

	entry := &shadowEntry{global: global, pendingForget: make(map[client.ID]bool)}
	g.shadow[name] = entry

	for id, v := range g.views {
		v.unannounce(name)
		entry.pendingForget[id] = true
	}
}

// lookup resolves name against the live table, then the shadow table
// (spec.md §4.5's bind policy: a shadow entry may still resolve for
// the purpose of a late bind, scenario S6).
func (g *Globals) lookup(name uint32) *Global {
	if global, ok := g.live[name]; ok {
		return global
	}
	if entry, ok := g.shadow[name]; ok {
		return entry.global
	}
	return nil
}

// Forget drops clientID from every shadow entry's pending-forget set,
// reclaiming an entry once no observing client remains — called when
// the client disconnects, so a gone client can't block garbage
// collection indefinitely.
func (g *Globals) Forget(clientID client.ID) {
	for name, entry := range g.shadow {
		delete(entry.pendingForget, clientID)
		if len(entry.pendingForget) == 0 {
			delete(g.shadow, name)
		}
	}
}

// registerView adds v to the broadcast set. Called once when a
// client's registry object is constructed.
func (g *Globals) registerView(id client.ID, v view) {
	g.views[id] = v
}

// unregisterView removes v from the broadcast set and releases any
// shadow entries it was blocking, called when the owning client is
// destroyed.
func (g *Globals) unregisterView(id client.ID) {
	delete(g.views, id)
	g.Forget(id)
}

// enumerate returns the currently-exposed Globals in the two-pass
// order spec.md §4.5 requires: singletons first (in registration
// order), then dynamics (in registration order).
func (g *Globals) enumerate() []*Global {
	out := make([]*Global, 0, len(g.liveOrder))
	for _, name := range g.liveOrder {
		global := g.live[name]
		if global.Singleton && global.exposed() {
			out = append(out, global)
		}
	}
	for _, name := range g.liveOrder {
		global := g.live[name]
		if !global.Singleton && global.exposed() {
			out = append(out, global)
		}
	}
	return out
}

// shadowLen reports the number of retained shadow entries, for tests.
func (g *Globals) shadowLen() int {
	return len(g.shadow)
}
