package registry

import (
	"wlcore.dev/wlcored/client"
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wlproto"
)

// View is the State behind one client's wl_registry object: it
// filters Globals announcements by the owning client's capability set
// and xwayland flag, and remembers which names it has announced so a
// later removal is paired with exactly one prior announcement
// (testable property 5).
type View struct {
	owner      *client.Client
	globals    *Globals
	registryID object.ID
	announced  map[uint32]bool
}

// NewView constructs the per-client registry view and performs the
// initial two-pass enumeration (spec.md §4.5's "Initial enumeration"):
// singletons first, then dynamics, in registration order.
func NewView(owner *client.Client, globals *Globals, registryID object.ID) *View {
	v := &View{
		owner:      owner,
		globals:    globals,
		registryID: registryID,
		announced:  make(map[uint32]bool),
	}
	globals.registerView(owner.ID, v)

	ctx := owner.Context()
	for _, g := range globals.enumerate() {
		if !g.visibleTo(owner) {
			continue
		}
		wlproto.SendGlobal(ctx, registryID, g.Name, g.Interface.Name(), g.Version)
		v.announced[g.Name] = true
	}
	owner.FlushSoon()
	return v
}

// Close unregisters the view from its Globals table, called when the
// owning client is destroyed.
func (v *View) Close() {
	v.globals.unregisterView(v.owner.ID)
}

func (v *View) client() *client.Client { return v.owner }

func (v *View) announce(g *Global) {
	ctx := v.owner.Context()
	wlproto.SendGlobal(ctx, v.registryID, g.Name, g.Interface.Name(), g.Version)
	v.announced[g.Name] = true
	v.owner.FlushSoon()
}

func (v *View) unannounce(name uint32) {
	if !v.announced[name] {
		return
	}
	ctx := v.owner.Context()
	wlproto.SendGlobalRemove(ctx, v.registryID, name)
	delete(v.announced, name)
	v.owner.FlushSoon()
}

// Bind implements wlproto.RegistryView: the bind policy from spec.md
// §4.5.
func (v *View) Bind(ctx *wlproto.Context, name uint32, ifaceName string, version uint32, newID object.ID) error {
	global := v.globals.lookup(name)
	if global == nil || !global.visibleTo(v.owner) {
		// Capability/xwayland gating: a Global hidden from this client
		// is treated exactly like a name that does not exist.
		return protocolFatal(newID, wlproto.ErrorInvalidObject, "bind: unknown global name")
	}
	if global.Interface.Name() != ifaceName {
		return protocolFatal(newID, wlproto.ErrorInvalidObject, "bind: interface name mismatch")
	}
	if version > global.Version {
		return protocolFatal(newID, wlproto.ErrorInvalidObject, "bind: version exceeds global's ceiling")
	}
	state, err := global.Construct(ctx.Table, newID, version)
	if err != nil {
		return &wlproto.DispatchError{Kind: wlproto.KindImplementation, Object: newID, Message: "bind: construct failed", Cause: err}
	}
	if _, err := ctx.Table.AddClientObject(newID, global.Interface, state); err != nil {
		return protocolFatal(newID, wlproto.ErrorInvalidObject, "bind: new_id already in use")
	}
	return nil
}

func protocolFatal(obj object.ID, code wlproto.ErrorCode, message string) *wlproto.DispatchError {
	return &wlproto.DispatchError{Kind: wlproto.KindProtocol, Object: obj, Code: code, Message: message}
}
