package wlproto

import (
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wire"
)

const (
	registryRequestBind uint16 = 0

	registryEventGlobal       uint16 = 0
	registryEventGlobalRemove uint16 = 1
)

// RegistryInterface is the per-client view of Globals: one request
// (bind), two events (global, global_remove). Its State is always a
// RegistryView supplied by the registry package.
var RegistryInterface = NewInterface("wl_registry", 1,
	[]RequestOp{
		{Name: "bind", Handler: registryBind},
	},
	[]EventOp{
		{Name: "global"},
		{Name: "global_remove"},
	},
)

func registryBind(ctx *Context, obj *object.Entry, args *wire.ArgReader) error {
	name, err := args.Uint32()
	if err != nil {
		return err
	}
	ifaceName, err := args.String()
	if err != nil {
		return err
	}
	version, err := args.Uint32()
	if err != nil {
		return err
	}
	newID, err := args.NewID()
	if err != nil {
		return err
	}
	if err := args.Done(); err != nil {
		return err
	}

	view, ok := obj.State.(RegistryView)
	if !ok {
		return &DispatchError{Kind: KindImplementation, Message: "registry object missing RegistryView state"}
	}
	return view.Bind(ctx, name, ifaceName, version, object.ID(newID))
}

// SendGlobal emits global(name, interface, version) on the registry
// object at registryID.
func SendGlobal(ctx *Context, registryID object.ID, name uint32, ifaceName string, version uint32) {
	ctx.Out.EncodeMessage(wire.ObjectID(registryID), registryEventGlobal, ctx.V2, func(w *wire.ArgWriter) {
		w.Uint32(name).String(ifaceName).Uint32(version)
	})
}

// SendGlobalRemove emits global_remove(name) on the registry object at
// registryID.
func SendGlobalRemove(ctx *Context, registryID object.ID, name uint32) {
	ctx.Out.EncodeMessage(wire.ObjectID(registryID), registryEventGlobalRemove, ctx.V2, func(w *wire.ArgWriter) {
		w.Uint32(name)
	})
}
