package wlproto

import (
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wire"
)

// Display opcodes.
const (
	displayRequestSync        uint16 = 0
	displayRequestGetRegistry uint16 = 1
	displayRequestSetV2       uint16 = 2

	displayEventError              uint16 = 0
	displayEventDeleteID            uint16 = 1
	displayEventImplementationError uint16 = 2
)

// DisplayState is the object.Entry.State for id 1. It carries nothing
// beyond what Context already exposes — the display object is a
// dispatch target, not a resource.
type DisplayState struct{}

// DisplayInterface is the root object (id 1): error surfacing,
// registry factory, sync callback, v2 opt-in.
var DisplayInterface = NewInterface("wl_display", 1,
	[]RequestOp{
		{Name: "sync", Handler: displaySync},
		{Name: "get_registry", Handler: displayGetRegistry},
		{Name: "set_v2", Handler: displaySetV2},
	},
	[]EventOp{
		{Name: "error"},
		{Name: "delete_id"},
		{Name: "implementation_error"},
	},
)

func displaySync(ctx *Context, obj *object.Entry, args *wire.ArgReader) error {
	newID, err := args.NewID()
	if err != nil {
		return err
	}
	if err := args.Done(); err != nil {
		return err
	}
	id := object.ID(newID)
	if id >= object.MinServerID || id == object.Null {
		return protocolErr(id, ErrorInvalidObject, "sync new_id must be in the client partition")
	}
	if _, err := ctx.Table.AddClientObject(id, CallbackInterface, &CallbackState{}); err != nil {
		return protocolErr(id, ErrorInvalidObject, "new_id already in use")
	}
	FireCallback(ctx, id, 0)
	return nil
}

func displayGetRegistry(ctx *Context, obj *object.Entry, args *wire.ArgReader) error {
	newID, err := args.NewID()
	if err != nil {
		return err
	}
	if err := args.Done(); err != nil {
		return err
	}
	id := object.ID(newID)
	if id >= object.MinServerID || id == object.Null {
		return protocolErr(id, ErrorInvalidObject, "get_registry new_id must be in the client partition")
	}
	if ctx.NewRegistryView == nil {
		return &DispatchError{Kind: KindImplementation, Object: id, Message: "no registry view factory wired"}
	}
	view := ctx.NewRegistryView(ctx, id)
	if _, err := ctx.Table.AddClientObject(id, RegistryInterface, view); err != nil {
		return protocolErr(id, ErrorInvalidObject, "new_id already in use")
	}
	return nil
}

// SendDeleteID emits delete_id(id) on the display object, telling the
// client that a client-partition id it allocated has been destroyed
// server-side and may now be reused (real wl_display's recycling
// notification).
func SendDeleteID(ctx *Context, id object.ID) {
	ctx.Out.EncodeMessage(wire.ObjectID(object.Display), displayEventDeleteID, ctx.V2, func(w *wire.ArgWriter) {
		w.Uint32(uint32(id))
	})
}

func displaySetV2(ctx *Context, obj *object.Entry, args *wire.ArgReader) error {
	flag, err := args.Uint32()
	if err != nil {
		return err
	}
	if err := args.Done(); err != nil {
		return err
	}
	ctx.V2 = flag != 0
	return nil
}
