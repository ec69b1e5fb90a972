package wlproto

import (
	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wire"
)

const callbackEventDone uint16 = 0

// CallbackState marks an object as a one-shot notifier; it carries no
// data of its own.
type CallbackState struct{}

// CallbackInterface defines no requests: a callback is purely a
// server-to-client notification channel, destroyed the instant it
// fires.
var CallbackInterface = NewInterface("wl_callback", 1, nil,
	[]EventOp{{Name: "done"}},
)

// FireCallback emits done(data) on the callback at id, then destroys
// it and tells the client the id is free to recycle — per spec.md's
// callback lifecycle, a callback exists for exactly one event, and its
// id lives in the client partition for the rest of the connection's
// life unless the client is told otherwise.
func FireCallback(ctx *Context, id object.ID, data uint32) {
	ctx.Out.EncodeMessage(wire.ObjectID(id), callbackEventDone, ctx.V2, func(w *wire.ArgWriter) {
		w.Uint32(data)
	})
	ctx.Table.Remove(id)
	SendDeleteID(ctx, id)
}
