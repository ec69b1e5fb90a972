package wlproto

import (
	"fmt"

	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wire"
)

// DispatchErrorKind classifies a Dispatch failure per spec.md §7 so
// the receive loop's propagation policy is a single switch on Kind.
type DispatchErrorKind int

const (
	KindWire DispatchErrorKind = iota
	KindProtocol
	KindImplementation
)

// DispatchError is returned by Dispatch. Wire errors are immediately
// fatal and skip event emission; protocol errors carry the (object,
// code, message) the caller should report via display.error before
// starting graceful shutdown.
type DispatchError struct {
	Kind    DispatchErrorKind
	Object  object.ID
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("wlproto: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("wlproto: %s", e.Message)
}

func wireErr(cause error) *DispatchError {
	return &DispatchError{Kind: KindWire, Cause: cause, Message: "wire error"}
}

func protocolErr(obj object.ID, code ErrorCode, message string) *DispatchError {
	return &DispatchError{Kind: KindProtocol, Object: obj, Code: code, Message: message}
}

// Dispatch routes one decoded message to its target object: looks up
// the sender id in the table, resolves the opcode against the
// interface's request table, and invokes the handler. Any argument
// parse failure from within the handler should be a *DispatchError
// already (handlers are expected to wrap wire.Err* as wire errors);
// Dispatch itself only covers the table/opcode lookup failures named
// in spec.md §4.2/§6/§7.
func Dispatch(ctx *Context, msg *wire.Message) error {
	sender := object.ID(msg.Sender)
	entry, err := ctx.Table.Get(sender)
	if err != nil {
		return protocolErr(sender, ErrorInvalidObject, "unknown object id")
	}

	iface, ok := entry.Interface.(*Interface)
	if !ok {
		return &DispatchError{Kind: KindImplementation, Object: sender, Message: "object has no interface descriptor"}
	}

	op, ok := iface.Request(msg.Opcode)
	if !ok {
		return protocolErr(sender, ErrorInvalidMethod, fmt.Sprintf("unknown opcode %d on interface %s", msg.Opcode, iface.Name()))
	}

	if err := op.Handler(ctx, entry, msg.Args); err != nil {
		if de, ok := err.(*DispatchError); ok {
			return de
		}
		if err == wire.ErrShortRead || err == wire.ErrNoFD || err == wire.ErrTrailingBytes || err == wire.ErrMisaligned {
			return wireErr(err)
		}
		return &DispatchError{Kind: KindImplementation, Object: sender, Message: "dispatch handler error", Cause: err}
	}
	return nil
}
