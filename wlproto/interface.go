// Package wlproto defines the interface-descriptor type every object
// in the table is dispatched through, plus the three interfaces the
// core itself must implement: display, callback, registry (spec.md
// §6). Every other interface is external: a collaborating package
// builds its own *Interface value and registers a registry.GlobalSpec
// against it; this package never inspects their semantics.
package wlproto

import (
	"fmt"

	"wlcore.dev/wlcored/object"
	"wlcore.dev/wlcored/wire"
)

// ErrorCode is a wire-level error code surfaced via display.error.
type ErrorCode uint32

const (
	ErrorInvalidObject       ErrorCode = 0
	ErrorInvalidMethod       ErrorCode = 1
	ErrorNoMemory            ErrorCode = 2
	ErrorImplementationError ErrorCode = 3
	// Interface-defined codes start here; each external interface
	// picks its own numbering above this floor by convention.
	ErrorInterfaceDefinedBase ErrorCode = 1000
)

// RequestOp is one opcode's decoder/handler pair.
type RequestOp struct {
	Name    string
	Handler func(ctx *Context, obj *object.Entry, args *wire.ArgReader) error
}

// EventOp names one opcode in an interface's event table, purely for
// logging/introspection — events are encoded directly by the sender,
// there is no generic event dispatch.
type EventOp struct {
	Name string
}

// Interface is the static, shared-by-every-instance descriptor: name,
// version ceiling, and the opcode tables. Object state is polymorphic
// over this descriptor, not the other way around (spec.md §9).
type Interface struct {
	name           string
	versionCeiling uint32
	requests       []RequestOp
	events         []EventOp
}

func NewInterface(name string, versionCeiling uint32, requests []RequestOp, events []EventOp) *Interface {
	return &Interface{name: name, versionCeiling: versionCeiling, requests: requests, events: events}
}

func (i *Interface) Name() string          { return i.name }
func (i *Interface) VersionCeiling() uint32 { return i.versionCeiling }

func (i *Interface) Request(opcode uint16) (RequestOp, bool) {
	if int(opcode) >= len(i.requests) {
		return RequestOp{}, false
	}
	return i.requests[opcode], true
}

func (i *Interface) EventName(opcode uint16) string {
	if int(opcode) >= len(i.events) {
		return "<unknown>"
	}
	return i.events[opcode].Name
}

// Context is the per-dispatch handle request handlers receive: enough
// of the owning Client to parse, respond, and — for the three core
// interfaces — reach into the registry and serial allocator, without
// wlproto importing those packages directly (they import wlproto
// instead, to implement the small capability interfaces below).
type Context struct {
	Table    *object.Table
	Out      *wire.Encoder
	V2       bool
	ClientID uint64

	// AllocServerID allocates a fresh server-partition object id.
	AllocServerID func() (object.ID, error)

	// NewRegistryView constructs the State for a registry object just
	// bound via display.get_registry, given the id it was bound to.
	// Wired up by whoever spawns the client (the registry package),
	// keeping wlproto decoupled from registry's concrete type.
	NewRegistryView func(ctx *Context, id object.ID) RegistryView

	// Disconnect reports a fatal condition (wire or implementation
	// error) that should tear the connection down without a graceful
	// terminator event — the caller has already decided no event can
	// be trusted to reach the peer.
	Disconnect func(err error)

	// Protocol reports a protocol error: the caller emits display.error
	// and then begins graceful shutdown (spec.md §7).
	Protocol func(obj object.ID, code ErrorCode, message string)
}

// SendError encodes display.error(object, code, message) on the
// display object (id 1), per spec.md §6's error taxonomy.
func (c *Context) SendError(obj object.ID, code ErrorCode, message string) {
	c.Out.EncodeMessage(wire.ObjectID(object.Display), displayEventError, c.V2, func(w *wire.ArgWriter) {
		w.Object(uint32(obj)).Uint32(uint32(code)).String(message)
	})
}

// SendImplementationError encodes display.delete_id-adjacent
// implementation_error(message) on the display object itself — the
// catch-all for a server-internal invariant breach mid-dispatch.
func (c *Context) SendImplementationError(message string) {
	c.Out.EncodeMessage(wire.ObjectID(object.Display), displayEventImplementationError, c.V2, func(w *wire.ArgWriter) {
		w.String(message)
	})
}

// RegistryView is the minimal shape a registry object's polymorphic
// State must satisfy so the generic wl_registry interface descriptor
// can dispatch bind() into it without importing the registry package.
type RegistryView interface {
	Bind(ctx *Context, name uint32, ifaceName string, version uint32, newID object.ID) error
}

// ErrUnexpectedState is an implementation error: a core interface's
// handler found an object whose State doesn't satisfy the capability
// interface it expected. It should never happen outside a wiring bug.
var ErrUnexpectedState = fmt.Errorf("wlproto: object state does not satisfy expected interface")
