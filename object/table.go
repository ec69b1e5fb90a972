// Package object implements the per-client object table: a
// partitioned id space mapping object ids to interface-typed,
// polymorphic object state (spec.md §3, §4.2).
package object

import (
	"fmt"
)

// ID is an object id, unique within one client while the object it
// names exists.
type ID uint32

// MinServerID is the first id in the server-allocated partition. Ids
// below this are client-allocated.
const MinServerID ID = 0xFF00_0000

// Null is the wire sentinel for "no object".
const Null ID = 0

// Display is the id reserved for the display object, which the
// table's owner binds right after construction (see New).
const Display ID = 1

// ErrInvalidObject is returned by Get for an unknown id, by
// AddClientObject for an id that is out of partition or already
// occupied, and by Bind for an id that was not reserved.
var ErrInvalidObject = fmt.Errorf("object: invalid object id")

// Interface is the minimal shape object.Table needs from an interface
// descriptor: just enough to name it in errors and logs. wlproto.Interface
// satisfies this.
type Interface interface {
	Name() string
}

// Entry is one live object: its interface descriptor, its polymorphic
// state, and the destroy listeners registered against it.
type Entry struct {
	Interface Interface
	State     any

	destroyers []func(ID)
}

// AddDestroyListener registers f to run, in insertion order, when this
// object is removed.
func (e *Entry) AddDestroyListener(f func(ID)) {
	e.destroyers = append(e.destroyers, f)
}

// Table is the per-client object table: two independently-allocated
// arenas, one per id partition.
type Table struct {
	client map[ID]*Entry
	server map[ID]*Entry

	nextServerID ID
}

// New returns an empty table with the display object not yet bound —
// callers bind id 1 themselves via AddClientObject(Display, ...) right
// after construction, matching spec.md's "display object is created
// with the client" lifecycle.
func New() *Table {
	return &Table{
		client:       make(map[ID]*Entry),
		server:       make(map[ID]*Entry),
		nextServerID: MinServerID,
	}
}

func (t *Table) partition(id ID) bool {
	return id >= MinServerID
}

// AddClientObject inserts state under a client-chosen id. The id must
// lie in the client partition, be nonzero, and be currently free.
func (t *Table) AddClientObject(id ID, iface Interface, state any) (*Entry, error) {
	if id == Null {
		return nil, ErrInvalidObject
	}
	if t.partition(id) {
		return nil, ErrInvalidObject
	}
	if _, exists := t.client[id]; exists {
		return nil, ErrInvalidObject
	}
	e := &Entry{Interface: iface, State: state}
	t.client[id] = e
	return e, nil
}

// AddServerObject inserts state under a freshly allocated
// server-partition id.
func (t *Table) AddServerObject(iface Interface, state any) (ID, *Entry, error) {
	id, err := t.allocateServerID()
	if err != nil {
		return 0, nil, err
	}
	e := &Entry{Interface: iface, State: state}
	t.server[id] = e
	return id, e, nil
}

// ReserveServerID allocates a fresh server-partition id without
// binding it to any state yet, for callers that need the id before
// they can construct the object it will name (e.g. a server-initiated
// new_id event whose payload references the id of the object the
// event itself introduces). The reservation must be completed with
// Bind before the id is usable by Get.
func (t *Table) ReserveServerID() (ID, error) {
	id, err := t.allocateServerID()
	if err != nil {
		return 0, err
	}
	t.server[id] = nil
	return id, nil
}

// Bind completes a reservation made by ReserveServerID, attaching the
// interface descriptor and state. Binding an id that was not reserved
// (or has already been bound) is an error.
func (t *Table) Bind(id ID, iface Interface, state any) error {
	e, reserved := t.server[id]
	if !reserved || e != nil {
		return ErrInvalidObject
	}
	t.server[id] = &Entry{Interface: iface, State: state}
	return nil
}

// allocateServerID returns the next free id >= MinServerID. Exhaustion
// of the ~16M-entry server partition is treated as unreachable, per
// spec.md §4.2.
func (t *Table) allocateServerID() (ID, error) {
	start := t.nextServerID
	for {
		if _, taken := t.server[t.nextServerID]; !taken {
			id := t.nextServerID
			if t.nextServerID == ^ID(0) {
				t.nextServerID = MinServerID
			} else {
				t.nextServerID++
			}
			return id, nil
		}
		t.nextServerID++
		if t.nextServerID == 0 {
			t.nextServerID = MinServerID
		}
		if t.nextServerID == start {
			return 0, fmt.Errorf("object: server id partition exhausted")
		}
	}
}

// Get returns the entry for id, looking in whichever partition id
// falls in.
func (t *Table) Get(id ID) (*Entry, error) {
	if t.partition(id) {
		if e, ok := t.server[id]; ok && e != nil {
			return e, nil
		}
	} else {
		if e, ok := t.client[id]; ok && e != nil {
			return e, nil
		}
	}
	return nil, ErrInvalidObject
}

// Remove destroys the object at id: it deletes the entry, then fires
// its destroy listeners in insertion order. Removing an id that is
// already gone is a no-op (idempotent beyond the first call).
func (t *Table) Remove(id ID) {
	arena := t.client
	if t.partition(id) {
		arena = t.server
	}
	e, ok := arena[id]
	if !ok {
		return
	}
	delete(arena, id)
	if e == nil {
		return
	}
	for _, fn := range e.destroyers {
		fn(id)
	}
}

// Len returns the number of live objects across both partitions;
// unbound reservations are not counted.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.client {
		if e != nil {
			n++
		}
	}
	for _, e := range t.server {
		if e != nil {
			n++
		}
	}
	return n
}

// Each calls f for every live object in both partitions. Order is
// unspecified.
func (t *Table) Each(f func(ID, *Entry)) {
	for id, e := range t.client {
		if e != nil {
			f(id, e)
		}
	}
	for id, e := range t.server {
		if e != nil {
			f(id, e)
		}
	}
}
