// Package conntable implements the fixed-size connection table and its
// paired read/write event cells, plus the {index,
// generation} tagging scheme this module substitutes for the
// classic pointer-tagging trick.
//
// Three parallel slices of size worker_connections are allocated once at
// worker init: connections, read events, write events. connections[i]'s
// read and write cells are always events[i] in their respective slices,
// so recovering a connection from an event never needs a back-pointer
// chase through a second allocation — it is always a[i].
package conntable

import "fmt"

// Tag identifies a connection slot at a point in time. It is the value a
// readiness backend stores as its per-fd user data; recovering a
// connection compares the tag's Generation against the live slot's
// Generation to detect a stale notification from an fd that has since
// been closed and reused, the same role an instance-bit scheme plays
// with one bit instead of a counter.
type Tag struct {
	Index      uint32
	Generation uint32
}

// EventCell is one read or write event slot, parallel to its connection
// at the same index.
type EventCell struct {
	index       uint32
	generation  uint32
	Active      bool
	Ready       bool
	Accept      bool // listener readable; dispatched synchronously, never deferred
	PostedReady bool
	Handler     func(c *Connection, ev *EventCell)
}

// Tag returns the cell's current addressing tag.
func (e *EventCell) Tag() Tag { return Tag{Index: e.index, Generation: e.generation} }

// Connection is one cell in the fixed-size table.
type Connection struct {
	FD       int
	Read     *EventCell
	Write    *EventCell
	Listener any // owning listener, for accept-path connections; nil otherwise
	Log      any // per-connection log handle, left to the caller's logging package
	generation uint32
	nextFree int // free-list link; -1 when in use
}

// Generation returns the connection's current generation counter,
// exposed so callers constructing logs/traces can correlate a
// connection's lifetime even after it has been recycled.
func (c *Connection) Generation() uint32 { return c.generation }

// Table is the fixed-size pool of connection records described in
// a fixed-size slice of slots, linked into a free list by nextFree;
// -1 (also fd's "unused" sentinel) marks both an exhausted free list
// and a slot with no successor.
type Table struct {
	conns  []Connection
	reads  []EventCell
	writes []EventCell
	free   int // head of the free list, -1 when exhausted
}

// New allocates a table sized for n connections.
func New(n int) *Table {
	if n <= 0 {
		panic("conntable: capacity must be positive")
	}
	t := &Table{
		conns:  make([]Connection, n),
		reads:  make([]EventCell, n),
		writes: make([]EventCell, n),
	}
	for i := range t.conns {
		t.conns[i].FD = -1
		t.conns[i].nextFree = i + 1
		t.reads[i].index = uint32(i)
		t.writes[i].index = uint32(i)
	}
	t.conns[n-1].nextFree = -1
	t.free = 0
	return t
}

// Capacity returns worker_connections, the table's fixed size.
func (t *Table) Capacity() int { return len(t.conns) }

// Free returns the number of unused slots, used to drive the accept
// arbitration overload-shedding calculation.
func (t *Table) Free() int {
	n := 0
	for i := t.free; i != -1; i = t.conns[i].nextFree {
		n++
	}
	return n
}

// Resolve recovers the connection and the specific event cell (read or
// write) a readiness notification's Tag refers to, returning ok=false if
// the fd has since been freed and reused for something else — the
// stale-event path a tag-generation mismatch is meant to catch. The cell's own
// generation is checked, not just the connection's, since Tag is
// captured at the moment a cell was registered with the readiness
// backend.
func (t *Table) Resolve(tag Tag, write bool) (c *Connection, ev *EventCell, ok bool) {
	if int(tag.Index) >= len(t.conns) {
		return nil, nil, false
	}
	c = &t.conns[tag.Index]
	if c.FD == -1 {
		return nil, nil, false
	}
	if write {
		ev = c.Write
	} else {
		ev = c.Read
	}
	if ev.generation != tag.Generation {
		return nil, nil, false
	}
	return c, ev, true
}

// GetConnection pops a free slot, binds fd, links its paired events, and
// bumps the generation on both cells so any in-flight readiness
// notification tagged with the previous generation is recognized as
// stale. It returns false if the table is exhausted.
func (t *Table) GetConnection(fd int) (*Connection, bool) {
	if t.free == -1 {
		return nil, false
	}
	i := t.free
	t.free = t.conns[i].nextFree
	c := &t.conns[i]
	c.FD = fd
	c.nextFree = -1
	c.generation++
	c.Read = &t.reads[i]
	c.Write = &t.writes[i]
	c.Read.generation = c.generation
	c.Write.generation = c.generation
	c.Read.Active, c.Read.Ready, c.Read.Accept, c.Read.PostedReady = false, false, false, false
	c.Write.Active, c.Write.Ready, c.Write.Accept, c.Write.PostedReady = false, false, false, false
	c.Read.Handler, c.Write.Handler = nil, nil
	return c, true
}

// FreeConnection returns c's slot to the free list. fd is set to -1
// before the slot is released, and both event cells' generation counters
// are bumped, so events already queued for this iteration referencing
// the old tag are discarded rather than mis-delivered to whatever
// connection reuses the slot next.
func (t *Table) FreeConnection(c *Connection) {
	idx := c.index()
	if t.conns[idx].FD == -1 {
		panic(fmt.Sprintf("conntable: double free of slot %d", idx))
	}
	c.FD = -1
	c.Read.generation++
	c.Write.generation++
	c.generation = c.Read.generation
	c.nextFree = t.free
	t.free = idx
}

func (c *Connection) index() int {
	return int(c.Read.index)
}
