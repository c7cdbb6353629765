// Package session implements the bounded ENIP session table: the
// bijection between 1-based session handles and the TCP sockets that
// registered them.
package session

import "fmt"

// SocketID identifies the transport-level connection a session is bound
// to. The platform layer assigns these; the table treats them as opaque
// comparable values.
type SocketID uint64

// DefaultCapacity is the default bound on concurrently registered
// sessions (N in the session/CPF core's data model).
const DefaultCapacity = 20

// Table is the session registry owned exclusively by the single core
// loop; it carries no internal locking because nothing but that one
// goroutine ever touches it.
type Table struct {
	capacity int
	byHandle map[uint32]SocketID
	bySocket map[SocketID]uint32
}

// NewTable returns an empty table bounded at capacity entries.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		capacity: capacity,
		byHandle: make(map[uint32]SocketID, capacity),
		bySocket: make(map[SocketID]uint32, capacity),
	}
}

// Len returns the number of currently registered sessions.
func (t *Table) Len() int {
	return len(t.byHandle)
}

// Capacity returns the table's maximum size.
func (t *Table) Capacity() int {
	return t.capacity
}

// Register allocates the lowest free 1-based handle for socket and
// returns it. It fails once the table is at capacity, or if socket
// already holds a handle.
func (t *Table) Register(socket SocketID) (uint32, error) {
	if _, exists := t.bySocket[socket]; exists {
		return 0, fmt.Errorf("session: socket already registered")
	}
	if len(t.byHandle) >= t.capacity {
		return 0, fmt.Errorf("session: table at capacity (%d)", t.capacity)
	}

	var handle uint32 = 1
	for {
		if _, used := t.byHandle[handle]; !used {
			break
		}
		handle++
	}
	t.byHandle[handle] = socket
	t.bySocket[socket] = handle
	return handle, nil
}

// Lookup returns the socket bound to handle.
func (t *Table) Lookup(handle uint32) (SocketID, bool) {
	socket, ok := t.byHandle[handle]
	return socket, ok
}

// LookupBySocket returns the handle bound to socket.
func (t *Table) LookupBySocket(socket SocketID) (uint32, bool) {
	handle, ok := t.bySocket[socket]
	return handle, ok
}

// CloseByHandle removes the session registered under handle, reporting
// whether one existed.
func (t *Table) CloseByHandle(handle uint32) bool {
	socket, ok := t.byHandle[handle]
	if !ok {
		return false
	}
	delete(t.byHandle, handle)
	delete(t.bySocket, socket)
	return true
}

// CloseBySocket removes the session bound to socket (used when the
// platform reports the TCP connection has closed), reporting whether one
// existed.
func (t *Table) CloseBySocket(socket SocketID) bool {
	handle, ok := t.bySocket[socket]
	if !ok {
		return false
	}
	delete(t.byHandle, handle)
	delete(t.bySocket, socket)
	return true
}
