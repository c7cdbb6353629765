// Package connmgr tracks the class-3 connections the Connection Manager
// hands off to SendUnitData: the minimal reference bookkeeping the
// session/CPF core needs (identifiers, inactivity watchdog) without
// implementing the Connection Manager's own ForwardOpen/ForwardClose
// object semantics.
package connmgr

import "time"

// Connection is a tracked class-3 connection reference.
type Connection struct {
	ID                        uint32
	ProducedID                uint32
	SessionHandle             uint32
	TimeoutMultiplier         uint8
	RequestedPacketIntervalUS uint32
	WatchdogRemaining         time.Duration
	LastActivity              time.Time
}

// Watchdog computes the inactivity watchdog duration for a connection
// from its O->T requested packet interval (microseconds) and timeout
// multiplier, per the CIP Connection Manager's watchdog formula:
// (RPI_us / 1000) << (2 + timeoutMultiplier) milliseconds.
func Watchdog(rpiUS uint32, timeoutMultiplier uint8) time.Duration {
	ms := (rpiUS / 1000) << (2 + timeoutMultiplier)
	return time.Duration(ms) * time.Millisecond
}

// Manager holds the set of currently tracked connections. Like the
// session table, it is owned exclusively by the single core loop.
type Manager struct {
	byID map[uint32]*Connection
}

// NewManager returns an empty connection manager.
func NewManager() *Manager {
	return &Manager{byID: make(map[uint32]*Connection)}
}

// Len returns the number of tracked connections.
func (m *Manager) Len() int {
	return len(m.byID)
}

// Open begins tracking a new connection, computing its initial watchdog
// from rpiUS and timeoutMultiplier.
func (m *Manager) Open(id, producedID, sessionHandle uint32, rpiUS uint32, timeoutMultiplier uint8, now time.Time) *Connection {
	conn := &Connection{
		ID:                        id,
		ProducedID:                producedID,
		SessionHandle:             sessionHandle,
		TimeoutMultiplier:         timeoutMultiplier,
		RequestedPacketIntervalUS: rpiUS,
		WatchdogRemaining:         Watchdog(rpiUS, timeoutMultiplier),
		LastActivity:              now,
	}
	m.byID[id] = conn
	return conn
}

// Get returns the connection tracked under id.
func (m *Manager) Get(id uint32) (*Connection, bool) {
	conn, ok := m.byID[id]
	return conn, ok
}

// Touch resets a connection's watchdog to its full duration, as happens
// on every SendUnitData addressed to it.
func (m *Manager) Touch(id uint32, now time.Time) bool {
	conn, ok := m.byID[id]
	if !ok {
		return false
	}
	conn.WatchdogRemaining = Watchdog(conn.RequestedPacketIntervalUS, conn.TimeoutMultiplier)
	conn.LastActivity = now
	return true
}

// Close stops tracking a connection (ForwardClose, or cleanup after its
// session's UnRegisterSession/teardown).
func (m *Manager) Close(id uint32) bool {
	if _, ok := m.byID[id]; !ok {
		return false
	}
	delete(m.byID, id)
	return true
}

// DropForSession removes every connection tracked against sessionHandle,
// returning the IDs removed. Called when a session is torn down so its
// connections don't outlive it.
func (m *Manager) DropForSession(sessionHandle uint32) []uint32 {
	var dropped []uint32
	for id, conn := range m.byID {
		if conn.SessionHandle == sessionHandle {
			dropped = append(dropped, id)
			delete(m.byID, id)
		}
	}
	return dropped
}

// Tick advances every tracked connection's watchdog by dt and drops any
// connection whose watchdog reaches zero, returning the IDs dropped.
// internal/endpoint calls this once per tick, after draining the
// delayed-reply queue.
func (m *Manager) Tick(dt time.Duration) []uint32 {
	var expired []uint32
	for id, conn := range m.byID {
		conn.WatchdogRemaining -= dt
		if conn.WatchdogRemaining <= 0 {
			expired = append(expired, id)
			delete(m.byID, id)
		}
	}
	return expired
}
