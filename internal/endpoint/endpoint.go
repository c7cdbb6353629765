// Package endpoint implements the single owned core value the platform
// adapter drives: the boundary operations of spec.md §4.9 wired against
// the session table, delayed-reply queue, connection manager, and message
// router glue. It is single-threaded cooperative — every exported method
// is meant to be called from exactly one goroutine, the platform's core
// loop — and keeps no locks of its own.
package endpoint

import (
	"context"
	"encoding/binary"
	"math/rand"
	"net"
	"time"

	"github.com/mtbrandt/enipcore/internal/connmgr"
	"github.com/mtbrandt/enipcore/internal/cpf"
	"github.com/mtbrandt/enipcore/internal/dispatch"
	"github.com/mtbrandt/enipcore/internal/reply"
	"github.com/mtbrandt/enipcore/internal/router"
	"github.com/mtbrandt/enipcore/internal/session"
	"github.com/mtbrandt/enipcore/internal/wire"
)

// DueUDPReply is a delayed UDP reply whose countdown has elapsed. Tick
// returns these for the platform to sendto(Peer, Frame); the socket they
// were enqueued against is carried along in case the platform multiplexes
// several UDP sockets.
type DueUDPReply struct {
	Socket session.SocketID
	Peer   net.Addr
	Frame  []byte
}

type pendingUDPReply struct {
	socket session.SocketID
	peer   net.Addr
	frame  []byte
}

// Config collects the values Init needs to bring up a fresh Endpoint.
type Config struct {
	Router             router.Router
	ListenIP           net.IP
	TCPPort            uint16
	Identity           dispatch.IdentityInfo
	Support            dispatch.SupportConfig
	CPFOptions         cpf.Options
	SessionCapacity    int
	DelayQueueCapacity int
}

// Endpoint is the session/CPF core: it owns the session table, the
// delayed-reply queue, and the connection manager, and dispatches every
// accepted frame per spec.md §4.6's command table.
type Endpoint struct {
	rtr      router.Router
	sessions *session.Table
	conns    *connmgr.Manager
	delayed  *reply.Queue[pendingUDPReply]

	support  dispatch.SupportConfig
	identity dispatch.IdentityInfo
	cpfOpts  cpf.Options

	listenIP net.IP
	tcpPort  uint16

	sessionCapacity int
	delayCapacity   int

	clock     func() time.Time
	tickCount uint64
}

// Stats is a point-in-time snapshot of the endpoint's internal occupancy,
// exposed for the operator dashboard's metrics poll. It carries no
// protocol state of its own, only counts already tracked by the session
// table, delayed-reply queue, and connection manager.
type Stats struct {
	Sessions        int
	SessionCapacity int
	Connections     int
	DelayedReplies  int
	DelayedCapacity int
	TicksProcessed  uint64
}

// Stats returns the current occupancy snapshot.
func (e *Endpoint) Stats() Stats {
	return Stats{
		Sessions:        e.sessions.Len(),
		SessionCapacity: e.sessionCapacity,
		Connections:     e.conns.Len(),
		DelayedReplies:  e.delayed.Len(),
		DelayedCapacity: e.delayCapacity,
		TicksProcessed:  e.tickCount,
	}
}

// New returns an Endpoint built from cfg and immediately performs Init
// against deviceIP.
func New(cfg Config, deviceIP net.IP) *Endpoint {
	return NewWithClock(cfg, deviceIP, time.Now)
}

// NewWithClock is New with an injectable clock, so tests can drive the
// connection watchdog from a fixed instant instead of wall-clock time.
func NewWithClock(cfg Config, deviceIP net.IP, clock func() time.Time) *Endpoint {
	e := &Endpoint{
		rtr:             cfg.Router,
		support:         cfg.Support,
		identity:        cfg.Identity,
		cpfOpts:         cfg.CPFOptions,
		listenIP:        cfg.ListenIP,
		tcpPort:         cfg.TCPPort,
		sessionCapacity: cfg.SessionCapacity,
		delayCapacity:   cfg.DelayQueueCapacity,
		clock:           clock,
	}
	e.Init(deviceIP)
	return e
}

// Init (re)initializes the endpoint's mutable state: a fresh session
// table and connection manager, and a delayed-reply queue whose RNG is
// reseeded from deviceIP, per spec.md §4.5/§4.9.
func (e *Endpoint) Init(deviceIP net.IP) {
	e.sessions = session.NewTable(e.sessionCapacity)
	e.conns = connmgr.NewManager()
	e.delayed = reply.NewQueue[pendingUDPReply](e.delayCapacity, rand.New(rand.NewSource(seedFromIPv4(deviceIP))))
}

func seedFromIPv4(ip net.IP) int64 {
	v4 := ip.To4()
	if v4 == nil {
		return 1
	}
	return int64(binary.BigEndian.Uint32(v4))
}

// OnTCPBytes drives one frame out of the head of buf, if a complete one
// is present, and returns the reply to write back (nil for commands that
// produce no reply) along with whatever bytes of buf were not consumed.
// The caller loops, feeding remaining back in with newly read bytes,
// until a call leaves remaining unchanged (a short frame: wait for more
// data from the socket).
func (e *Endpoint) OnTCPBytes(socket session.SocketID, buf []byte) (out []byte, remaining []byte) {
	frame, consumed, err := wire.DecodeFrame(buf)
	if err != nil {
		return nil, buf
	}
	return e.handleTCPFrame(socket, frame), buf[consumed:]
}

// OnUDPDatagram processes exactly one datagram. A non-nil return is an
// immediate reply to sendto(peer, ...), including the InvalidCommand reply
// for commands that are disabled or not allowed over UDP; a nil return
// means either "no reply" (a datagram that does not hold a complete frame)
// or "reply deferred" (ListIdentity, queued for Tick to emit later).
func (e *Endpoint) OnUDPDatagram(socket session.SocketID, peer net.Addr, buf []byte) []byte {
	frame, _, err := wire.DecodeFrame(buf)
	if err != nil {
		return nil
	}
	if frame.Options != 0 {
		return e.reply(frame, wire.StatusUnsupportedProtocol, nil)
	}
	if !dispatch.AllowedOnTransport(frame.Command, dispatch.TransportUDP) || !e.support.Enabled(frame.Command) {
		return e.reply(frame, wire.StatusInvalidCommand, nil)
	}

	switch frame.Command {
	case wire.CommandListServices:
		return e.reply(frame, wire.StatusSuccess, dispatch.EncodeListServicesPayload())
	case wire.CommandListInterfaces:
		return e.reply(frame, wire.StatusSuccess, dispatch.EncodeListInterfacesPayload())
	case wire.CommandListIdentity:
		e.enqueueDelayedIdentity(socket, peer, frame)
		return nil
	default:
		return e.reply(frame, wire.StatusInvalidCommand, nil)
	}
}

func (e *Endpoint) enqueueDelayedIdentity(socket session.SocketID, peer net.Addr, frame wire.Frame) {
	requestedMs := int(binary.LittleEndian.Uint16(frame.SenderContext[0:2]))
	maxDelayMs := reply.ClampMaxDelayMs(requestedMs)
	out := e.reply(frame, wire.StatusSuccess, dispatch.EncodeListIdentityPayload(e.identity, e.listenIP, e.tcpPort))
	e.delayed.Enqueue(pendingUDPReply{socket: socket, peer: peer, frame: out}, maxDelayMs)
}

// OnTCPClose releases any session bound to socket, and drops whatever
// connections that session owned.
func (e *Endpoint) OnTCPClose(socket session.SocketID) {
	if handle, ok := e.sessions.LookupBySocket(socket); ok {
		e.conns.DropForSession(handle)
	}
	e.sessions.CloseBySocket(socket)
}

// Shutdown closes every session and drops every delayed reply, per
// spec.md §4.9.
func (e *Endpoint) Shutdown() {
	e.sessions = session.NewTable(e.sessionCapacity)
	e.conns = connmgr.NewManager()
	e.delayed = reply.NewQueue[pendingUDPReply](e.delayCapacity, rand.New(rand.NewSource(1)))
}

// Tick advances the delayed-reply queue and the connection watchdog
// sweep by dt, per spec.md §4.8: the delayed-reply queue is drained
// first, then the tick is forwarded to the connection manager.
func (e *Endpoint) Tick(dt time.Duration) (due []DueUDPReply, expiredConnections []uint32) {
	e.tickCount++
	for _, p := range e.delayed.Tick(dt) {
		due = append(due, DueUDPReply{Socket: p.socket, Peer: p.peer, Frame: p.frame})
	}
	expiredConnections = e.conns.Tick(dt)
	return due, expiredConnections
}

func (e *Endpoint) handleTCPFrame(socket session.SocketID, frame wire.Frame) []byte {
	if frame.Options != 0 {
		return e.reply(frame, wire.StatusUnsupportedProtocol, nil)
	}
	if !dispatch.AllowedOnTransport(frame.Command, dispatch.TransportTCP) || !e.support.Enabled(frame.Command) {
		return e.reply(frame, wire.StatusInvalidCommand, nil)
	}
	if dispatch.ValidatesSession(frame.Command) {
		bound, ok := e.sessions.Lookup(frame.SessionHandle)
		if !ok || bound != socket {
			return e.reply(frame, wire.StatusInvalidSessionHandle, nil)
		}
	}

	switch frame.Command {
	case wire.CommandNOP:
		return nil
	case wire.CommandListServices:
		return e.reply(frame, wire.StatusSuccess, dispatch.EncodeListServicesPayload())
	case wire.CommandListIdentity:
		return e.reply(frame, wire.StatusSuccess, dispatch.EncodeListIdentityPayload(e.identity, e.listenIP, e.tcpPort))
	case wire.CommandListInterfaces:
		return e.reply(frame, wire.StatusSuccess, dispatch.EncodeListInterfacesPayload())
	case wire.CommandRegisterSession:
		return e.handleRegisterSession(socket, frame)
	case wire.CommandUnRegisterSess:
		e.handleUnregisterSession(frame)
		return nil
	case wire.CommandSendRRData:
		return e.handleSendRRData(frame)
	case wire.CommandSendUnitData:
		return e.handleSendUnitData(frame)
	default:
		return e.reply(frame, wire.StatusInvalidCommand, nil)
	}
}

func (e *Endpoint) handleRegisterSession(socket session.SocketID, frame wire.Frame) []byte {
	if len(frame.Data) < 4 {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	version := binary.LittleEndian.Uint16(frame.Data[0:2])
	flags := binary.LittleEndian.Uint16(frame.Data[2:4])
	if version != 1 || flags != 0 {
		return e.replyWithHandle(frame, 0, wire.StatusUnsupportedProtocol, nil)
	}

	if handle, already := e.sessions.LookupBySocket(socket); already {
		return e.replyWithHandle(frame, handle, wire.StatusUnsupportedProtocol, frame.Data)
	}

	handle, err := e.sessions.Register(socket)
	if err != nil {
		return e.reply(frame, wire.StatusInsufficientMemory, nil)
	}
	return e.replyWithHandle(frame, handle, wire.StatusSuccess, frame.Data)
}

func (e *Endpoint) handleUnregisterSession(frame wire.Frame) {
	e.conns.DropForSession(frame.SessionHandle)
	e.sessions.CloseByHandle(frame.SessionHandle)
}

func (e *Endpoint) handleSendRRData(frame wire.Frame) []byte {
	if len(frame.Data) < 6 {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	items, err := cpf.Decode(frame.Data[6:], e.cpfOpts)
	if err != nil {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	addr, ok := cpf.FindAddress(items)
	if !ok || addr.TypeID != cpf.TypeNullAddress {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	data, ok := cpf.FindData(items)
	if !ok || data.TypeID != cpf.TypeUnconnectedData {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}

	ctx := router.WithSessionHandle(context.Background(), frame.SessionHandle)
	respPayload, ok := e.rtr.NotifyUnconnected(ctx, data.Data)
	if !ok {
		return nil
	}

	out := cpf.Encode([]cpf.Item{cpf.NullAddressItem(), cpf.UnconnectedDataItem(respPayload)})
	return e.reply(frame, wire.StatusSuccess, out)
}

func (e *Endpoint) handleSendUnitData(frame wire.Frame) []byte {
	if len(frame.Data) < 6 {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	items, err := cpf.Decode(frame.Data[6:], e.cpfOpts)
	if err != nil {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	addr, ok := cpf.FindAddress(items)
	if !ok || addr.TypeID != cpf.TypeConnectedAddress {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	data, ok := cpf.FindData(items)
	if !ok || data.TypeID != cpf.TypeConnectedData {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	connID, ok := cpf.ConnectionID(addr)
	if !ok {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	conn, ok := e.conns.Get(connID)
	if !ok {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	if len(data.Data) < 2 {
		return e.reply(frame, wire.StatusIncorrectData, nil)
	}
	e.conns.Touch(connID, e.clock())

	seq := data.Data[0:2]
	ctx := router.WithSessionHandle(context.Background(), conn.SessionHandle)
	respPayload, ok := e.rtr.NotifyConnected(ctx, connID, data.Data[2:])
	if !ok {
		return nil
	}

	respData := make([]byte, 0, 2+len(respPayload))
	respData = append(respData, seq...)
	respData = append(respData, respPayload...)

	out := cpf.Encode([]cpf.Item{cpf.ConnectedAddressItem(conn.ProducedID), cpf.ConnectedDataItem(respData)})
	return e.reply(frame, wire.StatusSuccess, out)
}

// reply echoes command, sender context, and options from the request
// frame per spec.md §4.2's encode rule, overriding only status and data.
func (e *Endpoint) reply(frame wire.Frame, status wire.Status, data []byte) []byte {
	return wire.EncodeFrame(wire.Frame{
		Command:       frame.Command,
		SessionHandle: frame.SessionHandle,
		Status:        status,
		SenderContext: frame.SenderContext,
		Options:       frame.Options,
		Data:          data,
	})
}

// replyWithHandle is reply but with an explicit session handle, since
// RegisterSession's reply carries the newly allocated handle rather than
// the 0 the request (necessarily) carried.
func (e *Endpoint) replyWithHandle(frame wire.Frame, handle uint32, status wire.Status, data []byte) []byte {
	return wire.EncodeFrame(wire.Frame{
		Command:       frame.Command,
		SessionHandle: handle,
		Status:        status,
		SenderContext: frame.SenderContext,
		Options:       frame.Options,
		Data:          data,
	})
}
