// Package platform is the net-facing adapter that drives an
// internal/endpoint.Endpoint against real TCP/UDP sockets. It keeps the
// teacher's listener shape (one goroutine per accepted connection, one for
// the UDP socket, one ticker) but every one of those goroutines only turns
// a blocking read into a value sent on a single unbuffered events channel;
// exactly one additional goroutine — the core loop — receives from that
// channel and is the only goroutine that ever calls into Endpoint.
package platform

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"

	"github.com/mtbrandt/enipcore/internal/endpoint"
	"github.com/mtbrandt/enipcore/internal/errors"
	"github.com/mtbrandt/enipcore/internal/logging"
	"github.com/mtbrandt/enipcore/internal/session"
)

// Config collects the values Run needs to bring the adapter's sockets up.
type Config struct {
	ListenIP           string
	TCPPort            uint16
	UDPPort            uint16
	TickInterval       time.Duration
	MulticastGroup     string
	MulticastInterface string

	// SessionCapacity and DelayQueueCapacity are only used for the
	// startup log line; Endpoint enforces the real limits.
	SessionCapacity    int
	DelayQueueCapacity int

	// MetricsListenAddr, when non-empty, is the address for a plaintext
	// stats listener cmd/enipmon polls: one Stats() snapshot, rendered
	// Prometheus-exposition style, per accepted connection.
	MetricsListenAddr string
}

// Adapter owns the TCP listener, UDP socket, and the single event channel
// feeding the core loop. It holds no CIP/ENIP state of its own — that all
// lives in the Endpoint it drives.
type Adapter struct {
	cfg    Config
	ep     *endpoint.Endpoint
	logger *logging.Logger

	tcpListener *net.TCPListener
	udpConn     *net.UDPConn
	multicast   *ipv4.PacketConn

	events     chan event
	nextSocket uint64
	ready      chan struct{}
}

// New returns an Adapter driving ep over the sockets described by cfg.
func New(cfg Config, ep *endpoint.Endpoint, logger *logging.Logger) *Adapter {
	return &Adapter{cfg: cfg, ep: ep, logger: logger, events: make(chan event), ready: make(chan struct{})}
}

// Ready closes once Run has bound both listeners, letting a caller (a test,
// or cmd/enipd logging a successful bind) wait past an ephemeral :0 port
// resolving to its real value.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound TCP listener address. Only valid after Ready()
// closes.
func (a *Adapter) Addr() net.Addr {
	return a.tcpListener.Addr()
}

// event is the sum type carried on the adapter's single channel. Every
// variant below is produced by exactly one I/O goroutine and consumed by
// the core loop.
type event interface{ isEvent() }

type tcpDataEvent struct {
	socket session.SocketID
	data   []byte
	resp   chan tcpFrameResult
}

func (tcpDataEvent) isEvent() {}

type tcpFrameResult struct {
	out       []byte
	remaining []byte
}

type tcpCloseEvent struct {
	socket session.SocketID
}

func (tcpCloseEvent) isEvent() {}

type udpDataEvent struct {
	socket session.SocketID
	peer   net.Addr
	data   []byte
	resp   chan []byte
}

func (udpDataEvent) isEvent() {}

type tickEvent struct {
	dt   time.Duration
	resp chan tickResult
}

func (tickEvent) isEvent() {}

type tickResult struct {
	due     []endpoint.DueUDPReply
	expired []uint32
}

type statsEvent struct {
	resp chan endpoint.Stats
}

func (statsEvent) isEvent() {}

// the UDP socket has no per-datagram identity worth tracking; every
// datagram is attributed to this single shared socket ID.
const udpSocket session.SocketID = 0

// Run binds the TCP/UDP sockets and blocks until ctx is canceled or one of
// the supervised goroutines fails, at which point the whole group is torn
// down via errgroup.
func (a *Adapter) Run(ctx context.Context) error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", a.cfg.ListenIP, a.cfg.TCPPort))
	if err != nil {
		return errors.WrapListenError(err, a.cfg.ListenIP, int(a.cfg.TCPPort))
	}
	a.tcpListener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return errors.WrapListenError(err, a.cfg.ListenIP, int(a.cfg.TCPPort))
	}
	defer a.tcpListener.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", a.cfg.ListenIP, a.cfg.UDPPort))
	if err != nil {
		return errors.WrapListenError(err, a.cfg.ListenIP, int(a.cfg.UDPPort))
	}
	a.udpConn, err = net.ListenUDP("udp", udpAddr)
	if err != nil {
		return errors.WrapListenError(err, a.cfg.ListenIP, int(a.cfg.UDPPort))
	}
	defer a.udpConn.Close()

	a.joinMulticastIfConfigured()

	a.logger.LogStartup(a.tcpListener.Addr().String(), a.udpConn.LocalAddr().String(), a.cfg.SessionCapacity, a.cfg.DelayQueueCapacity)
	close(a.ready)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.coreLoop(gctx) })
	g.Go(func() error { return a.acceptLoop(gctx) })
	g.Go(func() error { return a.udpLoop(gctx) })
	g.Go(func() error { return a.tickLoop(gctx) })

	var metricsListener net.Listener
	if a.cfg.MetricsListenAddr != "" {
		metricsListener, err = net.Listen("tcp", a.cfg.MetricsListenAddr)
		if err != nil {
			return fmt.Errorf("start metrics listener on %s: %w", a.cfg.MetricsListenAddr, err)
		}
		a.logger.Info("metrics listener on %s", a.cfg.MetricsListenAddr)
		g.Go(func() error { return a.metricsLoop(gctx, metricsListener) })
	}

	<-gctx.Done()
	a.tcpListener.Close()
	a.udpConn.Close()
	if metricsListener != nil {
		metricsListener.Close()
	}
	return g.Wait()
}

// metricsLoop answers each accepted connection with one Stats() snapshot
// rendered Prometheus-exposition style, then closes it.
func (a *Adapter) metricsLoop(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		stats, err := a.Stats(ctx)
		if err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		fmt.Fprintf(conn, "enipcore_sessions %d\n", stats.Sessions)
		fmt.Fprintf(conn, "enipcore_session_capacity %d\n", stats.SessionCapacity)
		fmt.Fprintf(conn, "enipcore_connections %d\n", stats.Connections)
		fmt.Fprintf(conn, "enipcore_delayed_replies %d\n", stats.DelayedReplies)
		fmt.Fprintf(conn, "enipcore_delayed_capacity %d\n", stats.DelayedCapacity)
		fmt.Fprintf(conn, "enipcore_ticks_processed %d\n", stats.TicksProcessed)
		conn.Close()
	}
}

func (a *Adapter) joinMulticastIfConfigured() {
	if a.cfg.MulticastGroup == "" {
		return
	}
	group := net.ParseIP(a.cfg.MulticastGroup)
	if group == nil {
		a.logger.Error("invalid multicast group %q", a.cfg.MulticastGroup)
		return
	}
	p := ipv4.NewPacketConn(a.udpConn)
	var ifi *net.Interface
	if a.cfg.MulticastInterface != "" {
		ifi, _ = net.InterfaceByName(a.cfg.MulticastInterface)
	}
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		a.logger.Error("join multicast group %s: %v", a.cfg.MulticastGroup, err)
		return
	}
	a.multicast = p
	a.logger.Info("joined multicast group %s", a.cfg.MulticastGroup)
}

// coreLoop is the single goroutine that ever touches Endpoint.
func (a *Adapter) coreLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-a.events:
			switch e := ev.(type) {
			case tcpDataEvent:
				out, remaining := a.ep.OnTCPBytes(e.socket, e.data)
				e.resp <- tcpFrameResult{out: out, remaining: remaining}
			case tcpCloseEvent:
				a.ep.OnTCPClose(e.socket)
			case udpDataEvent:
				e.resp <- a.ep.OnUDPDatagram(e.socket, e.peer, e.data)
			case tickEvent:
				due, expired := a.ep.Tick(e.dt)
				e.resp <- tickResult{due: due, expired: expired}
			case statsEvent:
				e.resp <- a.ep.Stats()
			}
		}
	}
}

// Stats requests a snapshot from the core loop. Safe to call from any
// goroutine (the metrics listener that cmd/enipmon polls calls it).
func (a *Adapter) Stats(ctx context.Context) (endpoint.Stats, error) {
	resp := make(chan endpoint.Stats, 1)
	select {
	case a.events <- statsEvent{resp: resp}:
	case <-ctx.Done():
		return endpoint.Stats{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return endpoint.Stats{}, ctx.Err()
	}
}

func (a *Adapter) acceptLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		a.tcpListener.SetDeadline(time.Now().Add(time.Second))
		conn, err := a.tcpListener.AcceptTCP()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		socket := session.SocketID(atomic.AddUint64(&a.nextSocket, 1))
		a.logger.Info("new connection from %s", conn.RemoteAddr())
		go a.handleConn(ctx, socket, conn)
	}
}

func (a *Adapter) handleConn(ctx context.Context, socket session.SocketID, conn *net.TCPConn) {
	defer conn.Close()
	defer func() {
		select {
		case a.events <- tcpCloseEvent{socket: socket}:
		case <-ctx.Done():
		}
	}()

	var buffer []byte
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := conn.Read(readBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		buffer = append(buffer, readBuf[:n]...)

		for {
			resp := make(chan tcpFrameResult, 1)
			select {
			case a.events <- tcpDataEvent{socket: socket, data: buffer, resp: resp}:
			case <-ctx.Done():
				return
			}
			result := <-resp
			if result.out != nil {
				if _, err := conn.Write(result.out); err != nil {
					return
				}
			}
			consumedNothing := len(result.remaining) == len(buffer)
			buffer = result.remaining
			if consumedNothing {
				break
			}
		}
	}
}

func (a *Adapter) udpLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		a.udpConn.SetReadDeadline(time.Now().Add(time.Second))
		n, peer, err := a.udpConn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("udp read: %w", err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		resp := make(chan []byte, 1)
		select {
		case a.events <- udpDataEvent{socket: udpSocket, peer: peer, data: data, resp: resp}:
		case <-ctx.Done():
			return nil
		}
		out := <-resp
		if out != nil {
			if _, err := a.udpConn.WriteTo(out, peer); err != nil {
				a.logger.Error("udp write to %s: %v", peer, err)
			}
		}
	}
}

func (a *Adapter) tickLoop(ctx context.Context) error {
	interval := a.cfg.TickInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			resp := make(chan tickResult, 1)
			select {
			case a.events <- tickEvent{dt: interval, resp: resp}:
			case <-ctx.Done():
				return nil
			}
			result := <-resp
			for _, due := range result.due {
				if _, err := a.udpConn.WriteTo(due.Frame, due.Peer); err != nil {
					a.logger.Error("udp write to %s: %v", due.Peer, err)
				}
			}
			for _, connID := range result.expired {
				a.logger.Debug("connection %d watchdog expired", connID)
			}
		}
	}
}
