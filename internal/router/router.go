// Package router is the message-router glue between the session/CPF core
// and the CIP object model: it recognizes the CIP services that are framing
// rather than object behavior (Unconnected Send, Multiple Service Packet,
// Forward_Open/Forward_Close), handles those itself, and hands everything
// else to a small object registry.
package router

import (
	"context"
	"time"

	"github.com/mtbrandt/enipcore/internal/cip/protocol"
	"github.com/mtbrandt/enipcore/internal/connmgr"
	"github.com/mtbrandt/enipcore/internal/handlers"
)

// Unconnected Send and Multiple Service status codes outside the small set
// protocol exports, since they belong to this layer's own framing failures.
const (
	statusNotEnoughData   = 0x13
	statusPathDestUnknown = 0x05
	statusGeneralError    = 0x01
)

type sessionHandleKeyType struct{}

var sessionHandleKey sessionHandleKeyType

// WithSessionHandle returns a context carrying the session handle the
// dispatcher validated for the frame being routed. Forward_Open uses it to
// bind the new connection to the session that opened it, so the session's
// teardown can drop it. The dispatcher sets this before calling
// NotifyUnconnected/NotifyConnected; it is not part of the Router
// interface itself since an ordinary unconnected request never needs it.
func WithSessionHandle(ctx context.Context, handle uint32) context.Context {
	return context.WithValue(ctx, sessionHandleKey, handle)
}

func sessionHandleFromContext(ctx context.Context) uint32 {
	if v, ok := ctx.Value(sessionHandleKey).(uint32); ok {
		return v
	}
	return 0
}

// connKey identifies a tracked connection the way Forward_Close looks one
// up: by the originator's connection serial number, vendor ID, and serial
// number, per the CIP Connection Manager's matching rule.
type connKey struct {
	serial           uint16
	vendorID         uint16
	originatorSerial uint32
}

// Router is the message-router glue contract internal/endpoint's dispatcher
// calls into for unconnected and connected CIP traffic. The boolean return
// is the "may fail without producing a response" escape hatch: false means
// suppress the outbound frame entirely, not encode a CIP error.
type Router interface {
	NotifyUnconnected(ctx context.Context, payload []byte) ([]byte, bool)
	NotifyConnected(ctx context.Context, connID uint32, payload []byte) ([]byte, bool)
}

// Core implements Router against a CIP object registry, tracking
// Forward_Open connections and applying the CIP access policy ahead of the
// registry. It owns no locks: like the rest of the core it is touched only
// from the single owning loop.
type Core struct {
	registry *handlers.Registry
	conns    *connmgr.Manager
	policy   *Policy
	clock    func() time.Time
	nextConn uint32
	pairs    map[connKey][2]uint32 // [O->T id, T->O id]
}

// New returns a Router dispatching unhandled requests into registry,
// tracking Forward_Open connections in conns, and applying policy (nil
// means allow everything) before any request reaches registry.
func New(registry *handlers.Registry, conns *connmgr.Manager, policy *Policy) *Core {
	return NewWithClock(registry, conns, policy, time.Now)
}

// NewWithClock is New with an injectable clock, so tests can seed
// Forward_Open's watchdog from a fixed instant instead of wall-clock time.
func NewWithClock(registry *handlers.Registry, conns *connmgr.Manager, policy *Policy, clock func() time.Time) *Core {
	return &Core{
		registry: registry,
		conns:    conns,
		policy:   policy,
		clock:    clock,
		pairs:    make(map[connKey][2]uint32),
	}
}

// NotifyUnconnected routes a CIP Message Router request carried in an
// unconnected (SendRRData) frame. It returns (response, true) to reply
// with a CIP status, or (nil, false) to suppress the reply entirely
// (parse failures the core can't turn into a well-formed CIP response).
func (r *Core) NotifyUnconnected(ctx context.Context, payload []byte) ([]byte, bool) {
	req, err := protocol.DecodeCIPRequest(payload)
	if err != nil {
		return nil, false
	}
	resp := r.dispatch(ctx, req)
	return protocol.EncodeCIPResponse(resp), true
}

// NotifyConnected routes a CIP Message Router request carried in a
// SendUnitData frame addressed to connID. The connection's existence is
// validated by internal/endpoint before this is called (SendUnitData to an
// unknown connection never reaches the router); connID itself is not used
// here, and the request goes through the same dispatch as
// NotifyUnconnected.
func (r *Core) NotifyConnected(ctx context.Context, connID uint32, payload []byte) ([]byte, bool) {
	req, err := protocol.DecodeCIPRequest(payload)
	if err != nil {
		return nil, false
	}
	resp := r.dispatch(ctx, req)
	return protocol.EncodeCIPResponse(resp), true
}

// dispatch resolves framing services (Forward_Open/Forward_Close,
// Unconnected Send, Multiple Service Packet) before falling through to the
// policy-gated object registry.
func (r *Core) dispatch(ctx context.Context, req protocol.CIPRequest) protocol.CIPResponse {
	if req.Path.Class == connectionManagerClass {
		switch req.Service {
		case protocol.CIPServiceForwardOpen, protocol.CIPServiceLargeForwardOpen:
			return r.handleForwardOpen(ctx, req)
		case protocol.CIPServiceForwardClose:
			return r.handleForwardClose(req)
		}
	}

	switch req.Service {
	case protocol.CIPServiceUnconnectedSend:
		return r.handleUnconnectedSend(ctx, req)
	case protocol.CIPServiceMultipleService:
		return r.handleMultipleService(ctx, req)
	default:
		return r.dispatchToRegistry(ctx, req)
	}
}

const connectionManagerClass uint16 = 0x06

func (r *Core) dispatchToRegistry(ctx context.Context, req protocol.CIPRequest) protocol.CIPResponse {
	if allow, status := r.policy.evaluate(req); !allow {
		return protocol.CIPResponse{Service: req.Service, Status: status, Path: req.Path}
	}
	resp, handled, err := r.registry.Handle(ctx, req)
	if err != nil {
		return protocol.CIPResponse{Service: req.Service, Status: statusGeneralError, Path: req.Path}
	}
	if !handled {
		return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusServiceNotSupp, Path: req.Path}
	}
	return resp
}

func (r *Core) handleForwardOpen(ctx context.Context, req protocol.CIPRequest) protocol.CIPResponse {
	fo, ok := parseForwardOpenRequest(req.Payload)
	if !ok {
		return protocol.CIPResponse{Service: req.Service, Status: statusNotEnoughData, Path: req.Path}
	}

	r.nextConn += 2
	oToT, tToO := r.nextConn-1, r.nextConn
	r.conns.Open(oToT, tToO, sessionHandleFromContext(ctx), fo.oToTRPI, fo.timeoutMultiplier, r.clock())

	key := connKey{fo.serial, fo.vendorID, fo.originatorSerial}
	r.pairs[key] = [2]uint32{oToT, tToO}

	return protocol.CIPResponse{
		Service: req.Service,
		Status:  protocol.CIPStatusSuccess,
		Path:    req.Path,
		Payload: buildForwardOpenResponsePayload(oToT, tToO, fo),
	}
}

func (r *Core) handleForwardClose(req protocol.CIPRequest) protocol.CIPResponse {
	fc, ok := parseForwardCloseRequest(req.Payload)
	if !ok {
		return protocol.CIPResponse{Service: req.Service, Status: statusNotEnoughData, Path: req.Path}
	}

	key := connKey{fc.serial, fc.vendorID, fc.originatorSerial}
	ids, tracked := r.pairs[key]
	if !tracked {
		return protocol.CIPResponse{Service: req.Service, Status: statusPathDestUnknown, Path: req.Path}
	}
	r.conns.Close(ids[0])
	delete(r.pairs, key)

	return protocol.CIPResponse{
		Service: req.Service,
		Status:  protocol.CIPStatusSuccess,
		Path:    req.Path,
		Payload: buildForwardCloseResponsePayload(fc),
	}
}

func (r *Core) handleUnconnectedSend(ctx context.Context, req protocol.CIPRequest) protocol.CIPResponse {
	embedded, _, ok := protocol.ParseUnconnectedSendRequestPayload(req.Payload)
	if !ok {
		return protocol.CIPResponse{Service: req.Service, Status: statusNotEnoughData, Path: req.Path}
	}
	embeddedReq, err := protocol.DecodeCIPRequest(embedded)
	if err != nil {
		return protocol.CIPResponse{Service: req.Service, Status: statusNotEnoughData, Path: req.Path}
	}

	embeddedResp := r.dispatch(ctx, embeddedReq)
	return protocol.CIPResponse{
		Service: req.Service,
		Status:  protocol.CIPStatusSuccess,
		Path:    req.Path,
		Payload: protocol.BuildUnconnectedSendResponsePayload(protocol.EncodeCIPResponse(embeddedResp)),
	}
}

func (r *Core) handleMultipleService(ctx context.Context, req protocol.CIPRequest) protocol.CIPResponse {
	requests, err := protocol.ParseMultipleServiceRequestPayload(req.Payload)
	if err != nil {
		return protocol.CIPResponse{Service: req.Service, Status: statusNotEnoughData, Path: req.Path}
	}

	responses := make([]protocol.CIPResponse, 0, len(requests))
	for _, embeddedReq := range requests {
		responses = append(responses, r.dispatch(ctx, embeddedReq))
	}

	payload, err := protocol.BuildMultipleServiceResponsePayload(responses)
	if err != nil {
		return protocol.CIPResponse{Service: req.Service, Status: statusGeneralError, Path: req.Path}
	}
	return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusSuccess, Path: req.Path, Payload: payload}
}
