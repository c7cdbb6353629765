// Package handlers is the small CIP object registry the message-router
// glue dispatches into once it has unwrapped a request down to a single
// embedded Message Router service call.
package handlers

import (
	"context"

	"github.com/mtbrandt/enipcore/internal/cip/protocol"
)

// ClassAny and ServiceAny are wildcard keys for registering fallback
// handlers that should see every request regardless of class or service.
const (
	ClassAny   uint16 = 0xFFFF
	ServiceAny uint8  = 0xFF
)

// Handler answers a single CIP request unconditionally; used for objects
// that want to own an entire class.
type Handler interface {
	HandleCIPRequest(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, error)
}

// HandlerFunc answers a request and reports whether it actually handled
// it, letting the registry fall through to the next candidate when it
// didn't.
type HandlerFunc func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error)

type handlerKey struct {
	class   uint16
	service uint8
}

// Registry dispatches a CIP request to the first matching handler, tried
// in order from most to least specific: exact (class, service), then
// class-any, then service-any, then any.
type Registry struct {
	exact      map[handlerKey][]HandlerFunc
	classAny   map[uint16][]HandlerFunc
	serviceAny map[uint8][]HandlerFunc
	any        []HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:      make(map[handlerKey][]HandlerFunc),
		classAny:   make(map[uint16][]HandlerFunc),
		serviceAny: make(map[uint8][]HandlerFunc),
	}
}

// WrapHandler adapts a Handler (which always answers) into a HandlerFunc
// (which reports handled=true unconditionally).
func WrapHandler(handler Handler) HandlerFunc {
	return func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		resp, err := handler.HandleCIPRequest(ctx, req)
		return resp, true, err
	}
}

// Register adds handler for the given (class, service) key, which may use
// ClassAny and/or ServiceAny as wildcards.
func (r *Registry) Register(class uint16, service uint8, handler HandlerFunc) {
	switch {
	case class == ClassAny && service == ServiceAny:
		r.any = append(r.any, handler)
	case class == ClassAny:
		r.serviceAny[service] = append(r.serviceAny[service], handler)
	case service == ServiceAny:
		r.classAny[class] = append(r.classAny[class], handler)
	default:
		key := handlerKey{class: class, service: service}
		r.exact[key] = append(r.exact[key], handler)
	}
}

// RegisterHandler is Register for a Handler that always answers.
func (r *Registry) RegisterHandler(class uint16, service uint8, handler Handler) {
	r.Register(class, service, WrapHandler(handler))
}

// Handle dispatches req through the registry, most specific match first.
func (r *Registry) Handle(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
	if r == nil {
		return protocol.CIPResponse{}, false, nil
	}

	key := handlerKey{class: req.Path.Class, service: uint8(req.Service)}
	if fns, ok := r.exact[key]; ok {
		if resp, handled, err := tryHandlers(ctx, req, fns); handled || err != nil {
			return resp, handled, err
		}
	}
	if fns, ok := r.classAny[req.Path.Class]; ok {
		if resp, handled, err := tryHandlers(ctx, req, fns); handled || err != nil {
			return resp, handled, err
		}
	}
	if fns, ok := r.serviceAny[uint8(req.Service)]; ok {
		if resp, handled, err := tryHandlers(ctx, req, fns); handled || err != nil {
			return resp, handled, err
		}
	}
	return tryHandlers(ctx, req, r.any)
}

func tryHandlers(ctx context.Context, req protocol.CIPRequest, fns []HandlerFunc) (protocol.CIPResponse, bool, error) {
	for _, fn := range fns {
		resp, handled, err := fn(ctx, req)
		if handled || err != nil {
			return resp, handled, err
		}
	}
	return protocol.CIPResponse{}, false, nil
}
