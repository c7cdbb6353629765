package handlers

import (
	"context"

	"github.com/mtbrandt/enipcore/internal/cip/protocol"
)

// ConnectionManagerStubs answers the Connection Manager's diagnostic
// services that this core does not implement: Get_Connection_Data,
// Search_Connection_Data, and Get_Connection_Owner. ForwardOpen and
// ForwardClose are intercepted ahead of the object registry by
// internal/router, since they must mutate connection state the registry
// handlers aren't given access to; everything else the Connection
// Manager could in principle do stays unimplemented on purpose (its
// class-3/implicit I/O production loops are out of this core's scope).
type ConnectionManagerStubs struct{}

// NewConnectionManagerStubs returns a stub handler.
func NewConnectionManagerStubs() *ConnectionManagerStubs {
	return &ConnectionManagerStubs{}
}

// HandleCIPRequest implements handlers.Handler.
func (h *ConnectionManagerStubs) HandleCIPRequest(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, error) {
	switch req.Service {
	case protocol.CIPServiceGetConnectionData, protocol.CIPServiceSearchConnData, protocol.CIPServiceGetConnectionOwner:
		return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusServiceNotSupp, Path: req.Path}, nil
	default:
		return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusServiceNotSupp, Path: req.Path}, nil
	}
}
