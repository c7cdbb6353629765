package dispatch

import "github.com/mtbrandt/enipcore/internal/wire"

// Transport identifies which socket kind a frame arrived on.
type Transport int

const (
	TransportTCP Transport = iota
	TransportUDP
)

// AllowedOnTransport reports whether cmd may be processed when received on
// transport, per spec.md's dispatch table: most commands are TCP-only;
// ListServices/ListIdentity/ListInterfaces also answer over UDP.
func AllowedOnTransport(cmd wire.Command, transport Transport) bool {
	switch cmd {
	case wire.CommandListServices, wire.CommandListIdentity, wire.CommandListInterfaces:
		return true
	default:
		return transport == TransportTCP
	}
}

// ValidatesSession reports whether cmd requires an already-registered
// session bound to the receiving socket.
func ValidatesSession(cmd wire.Command) bool {
	switch cmd {
	case wire.CommandUnRegisterSess, wire.CommandSendRRData, wire.CommandSendUnitData:
		return true
	default:
		return false
	}
}
