// Package dispatch implements the ENIP command dispatcher: the per-command
// table that decides, for one already-framed request, what to validate,
// what to build, and what status to answer with. It is pure with respect to
// sockets — internal/endpoint owns the session table, delayed-reply queue,
// and connection manager this package operates against.
package dispatch

import "fmt"

// Kind classifies a dispatch failure the way spec.md's error taxonomy does.
type Kind int

const (
	// KindNone is the zero value: no error.
	KindNone Kind = iota
	// KindFrameUnderrun: not enough bytes to decode the header or to
	// cover the declared length; caller buffers and retries.
	KindFrameUnderrun
	// KindUnsupportedOptions: the options field was nonzero.
	KindUnsupportedOptions
	// KindUnknownCommand: command not in the recognized set, or
	// disabled by policy, or not valid on the transport it arrived on.
	KindUnknownCommand
	// KindSessionUnknown: session handle not live or not bound to this
	// socket.
	KindSessionUnknown
	// KindCpfMalformed: payload doesn't parse as CPF, or required items
	// are missing/wrong-shaped.
	KindCpfMalformed
	// KindResourceExhausted: no free session or delayed-reply slot.
	KindResourceExhausted
	// KindRouterError: the message-router collaborator declined to
	// produce a reply.
	KindRouterError
)

func (k Kind) String() string {
	switch k {
	case KindFrameUnderrun:
		return "frame underrun"
	case KindUnsupportedOptions:
		return "unsupported options"
	case KindUnknownCommand:
		return "unknown command"
	case KindSessionUnknown:
		return "session unknown"
	case KindCpfMalformed:
		return "cpf malformed"
	case KindResourceExhausted:
		return "resource exhausted"
	case KindRouterError:
		return "router error"
	default:
		return "none"
	}
}

// Error wraps a Kind with context. Its Error() text is the Kind's name,
// followed by Detail when one is set.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func newError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}
