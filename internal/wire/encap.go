package wire

import "errors"

// HeaderSize is the fixed length of an EtherNet/IP encapsulation header.
const HeaderSize = 24

// Command identifies an ENIP encapsulation command.
type Command uint16

// Encapsulation commands this core dispatches.
const (
	CommandNOP             Command = 0x0000
	CommandListServices    Command = 0x0004
	CommandListIdentity    Command = 0x0063
	CommandListInterfaces  Command = 0x0064
	CommandRegisterSession Command = 0x0065
	CommandUnRegisterSess  Command = 0x0066
	CommandSendRRData      Command = 0x006F
	CommandSendUnitData    Command = 0x0070
)

// Status is an ENIP encapsulation-level status code.
type Status uint32

// Encapsulation status codes.
const (
	StatusSuccess              Status = 0x0000
	StatusInvalidCommand       Status = 0x0001
	StatusInsufficientMemory   Status = 0x0002
	StatusIncorrectData        Status = 0x0003
	StatusInvalidSessionHandle Status = 0x0064
	StatusInvalidLength        Status = 0x0065
	StatusUnsupportedProtocol  Status = 0x0069
)

// ErrIncomplete signals that buf does not yet hold a full frame; the
// caller should read more bytes from the stream and try again. It is
// exported so platform TCP readers can distinguish "need more data" from
// a genuinely malformed frame.
var ErrIncomplete = errors.New("wire: incomplete frame")

// Frame is a decoded ENIP encapsulation frame: the 24-byte header plus
// its command-specific data payload.
type Frame struct {
	Command       Command
	SessionHandle uint32
	Status        Status
	SenderContext [8]byte
	Options       uint32
	Data          []byte
}

// EncodeFrame renders f as a wire frame, computing the length field from
// len(f.Data).
func EncodeFrame(f Frame) []byte {
	w := NewWriter(HeaderSize + len(f.Data))
	w.PutUint16(uint16(f.Command))
	w.PutUint16(uint16(len(f.Data)))
	w.PutUint32(f.SessionHandle)
	w.PutUint32(uint32(f.Status))
	w.PutBytes(f.SenderContext[:])
	w.PutUint32(f.Options)
	w.PutBytes(f.Data)
	return w.Bytes()
}

// DecodeFrame parses a single frame from the head of buf. It returns the
// number of bytes consumed so the caller can advance a stream cursor.
// When buf does not yet contain a complete frame, it returns
// ErrIncomplete and the caller should accumulate more bytes before
// retrying rather than treat it as a protocol error.
func DecodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, ErrIncomplete
	}
	r := NewReader(buf)

	cmd, _ := r.Uint16()
	length, _ := r.Uint16()
	session, _ := r.Uint32()
	status, _ := r.Uint32()
	ctxBytes, _ := r.Take(8)
	options, _ := r.Uint32()

	total := HeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, ErrIncomplete
	}

	f := Frame{
		Command:       Command(cmd),
		SessionHandle: session,
		Status:        Status(status),
		Options:       options,
		Data:          append([]byte(nil), buf[HeaderSize:total]...),
	}
	copy(f.SenderContext[:], ctxBytes)
	return f, total, nil
}
