package router

import "encoding/binary"

// forwardOpenFields is the subset of a regular Forward_Open request this
// core needs: enough to key the connection by its (serial, vendor,
// originator) triple per CIP Connection Manager semantics and to seed the
// connection's inactivity watchdog. Network connection parameters, transport
// trigger, and the connection path itself are accepted but not interpreted,
// since class-3/implicit I/O production is out of scope.
type forwardOpenFields struct {
	serial            uint16
	vendorID          uint16
	originatorSerial  uint32
	timeoutMultiplier uint8
	oToTRPI           uint32
	tToORPI           uint32
}

// forwardOpenFixedLen is the byte length of a regular Forward_Open request
// up to (not including) the connection path.
const forwardOpenFixedLen = 36

func parseForwardOpenRequest(payload []byte) (forwardOpenFields, bool) {
	if len(payload) < forwardOpenFixedLen {
		return forwardOpenFields{}, false
	}
	return forwardOpenFields{
		serial:            binary.LittleEndian.Uint16(payload[10:12]),
		vendorID:          binary.LittleEndian.Uint16(payload[12:14]),
		originatorSerial:  binary.LittleEndian.Uint32(payload[14:18]),
		timeoutMultiplier: payload[18],
		oToTRPI:           binary.LittleEndian.Uint32(payload[22:26]),
		tToORPI:           binary.LittleEndian.Uint32(payload[28:32]),
	}, true
}

func buildForwardOpenResponsePayload(oToT, tToO uint32, f forwardOpenFields) []byte {
	payload := make([]byte, 26)
	binary.LittleEndian.PutUint32(payload[0:4], oToT)
	binary.LittleEndian.PutUint32(payload[4:8], tToO)
	binary.LittleEndian.PutUint16(payload[8:10], f.serial)
	binary.LittleEndian.PutUint16(payload[10:12], f.vendorID)
	binary.LittleEndian.PutUint32(payload[12:16], f.originatorSerial)
	binary.LittleEndian.PutUint32(payload[16:20], f.oToTRPI)
	binary.LittleEndian.PutUint32(payload[20:24], f.tToORPI)
	// application reply size (1 word) and reserved byte stay zero: this
	// core hands back no application-specific reply data.
	return payload
}

type forwardCloseFields struct {
	serial           uint16
	vendorID         uint16
	originatorSerial uint32
}

const forwardCloseFixedLen = 12

func parseForwardCloseRequest(payload []byte) (forwardCloseFields, bool) {
	if len(payload) < forwardCloseFixedLen {
		return forwardCloseFields{}, false
	}
	return forwardCloseFields{
		serial:           binary.LittleEndian.Uint16(payload[2:4]),
		vendorID:         binary.LittleEndian.Uint16(payload[4:6]),
		originatorSerial: binary.LittleEndian.Uint32(payload[6:10]),
	}, true
}

func buildForwardCloseResponsePayload(f forwardCloseFields) []byte {
	payload := make([]byte, 10)
	binary.LittleEndian.PutUint16(payload[0:2], f.serial)
	binary.LittleEndian.PutUint16(payload[2:4], f.vendorID)
	binary.LittleEndian.PutUint32(payload[4:8], f.originatorSerial)
	return payload
}
