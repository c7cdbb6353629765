package dispatch

import (
	"encoding/binary"
	"net"
)

// itemTypeListServices and itemTypeIdentity are the CPF-style item types
// the ENIP encapsulation layer (not the connected/unconnected CPF layer)
// uses for its own List* reply bodies.
const (
	itemTypeListServices uint16 = 0x0100
	itemTypeIdentity     uint16 = 0x000C

	// capabilityFlags: bit 5 (TCP) | bit 8 (UDP class 0/1).
	capabilityFlags uint16 = 0x0120

	identityState byte = 0xFF

	protocolVersion uint16 = 1
)

// IdentityInfo carries the values this core reports in its ListIdentity
// reply, mirroring the Identity Object attributes in internal/handlers.
type IdentityInfo struct {
	VendorID      uint16
	DeviceType    uint16
	ProductCode   uint16
	RevisionMajor uint8
	RevisionMinor uint8
	Status        uint16
	SerialNumber  uint32
	ProductName   string
}

// EncodeListServicesPayload renders the ListServices reply body: a single
// item advertising protocol version 1 and TCP+UDP class 0/1 support under
// the fixed name "Communications".
func EncodeListServicesPayload() []byte {
	name := make([]byte, 16)
	copy(name, "Communications")

	value := make([]byte, 0, 2+2+16)
	value = appendUint16(value, protocolVersion)
	value = appendUint16(value, capabilityFlags)
	value = append(value, name...)

	return encodeSingleItem(itemTypeListServices, value)
}

// EncodeListInterfacesPayload renders the ListInterfaces reply body: an
// empty item list (item count 0 and nothing else), since this core
// advertises no additional interfaces.
func EncodeListInterfacesPayload() []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, 0)
	return buf
}

// EncodeListIdentityPayload renders the ListIdentity reply body: a single
// Identity item carrying the device's sockaddr_in, vendor/device/product
// identifiers, revision, status, serial number, and short product name.
func EncodeListIdentityPayload(info IdentityInfo, listenIP net.IP, tcpPort uint16) []byte {
	value := make([]byte, 0, 2+16+2+2+2+2+2+4+1+len(info.ProductName)+1)
	value = appendUint16(value, protocolVersion)
	value = append(value, encodeSockaddrIn(listenIP, tcpPort)...)
	value = appendUint16(value, info.VendorID)
	value = appendUint16(value, info.DeviceType)
	value = appendUint16(value, info.ProductCode)
	value = append(value, info.RevisionMajor, info.RevisionMinor)
	value = appendUint16(value, info.Status)
	value = appendUint32(value, info.SerialNumber)
	value = append(value, byte(len(info.ProductName)))
	value = append(value, info.ProductName...)
	value = append(value, identityState)

	return encodeSingleItem(itemTypeIdentity, value)
}

// encodeSockaddrIn renders the 16-byte sockaddr_in ListIdentity embeds:
// family (big-endian, AF_INET=2), port (big-endian), a 4-byte IPv4 address,
// and 8 zero bytes of padding.
func encodeSockaddrIn(ip net.IP, port uint16) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint16(buf[0:2], 2)
	binary.BigEndian.PutUint16(buf[2:4], port)
	if v4 := ip.To4(); v4 != nil {
		copy(buf[4:8], v4)
	}
	return buf
}

func encodeSingleItem(itemType uint16, value []byte) []byte {
	buf := make([]byte, 0, 2+4+len(value))
	buf = appendUint16(buf, 1) // item count
	buf = appendUint16(buf, itemType)
	buf = appendUint16(buf, uint16(len(value)))
	buf = append(buf, value...)
	return buf
}

func appendUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}
