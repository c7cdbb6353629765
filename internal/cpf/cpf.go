// Package cpf implements the EtherNet/IP Common Packet Format: the
// item-list payload carried inside SendRRData and SendUnitData
// encapsulation frames.
package cpf

import (
	"fmt"

	"github.com/mtbrandt/enipcore/internal/wire"
)

// Item type IDs (ODVA Vol 2, Table 2-6.1).
const (
	TypeNullAddress      uint16 = 0x0000
	TypeConnectedAddress uint16 = 0x00A1
	TypeSequencedAddress uint16 = 0x8002
	TypeUnconnectedData  uint16 = 0x00B2
	TypeConnectedData    uint16 = 0x00B1
	TypeSockaddrInfoOtoT uint16 = 0x8000
	TypeSockaddrInfoTtoO uint16 = 0x8001
)

// Item is one entry of a Common Packet Format item list.
type Item struct {
	TypeID uint16
	Data   []byte
}

// Options tunes how tolerant Decode is of deviations from the canonical
// two-item (address, data) shape. Strict rejects anything but exactly the
// items a command is documented to carry; non-strict (the default)
// accepts extra trailing items such as sockaddr info without failing the
// whole frame, matching how interoperability-tested stacks behave.
type Options struct {
	Strict bool
}

// DefaultOptions preserves bit-level interop with the widest range of
// originators: non-strict.
var DefaultOptions = Options{Strict: false}

// Encode renders an item list: a uint16 item count followed by each
// item's {type, length, value}.
func Encode(items []Item) []byte {
	size := 2
	for _, it := range items {
		size += 4 + len(it.Data)
	}
	w := wire.NewWriter(size)
	w.PutUint16(uint16(len(items)))
	for _, it := range items {
		w.PutUint16(it.TypeID)
		w.PutUint16(uint16(len(it.Data)))
		w.PutBytes(it.Data)
	}
	return w.Bytes()
}

// Decode parses an item list from buf. With opts.Strict unset (the
// default), an item count of zero or one is tolerated when the caller
// only needs whatever address/data items are present; a count above two
// is always tolerated since ODVA explicitly reserves room for optional
// sockaddr info items. With opts.Strict set, exactly two items are
// required.
//
// Regardless of Strict, trailing bytes left over after an item count of
// two or fewer is rejected: a well-formed two-item payload with garbage
// appended past its declared items is not a legitimate sockaddr-info
// extension, so it is treated the same as a truncated one. A count above
// two tolerates leftover bytes, since those belong to optional items this
// decoder doesn't need to understand.
func Decode(buf []byte, opts Options) ([]Item, error) {
	r := wire.NewReader(buf)
	count, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("cpf: missing item count: %w", err)
	}
	if opts.Strict && count != 2 {
		return nil, fmt.Errorf("cpf: strict mode requires exactly 2 items, got %d", count)
	}

	items := make([]Item, 0, count)
	for i := 0; i < int(count); i++ {
		typeID, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("cpf: item %d: missing type id: %w", i, err)
		}
		length, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("cpf: item %d: missing length: %w", i, err)
		}
		data, err := r.Take(int(length))
		if err != nil {
			return nil, fmt.Errorf("cpf: item %d: truncated value (%d bytes): %w", i, length, err)
		}
		items = append(items, Item{TypeID: typeID, Data: append([]byte(nil), data...)})
	}

	if r.Remaining() != 0 && (opts.Strict || count <= 2) {
		return nil, fmt.Errorf("cpf: %d trailing bytes after %d items", r.Remaining(), count)
	}
	return items, nil
}

// NullAddressItem builds the zero-length address item used by unconnected
// messaging.
func NullAddressItem() Item {
	return Item{TypeID: TypeNullAddress}
}

// ConnectedAddressItem builds the 4-byte connection-ID address item used
// by SendUnitData on a class-3 connection.
func ConnectedAddressItem(connID uint32) Item {
	w := wire.NewWriter(4)
	w.PutUint32(connID)
	return Item{TypeID: TypeConnectedAddress, Data: w.Bytes()}
}

// SequencedAddressItem builds the 8-byte connection-ID + sequence-number
// address item used by connected I/O messaging.
func SequencedAddressItem(connID, seqNum uint32) Item {
	w := wire.NewWriter(8)
	w.PutUint32(connID)
	w.PutUint32(seqNum)
	return Item{TypeID: TypeSequencedAddress, Data: w.Bytes()}
}

// UnconnectedDataItem wraps an embedded CIP message for unconnected
// messaging.
func UnconnectedDataItem(payload []byte) Item {
	return Item{TypeID: TypeUnconnectedData, Data: payload}
}

// ConnectedDataItem wraps an embedded CIP message for connected
// messaging.
func ConnectedDataItem(payload []byte) Item {
	return Item{TypeID: TypeConnectedData, Data: payload}
}

// FindAddress returns the first address-family item in the list (null,
// connected, or sequenced).
func FindAddress(items []Item) (Item, bool) {
	for _, it := range items {
		switch it.TypeID {
		case TypeNullAddress, TypeConnectedAddress, TypeSequencedAddress:
			return it, true
		}
	}
	return Item{}, false
}

// FindData returns the first data-family item in the list (unconnected or
// connected).
func FindData(items []Item) (Item, bool) {
	for _, it := range items {
		switch it.TypeID {
		case TypeUnconnectedData, TypeConnectedData:
			return it, true
		}
	}
	return Item{}, false
}

// ConnectionID extracts the connection identifier from a connected or
// sequenced address item.
func ConnectionID(addr Item) (uint32, bool) {
	if len(addr.Data) < 4 {
		return 0, false
	}
	r := wire.NewReader(addr.Data)
	v, err := r.Uint32()
	return v, err == nil
}

// SequenceNumber extracts the sequence number from a sequenced address
// item.
func SequenceNumber(addr Item) (uint32, bool) {
	if addr.TypeID != TypeSequencedAddress || len(addr.Data) < 8 {
		return 0, false
	}
	r := wire.NewReader(addr.Data[4:])
	v, err := r.Uint32()
	return v, err == nil
}
