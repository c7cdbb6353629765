package cpf

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		NullAddressItem(),
		UnconnectedDataItem([]byte{0x0E, 0x03, 0x20, 0x01, 0x24, 0x01, 0x30, 0x01}),
	}
	buf := Encode(items)

	decoded, err := Decode(buf, DefaultOptions)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("item count = %d, want 2", len(decoded))
	}
	if decoded[0].TypeID != TypeNullAddress {
		t.Errorf("item 0 type = 0x%04X, want null address", decoded[0].TypeID)
	}
	if decoded[1].TypeID != TypeUnconnectedData {
		t.Errorf("item 1 type = 0x%04X, want unconnected data", decoded[1].TypeID)
	}
	if len(decoded[1].Data) != 8 {
		t.Errorf("data len = %d, want 8", len(decoded[1].Data))
	}
}

func TestDecodeConnectedAddress(t *testing.T) {
	items := []Item{
		ConnectedAddressItem(0xDEADBEEF),
		ConnectedDataItem([]byte{0x01, 0x00, 0x42}),
	}
	buf := Encode(items)
	decoded, err := Decode(buf, DefaultOptions)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	addr, ok := FindAddress(decoded)
	if !ok {
		t.Fatal("expected address item")
	}
	connID, ok := ConnectionID(addr)
	if !ok || connID != 0xDEADBEEF {
		t.Errorf("connID = 0x%08X, ok=%v, want 0xDEADBEEF", connID, ok)
	}
	data, ok := FindData(decoded)
	if !ok || len(data.Data) != 3 {
		t.Errorf("data = %+v, ok=%v", data, ok)
	}
}

func TestSequencedAddress(t *testing.T) {
	addr := SequencedAddressItem(7, 99)
	seq, ok := SequenceNumber(addr)
	if !ok || seq != 99 {
		t.Errorf("seq = %d, ok=%v, want 99", seq, ok)
	}
	connID, ok := ConnectionID(addr)
	if !ok || connID != 7 {
		t.Errorf("connID = %d, ok=%v, want 7", connID, ok)
	}
}

func TestDecodeMissingItemCount(t *testing.T) {
	if _, err := Decode(nil, DefaultOptions); err == nil {
		t.Error("expected error for empty buffer")
	}
}

func TestDecodeTruncatedItem(t *testing.T) {
	buf := []byte{0x01, 0x00, 0xB2, 0x00, 0x04, 0x00, 0x01, 0x02}
	if _, err := Decode(buf, DefaultOptions); err == nil {
		t.Error("expected error for truncated item value")
	}
}

func TestDecodeStrictRejectsWrongCount(t *testing.T) {
	buf := Encode([]Item{NullAddressItem()})
	if _, err := Decode(buf, Options{Strict: true}); err == nil {
		t.Error("expected strict mode to reject a single-item list")
	}
	if _, err := Decode(buf, DefaultOptions); err != nil {
		t.Errorf("non-strict mode should tolerate a single item: %v", err)
	}
}

func TestDecodeToleratesExtraItems(t *testing.T) {
	items := []Item{
		ConnectedAddressItem(1),
		ConnectedDataItem([]byte{0x01}),
		{TypeID: TypeSockaddrInfoOtoT, Data: make([]byte, 16)},
	}
	buf := Encode(items)
	decoded, err := Decode(buf, DefaultOptions)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("item count = %d, want 3", len(decoded))
	}
}

func TestDecodeRejectsTrailingBytesAtTwoItems(t *testing.T) {
	items := []Item{
		NullAddressItem(),
		UnconnectedDataItem([]byte{0x01, 0x02}),
	}
	buf := append(Encode(items), 0xDE, 0xAD)
	if _, err := Decode(buf, DefaultOptions); err == nil {
		t.Error("expected trailing bytes after a 2-item list to be rejected")
	}
}

func TestDecodeRejectsTrailingBytesAtOneItem(t *testing.T) {
	buf := append(Encode([]Item{NullAddressItem()}), 0xFF)
	if _, err := Decode(buf, DefaultOptions); err == nil {
		t.Error("expected trailing bytes after a 1-item list to be rejected")
	}
}

func TestDecodeToleratesTrailingBytesAboveTwoItems(t *testing.T) {
	items := []Item{
		ConnectedAddressItem(1),
		ConnectedDataItem([]byte{0x01}),
		{TypeID: TypeSockaddrInfoOtoT, Data: make([]byte, 16)},
	}
	buf := append(Encode(items), 0xAA, 0xBB)
	if _, err := Decode(buf, DefaultOptions); err != nil {
		t.Errorf("trailing bytes above 2 items should be tolerated: %v", err)
	}
}
