package handlers

import (
	"context"
	"encoding/binary"

	"github.com/mtbrandt/enipcore/internal/cip/protocol"
)

// IdentityConfig carries the Identity Object (class 0x01, instance 1)
// attribute values this core reports.
type IdentityConfig struct {
	VendorID      uint16
	DeviceType    uint16
	ProductCode   uint16
	RevisionMajor uint8
	RevisionMinor uint8
	Status        uint16
	SerialNumber  uint32
	ProductName   string
}

// IdentityHandler answers Get_Attribute_Single/Get_Attribute_All against
// the Identity Object's single instance. Every other CIP object (and the
// Connection Manager's real ForwardOpen/ForwardClose semantics) lives
// outside this core, per its scope.
type IdentityHandler struct {
	cfg IdentityConfig
}

// NewIdentityHandler returns a handler reporting the given identity
// values.
func NewIdentityHandler(cfg IdentityConfig) *IdentityHandler {
	if cfg.ProductName == "" {
		cfg.ProductName = "enipcore adapter"
	}
	if cfg.RevisionMajor == 0 && cfg.RevisionMinor == 0 {
		cfg.RevisionMajor = 1
	}
	return &IdentityHandler{cfg: cfg}
}

// HandleCIPRequest implements handlers.Handler.
func (h *IdentityHandler) HandleCIPRequest(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, error) {
	if req.Path.Instance != 0x0001 {
		return protocol.CIPResponse{Service: req.Service, Status: 0x05, Path: req.Path}, nil
	}

	switch req.Service {
	case protocol.CIPServiceGetAttributeSingle:
		payload, ok := h.attributePayload(req.Path.Attribute)
		if !ok {
			return protocol.CIPResponse{Service: req.Service, Status: 0x14, Path: req.Path}, nil
		}
		return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusSuccess, Path: req.Path, Payload: payload}, nil
	case protocol.CIPServiceGetAttributeAll:
		return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusSuccess, Path: req.Path, Payload: h.allPayload()}, nil
	default:
		return protocol.CIPResponse{Service: req.Service, Status: protocol.CIPStatusServiceNotSupp, Path: req.Path}, nil
	}
}

func (h *IdentityHandler) attributePayload(attribute uint16) ([]byte, bool) {
	switch attribute {
	case 1:
		return le16(h.cfg.VendorID), true
	case 2:
		return le16(h.cfg.DeviceType), true
	case 3:
		return le16(h.cfg.ProductCode), true
	case 4:
		return []byte{h.cfg.RevisionMajor, h.cfg.RevisionMinor}, true
	case 5:
		return le16(h.cfg.Status), true
	case 6:
		return le32(h.cfg.SerialNumber), true
	case 7:
		return encodeShortString(h.cfg.ProductName), true
	default:
		return nil, false
	}
}

func (h *IdentityHandler) allPayload() []byte {
	payload := make([]byte, 0, 16)
	payload = append(payload, le16(h.cfg.VendorID)...)
	payload = append(payload, le16(h.cfg.DeviceType)...)
	payload = append(payload, le16(h.cfg.ProductCode)...)
	payload = append(payload, h.cfg.RevisionMajor, h.cfg.RevisionMinor)
	payload = append(payload, le16(h.cfg.Status)...)
	payload = append(payload, le32(h.cfg.SerialNumber)...)
	payload = append(payload, encodeShortString(h.cfg.ProductName)...)
	return payload
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// encodeShortString renders a CIP SHORT_STRING: a one-byte length prefix
// followed by ASCII bytes, truncated to 255 bytes.
func encodeShortString(value string) []byte {
	data := []byte(value)
	if len(data) > 255 {
		data = data[:255]
	}
	payload := make([]byte, 1+len(data))
	payload[0] = byte(len(data))
	copy(payload[1:], data)
	return payload
}
