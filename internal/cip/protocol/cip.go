// Package protocol encodes and decodes Common Industrial Protocol (CIP)
// Message Router requests and responses carried inside ENIP SendRRData and
// SendUnitData frames.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// CIPServiceCode identifies a CIP service.
type CIPServiceCode uint8

// Service codes used by the message-router glue and its collaborators.
// Some values are reused by different object classes per the CIP
// specification (0x4E is Read_Modify_Write on most objects but
// Forward_Close on the Connection Manager); callers disambiguate by class.
const (
	CIPServiceGetAttributeAll    CIPServiceCode = 0x01
	CIPServiceSetAttributeAll    CIPServiceCode = 0x02
	CIPServiceGetAttributeList   CIPServiceCode = 0x03
	CIPServiceSetAttributeList   CIPServiceCode = 0x04
	CIPServiceReset              CIPServiceCode = 0x05
	CIPServiceMultipleService    CIPServiceCode = 0x0A
	CIPServiceGetAttributeSingle CIPServiceCode = 0x0E
	CIPServiceSetAttributeSingle CIPServiceCode = 0x10
	CIPServiceErrorResponse      CIPServiceCode = 0x14
	CIPServiceReadModifyWrite    CIPServiceCode = 0x4E
	CIPServiceForwardClose       CIPServiceCode = 0x4E
	CIPServiceUnconnectedSend    CIPServiceCode = 0x52
	CIPServiceForwardOpen        CIPServiceCode = 0x54
	CIPServiceGetConnectionData  CIPServiceCode = 0x56
	CIPServiceSearchConnData     CIPServiceCode = 0x57
	CIPServiceGetConnectionOwner CIPServiceCode = 0x5A
	CIPServiceLargeForwardOpen   CIPServiceCode = 0x5B
)

// CIPResponseBit is OR'd into the request service code when encoding a
// response, per the CIP Message Router framing.
const CIPResponseBit CIPServiceCode = 0x80

// General status codes this core produces itself; the rest pass through
// from the object registry untouched.
const (
	CIPStatusSuccess        uint8 = 0x00
	CIPStatusServiceNotSupp uint8 = 0x08
)

// CIPPath is a logical class/instance/attribute path, or a symbolic tag
// name when the EPATH held ANSI extended symbolic segments instead.
type CIPPath struct {
	Class     uint16
	Instance  uint16
	Attribute uint16
	Name      string
}

// CIPRequest is a decoded Message Router request.
type CIPRequest struct {
	Service CIPServiceCode
	Path    CIPPath
	RawPath []byte
	Payload []byte
}

// CIPResponse is a Message Router response, ready to be wrapped by the
// ENIP/CPF layers.
type CIPResponse struct {
	Service   CIPServiceCode
	Path      CIPPath
	Status    uint8
	ExtStatus []byte
	Payload   []byte
}

// EPATH logical segment tags (ODVA Vol 1, Appendix C).
const (
	epathClass8     = 0x20
	epathClass16    = 0x21
	epathInstance8  = 0x24
	epathInstance16 = 0x25
	epathAttr8      = 0x30
	epathAttr16     = 0x31
)

// EncodeEPATH renders a class/instance/attribute path in logical segment
// form, promoting a segment to its 16-bit variant once it exceeds 0xFF.
func EncodeEPATH(path CIPPath) []byte {
	var epath []byte
	epath = appendLogicalSegment(epath, epathClass8, epathClass16, path.Class)
	epath = appendLogicalSegment(epath, epathInstance8, epathInstance16, path.Instance)
	if path.Attribute != 0 {
		epath = appendLogicalSegment(epath, epathAttr8, epathAttr16, path.Attribute)
	}
	return epath
}

func appendLogicalSegment(dst []byte, tag8, tag16 byte, value uint16) []byte {
	if value <= 0xFF {
		return append(dst, tag8, byte(value))
	}
	dst = append(dst, tag16, 0x00)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	return append(dst, buf[:]...)
}

// ParseEPATH decodes a logical-segment EPATH into a CIPPath.
func ParseEPATH(data []byte) (CIPPath, error) {
	var path CIPPath
	offset := 0
	for offset < len(data) {
		tag := data[offset]
		switch tag {
		case epathClass8, epathInstance8, epathAttr8:
			if offset+2 > len(data) {
				return path, fmt.Errorf("cip: truncated 8-bit EPATH segment")
			}
			assignLogical(&path, tag, uint16(data[offset+1]))
			offset += 2
		case epathClass16, epathInstance16, epathAttr16:
			if offset+4 > len(data) {
				return path, fmt.Errorf("cip: truncated 16-bit EPATH segment")
			}
			assignLogical(&path, tag, binary.LittleEndian.Uint16(data[offset+2:offset+4]))
			offset += 4
		default:
			return path, fmt.Errorf("cip: unsupported EPATH segment 0x%02X", tag)
		}
	}
	return path, nil
}

func assignLogical(path *CIPPath, tag byte, value uint16) {
	switch tag {
	case epathClass8, epathClass16:
		path.Class = value
	case epathInstance8, epathInstance16:
		path.Instance = value
	case epathAttr8, epathAttr16:
		path.Attribute = value
	}
}

// EncodeCIPRequest renders a Message Router request: service, path-size
// word, EPATH, payload.
func EncodeCIPRequest(req CIPRequest) []byte {
	epath := req.RawPath
	if len(epath) == 0 {
		epath = EncodeEPATH(req.Path)
	}
	if len(epath)%2 != 0 {
		epath = append(epath, 0x00)
	}
	data := make([]byte, 0, 2+len(epath)+len(req.Payload))
	data = append(data, uint8(req.Service), uint8(len(epath)/2))
	data = append(data, epath...)
	data = append(data, req.Payload...)
	return data
}

// DecodeCIPRequest parses a Message Router request body (the payload of an
// Unconnected Data / Connected Data item, with any CPF/ENIP framing already
// stripped).
func DecodeCIPRequest(data []byte) (CIPRequest, error) {
	if len(data) < 2 {
		return CIPRequest{}, fmt.Errorf("cip: request too short")
	}
	req := CIPRequest{Service: CIPServiceCode(data[0])}
	pathBytes := int(data[1]) * 2
	if len(data) < 2+pathBytes {
		return req, fmt.Errorf("cip: truncated EPATH")
	}
	raw := data[2 : 2+pathBytes]
	req.RawPath = append([]byte(nil), raw...)

	if len(raw) > 0 && raw[0] == 0x91 {
		name, err := DecodeSymbolicEPATH(raw)
		if err != nil {
			return req, err
		}
		req.Path = CIPPath{Name: name}
	} else {
		path, err := ParseEPATH(raw)
		if err != nil {
			return req, err
		}
		req.Path = path
	}
	req.Payload = data[2+pathBytes:]
	return req, nil
}

// EncodeCIPResponse renders a Message Router response: service|0x80,
// reserved byte, status, extended-status-size word, extended status,
// payload.
func EncodeCIPResponse(resp CIPResponse) []byte {
	extWords := (len(resp.ExtStatus) + 1) / 2
	data := make([]byte, 0, 4+extWords*2+len(resp.Payload))
	data = append(data, uint8(resp.Service)|uint8(CIPResponseBit), 0x00, resp.Status, uint8(extWords))
	data = append(data, resp.ExtStatus...)
	if len(resp.ExtStatus)%2 != 0 {
		data = append(data, 0x00)
	}
	data = append(data, resp.Payload...)
	return data
}

// DecodeCIPResponse parses a Message Router response body.
func DecodeCIPResponse(data []byte, path CIPPath) (CIPResponse, error) {
	if len(data) < 4 {
		return CIPResponse{}, fmt.Errorf("cip: response too short")
	}
	resp := CIPResponse{
		Service: CIPServiceCode(data[0] &^ uint8(CIPResponseBit)),
		Path:    path,
		Status:  data[2],
	}
	extBytes := int(data[3]) * 2
	offset := 4
	if len(data) < offset+extBytes {
		return resp, fmt.Errorf("cip: truncated extended status")
	}
	if extBytes > 0 {
		resp.ExtStatus = data[offset : offset+extBytes]
		offset += extBytes
	}
	if len(data) > offset {
		resp.Payload = data[offset:]
	}
	return resp, nil
}

func (s CIPServiceCode) String() string {
	switch s &^ CIPResponseBit {
	case CIPServiceGetAttributeAll:
		return "Get_Attribute_All"
	case CIPServiceSetAttributeAll:
		return "Set_Attribute_All"
	case CIPServiceGetAttributeList:
		return "Get_Attribute_List"
	case CIPServiceSetAttributeList:
		return "Set_Attribute_List"
	case CIPServiceReset:
		return "Reset"
	case CIPServiceMultipleService:
		return "Multiple_Service_Packet"
	case CIPServiceGetAttributeSingle:
		return "Get_Attribute_Single"
	case CIPServiceSetAttributeSingle:
		return "Set_Attribute_Single"
	case CIPServiceErrorResponse:
		return "Error_Response"
	case CIPServiceReadModifyWrite:
		return "Read_Modify_Write/Forward_Close"
	case CIPServiceUnconnectedSend:
		return "Unconnected_Send"
	case CIPServiceForwardOpen:
		return "Forward_Open"
	case CIPServiceGetConnectionData:
		return "Get_Connection_Data"
	case CIPServiceSearchConnData:
		return "Search_Connection_Data"
	case CIPServiceGetConnectionOwner:
		return "Get_Connection_Owner"
	case CIPServiceLargeForwardOpen:
		return "Large_Forward_Open"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(s))
	}
}
