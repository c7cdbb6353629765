package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildMultipleServiceRequestPayload encodes embedded CIP requests for the
// Multiple Service Packet (0x0A) service: a count, an offset table, then the
// requests back to back.
func BuildMultipleServiceRequestPayload(requests []CIPRequest) ([]byte, error) {
	encoded := make([][]byte, len(requests))
	for i, req := range requests {
		encoded[i] = EncodeCIPRequest(req)
	}
	return buildMultipleServicePayload(encoded)
}

// BuildMultipleServiceResponsePayload encodes embedded CIP responses for a
// Multiple Service Packet reply, using the same offset-table framing as the
// request.
func BuildMultipleServiceResponsePayload(responses []CIPResponse) ([]byte, error) {
	encoded := make([][]byte, len(responses))
	for i, resp := range responses {
		encoded[i] = EncodeCIPResponse(resp)
	}
	return buildMultipleServicePayload(encoded)
}

func buildMultipleServicePayload(encoded [][]byte) ([]byte, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("multiple service payload requires at least one entry")
	}
	count := len(encoded)
	headerLen := 2 + 2*count
	payload := make([]byte, headerLen)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(count))

	offset := headerLen
	offsets := make([]uint16, count)
	for i, e := range encoded {
		if offset > 0xFFFF {
			return nil, fmt.Errorf("multiple service payload too large")
		}
		offsets[i] = uint16(offset)
		payload = append(payload, e...)
		offset += len(e)
	}
	for i, off := range offsets {
		start := 2 + i*2
		binary.LittleEndian.PutUint16(payload[start:start+2], off)
	}
	return payload, nil
}

// ParseMultipleServiceRequestPayload decodes the embedded CIP requests
// carried in a Multiple Service Packet (0x0A) request payload.
func ParseMultipleServiceRequestPayload(payload []byte) ([]CIPRequest, error) {
	return parseMultipleServicePayload(payload, func(data []byte) (CIPRequest, error) {
		return DecodeCIPRequest(data)
	})
}

// ParseMultipleServiceResponsePayload decodes the embedded CIP responses
// carried in a Multiple Service Packet reply payload. path is the path the
// embedded responses share, since a CIP response alone doesn't carry one.
func ParseMultipleServiceResponsePayload(payload []byte, path CIPPath) ([]CIPResponse, error) {
	return parseMultipleServicePayload(payload, func(data []byte) (CIPResponse, error) {
		return DecodeCIPResponse(data, path)
	})
}

func parseMultipleServicePayload[T any](payload []byte, decode func([]byte) (T, error)) ([]T, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("multiple service payload too short")
	}
	count := int(binary.LittleEndian.Uint16(payload[0:2]))
	if count == 0 {
		return nil, fmt.Errorf("multiple service payload missing services")
	}
	headerLen := 2 + 2*count
	if len(payload) < headerLen {
		return nil, fmt.Errorf("multiple service payload header too short")
	}

	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		start := 2 + i*2
		offsets[i] = int(binary.LittleEndian.Uint16(payload[start : start+2]))
	}

	results := make([]T, 0, count)
	for i := 0; i < count; i++ {
		start := offsets[i]
		if start < headerLen || start >= len(payload) {
			return nil, fmt.Errorf("multiple service offset %d out of range", start)
		}
		end := len(payload)
		if i+1 < count {
			end = offsets[i+1]
			if end <= start {
				return nil, fmt.Errorf("multiple service offsets out of order")
			}
		}
		decoded, err := decode(payload[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode embedded service %d: %w", i, err)
		}
		results = append(results, decoded)
	}
	return results, nil
}
