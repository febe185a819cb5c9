// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import "fmt"

// EncodePacket creates a complete wire-formatted capture packet for a message.
// body is a *SampleBatch, *FrameReport, *PingResponse, or nil.
// Returns the packet bytes ready for transmission, including framing and byte stuffing.
func EncodePacket(msgType uint8, body interface{}) ([]byte, error) {
	cborPayload, err := encodeMessage(msgType, body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}
	return EncodeRaw(cborPayload)
}

// EncodeRaw frames an already encoded CBOR payload
func EncodeRaw(cborPayload []byte) ([]byte, error) {
	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	// Build the data section: length + CBOR payload
	// This is what gets CRC'd and byte-stuffed
	data := make([]byte, 0, 1+len(cborPayload)+2)
	data = append(data, uint8(len(cborPayload)))
	data = append(data, cborPayload...)

	crc := CalculateCRC(data)

	// Append CRC (big-endian)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	packet := make([]byte, 0, len(stuffed)+2)
	packet = append(packet, StartByte)
	packet = append(packet, stuffed...)
	packet = append(packet, EndByte)

	return packet, nil
}

// EncodeSampleBatch encodes a SAMPLE_BATCH packet
func EncodeSampleBatch(b *SampleBatch) ([]byte, error) {
	return EncodePacket(MsgSampleBatch, b)
}

// EncodeFrameReport encodes a FRAME_REPORT packet
func EncodeFrameReport(r *FrameReport) ([]byte, error) {
	return EncodePacket(MsgFrameReport, r)
}

// EncodePingRequest encodes a PING_REQUEST packet
func EncodePingRequest() []byte {
	data, err := EncodePacket(MsgPingRequest, nil)
	if err != nil {
		panic(fmt.Sprintf("capture: encode error: %v", err))
	}
	return data
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
