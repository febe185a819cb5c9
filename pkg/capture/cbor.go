// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SampleBatch is the body of a SAMPLE_BATCH message.
//
// Sample i was taken at StartUsecs + sum(Deltas[0..i]), Deltas[0] is always
// zero. Its level is bit i of Levels, least significant bit first.
type SampleBatch struct {
	StartUsecs uint64   `cbor:"0,keyasint"`
	Deltas     []uint32 `cbor:"1,keyasint"`
	Levels     []byte   `cbor:"2,keyasint"`
}

// FrameReport is the body of a FRAME_REPORT message
type FrameReport struct {
	Protocol string `cbor:"0,keyasint"`
	Address  uint32 `cbor:"1,keyasint"`
	Command  uint32 `cbor:"2,keyasint"`
	Raw      uint32 `cbor:"3,keyasint,omitempty"`
}

// PingResponse is the body of a PING_RESPONSE message
type PingResponse struct {
	UptimeMs uint64 `cbor:"0,keyasint"`
}

var cborNull = []byte{0xF6}

// ParseMessage splits a CBOR message [msg_type, body] into its type and the
// still-encoded body. body is nil for messages without one.
func ParseMessage(data []byte) (msgType uint8, body cbor.RawMessage, err error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty CBOR payload")
	}

	var msg []cbor.RawMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return 0, nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	if len(msg) != 2 {
		return 0, nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	var t uint64
	if err := cbor.Unmarshal(msg[0], &t); err != nil {
		return 0, nil, fmt.Errorf("expected uint for message type: %w", err)
	}
	if t > 255 {
		return 0, nil, fmt.Errorf("message type out of range: %d", t)
	}

	if len(msg[1]) == 1 && msg[1][0] == cborNull[0] {
		return uint8(t), nil, nil
	}
	return uint8(t), msg[1], nil
}

// encodeMessage creates the CBOR message [msgType, body]; a nil body is
// encoded as CBOR null
func encodeMessage(msgType uint8, body interface{}) ([]byte, error) {
	return cbor.Marshal([]interface{}{uint64(msgType), body})
}

// decodeBody unmarshals a message body of the expected type
func decodeBody(msgType, want uint8, body cbor.RawMessage, v interface{}) error {
	if msgType != want {
		return fmt.Errorf("expected %s, got %s", FormatMessageType(want), FormatMessageType(msgType))
	}
	if body == nil {
		return fmt.Errorf("%s has no body", FormatMessageType(msgType))
	}
	if err := cbor.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s body: %w", FormatMessageType(msgType), err)
	}
	return nil
}
