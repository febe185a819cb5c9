// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is wrapped by decode errors caused by a bad checksum
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder implements the capture packet decoder state machine
type Decoder struct {
	state       int
	buffer      []byte // Unstuffed length + payload, the CRC'd section
	bufferIndex int
	escapeNext  bool
	length      int
	crc         uint16
	rawBuffer   []byte // Accumulate raw bytes including framing
}

// NewDecoder creates a new packet decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxPacketSize),
		rawBuffer: make([]byte, 0, MaxPacketSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.length = 0
	d.crc = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the accumulated raw bytes since the last packet
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed packet, or nil if the packet is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	// Framing bytes are never stuffed, so they always resynchronize
	if b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil
	}

	if b == EndByte {
		if d.state == stateEnd && !d.escapeNext {
			return d.finish()
		}
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	if d.state == stateIdle {
		// Waiting for START byte
		return nil, nil
	}

	// Handle byte stuffing
	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength:
		if b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.length = int(b)
		d.buffer[0] = b
		d.bufferIndex = 1
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		if d.bufferIndex >= MaxPacketSize {
			d.Reset()
			return nil, fmt.Errorf("buffer overflow: packet exceeds max size")
		}
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		if d.bufferIndex > d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("expected END byte, got 0x%02X", b)
	}

	state := d.state
	d.Reset()
	return nil, fmt.Errorf("invalid state: %d", state)
}

func (d *Decoder) finish() (*Packet, error) {
	calculatedCRC := CalculateCRC(d.buffer[:d.bufferIndex])
	if d.crc != calculatedCRC {
		err := fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculatedCRC, d.crc)
		d.Reset()
		return nil, err
	}

	payload := make([]byte, d.length)
	copy(payload, d.buffer[1:d.bufferIndex])

	packet := &Packet{
		length:      uint8(d.length),
		cborPayload: payload,
		crc:         d.crc,
		timestamp:   time.Now(),
	}

	d.Reset()
	return packet, nil
}
