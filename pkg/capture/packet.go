// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Packet represents a decoded capture packet
type Packet struct {
	length      uint8
	cborPayload []byte // Raw CBOR bytes: [msg_type, body]
	crc         uint16
	timestamp   time.Time

	// Cached parsed values (lazy parsing)
	msgType  uint8
	body     cbor.RawMessage
	parsed   bool
	parseErr error
}

// NewPacket creates a new packet with the given fields
func NewPacket(cborPayload []byte, crc uint16) *Packet {
	return &Packet{
		length:      uint8(len(cborPayload)),
		cborPayload: cborPayload,
		crc:         crc,
		timestamp:   time.Now(),
	}
}

// ensureParsed parses the CBOR payload if not already done
func (p *Packet) ensureParsed() {
	if p.parsed {
		return
	}
	p.parsed = true
	p.msgType, p.body, p.parseErr = ParseMessage(p.cborPayload)
}

// Length returns the packet's CBOR payload length
func (p *Packet) Length() uint8 {
	return p.length
}

// Type returns the packet's message type (parsed from CBOR)
func (p *Packet) Type() uint8 {
	p.ensureParsed()
	return p.msgType
}

// Payload returns the raw CBOR payload bytes
func (p *Packet) Payload() []byte {
	return p.cborPayload
}

// Body returns the encoded message body, nil for messages without one
func (p *Packet) Body() cbor.RawMessage {
	p.ensureParsed()
	return p.body
}

// ParseError returns any error from parsing the CBOR payload
func (p *Packet) ParseError() error {
	p.ensureParsed()
	return p.parseErr
}

// CRC returns the packet's CRC value
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns the packet's decode timestamp
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// SampleBatch decodes a SAMPLE_BATCH body
func (p *Packet) SampleBatch() (*SampleBatch, error) {
	if err := p.ParseError(); err != nil {
		return nil, err
	}
	var b SampleBatch
	if err := decodeBody(p.msgType, MsgSampleBatch, p.body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// FrameReport decodes a FRAME_REPORT body
func (p *Packet) FrameReport() (*FrameReport, error) {
	if err := p.ParseError(); err != nil {
		return nil, err
	}
	var r FrameReport
	if err := decodeBody(p.msgType, MsgFrameReport, p.body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PingResponse decodes a PING_RESPONSE body
func (p *Packet) PingResponse() (*PingResponse, error) {
	if err := p.ParseError(); err != nil {
		return nil, err
	}
	var r PingResponse
	if err := decodeBody(p.msgType, MsgPingResponse, p.body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
