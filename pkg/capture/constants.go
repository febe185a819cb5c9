// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture implements the necscope sample stream format.
//
// Capture packets carry timestamped receiver line levels from a sampling
// device to the host, and decoded frame reports back out. The same packets
// are used on serial links, WebSocket bridges and in capture files, which are
// simply concatenated packets.
//
// Wire format:
//
//	START | stuffed(LEN | CBOR [msg_type, body] | CRC hi | CRC lo) | END
//
// The CRC is CRC-16-CCITT over LEN and the CBOR payload.
package capture

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPayloadSize = 250
	MaxPacketSize  = 1 + MaxPayloadSize + 2 // length + payload + CRC, unstuffed

	// MaxBatchSamples keeps a worst-case SAMPLE_BATCH under MaxPayloadSize
	MaxBatchSamples = 40
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message types - Control (Host → Device) 0x20-0x2F
const (
	MsgPingRequest = 0x2F
)

// Message types - Device status (Device → Host) 0x30-0x3F
const (
	MsgPingResponse = 0x3F
)

// Message types - Sample data 0x40-0x4F
const (
	MsgSampleBatch = 0x40
	MsgFrameReport = 0x41
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
