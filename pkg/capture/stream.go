// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidPacket wraps decoder errors returned by ReadPacket.
// The reader resynchronizes on the next START byte and stays usable.
var ErrInvalidPacket = errors.New("invalid packet")

// PacketReader reads whole capture packets from a byte stream
type PacketReader struct {
	r       *bufio.Reader
	decoder *Decoder
}

// NewPacketReader creates a packet reader over r
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{
		r:       bufio.NewReader(r),
		decoder: NewDecoder(),
	}
}

// ReadPacket returns the next packet. Framing and CRC failures are returned
// wrapped in ErrInvalidPacket; any other error comes from the stream.
func (pr *PacketReader) ReadPacket() (*Packet, error) {
	for {
		b, err := pr.r.ReadByte()
		if err != nil {
			return nil, err
		}

		packet, err := pr.decoder.DecodeByte(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPacket, err)
		}
		if packet != nil {
			return packet, nil
		}
	}
}

// RawBytes returns the bytes consumed since the last complete packet
func (pr *PacketReader) RawBytes() []byte {
	return pr.decoder.GetRawBytes()
}

// Samples returns a sample reader that takes its packets from pr
func (pr *PacketReader) Samples() *SampleReader {
	return &SampleReader{packets: pr}
}
