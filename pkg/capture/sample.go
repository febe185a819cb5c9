// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Sample is one reading of the receiver line
type Sample struct {
	Level          bool // true while the IR carrier is present (mark)
	TimestampUsecs uint64
}

// NewSampleBatch packs samples into a batch.
// Timestamps must be non-decreasing with gaps below 2^32 us.
func NewSampleBatch(samples []Sample) (*SampleBatch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty sample batch")
	}
	if len(samples) > MaxBatchSamples {
		return nil, fmt.Errorf("too many samples: %d (max %d)", len(samples), MaxBatchSamples)
	}

	b := &SampleBatch{
		StartUsecs: samples[0].TimestampUsecs,
		Deltas:     make([]uint32, len(samples)),
		Levels:     make([]byte, (len(samples)+7)/8),
	}

	prev := samples[0].TimestampUsecs
	for i, s := range samples {
		delta := s.TimestampUsecs - prev
		if delta > math.MaxUint32 {
			return nil, fmt.Errorf("sample %d: gap of %d us does not fit a batch", i, delta)
		}
		b.Deltas[i] = uint32(delta)
		if s.Level {
			b.Levels[i/8] |= 1 << (i % 8)
		}
		prev = s.TimestampUsecs
	}

	return b, nil
}

// Samples unpacks the batch
func (b *SampleBatch) Samples() ([]Sample, error) {
	if len(b.Levels)*8 < len(b.Deltas) {
		return nil, fmt.Errorf("level bitmap holds %d samples, batch has %d", len(b.Levels)*8, len(b.Deltas))
	}

	samples := make([]Sample, len(b.Deltas))
	ts := b.StartUsecs
	for i, delta := range b.Deltas {
		ts += uint64(delta)
		samples[i] = Sample{
			Level:          b.Levels[i/8]&(1<<(i%8)) != 0,
			TimestampUsecs: ts,
		}
	}
	return samples, nil
}

// PacketHandler receives packets other than sample batches
type PacketHandler func(*Packet)

// ReaderStats counts what a SampleReader has consumed
type ReaderStats struct {
	Packets      uint64
	Samples      uint64
	CRCErrors    uint64
	DecodeErrors uint64
}

// SampleReader reads samples from a stream of capture packets.
// Corrupt packets are counted and skipped.
type SampleReader struct {
	packets *PacketReader
	pending []Sample
	stats   ReaderStats

	// OnPacket, if set, is called for every packet that is not a sample batch
	OnPacket PacketHandler
}

// NewSampleReader creates a sample reader over r
func NewSampleReader(r io.Reader) *SampleReader {
	return NewPacketReader(r).Samples()
}

// Next returns the next sample, or io.EOF at the end of the stream
func (sr *SampleReader) Next() (Sample, error) {
	for len(sr.pending) == 0 {
		if err := sr.fill(); err != nil {
			return Sample{}, err
		}
	}

	s := sr.pending[0]
	sr.pending = sr.pending[1:]
	return s, nil
}

// Stats returns the reader counters
func (sr *SampleReader) Stats() ReaderStats {
	return sr.stats
}

// fill reads until a sample batch with at least one sample is decoded
func (sr *SampleReader) fill() error {
	for {
		packet, err := sr.packets.ReadPacket()
		if err != nil {
			if !errors.Is(err, ErrInvalidPacket) {
				return err
			}
			if errors.Is(err, ErrCRCMismatch) {
				sr.stats.CRCErrors++
			} else {
				sr.stats.DecodeErrors++
			}
			continue
		}
		sr.stats.Packets++

		if packet.Type() != MsgSampleBatch || packet.ParseError() != nil {
			if packet.ParseError() != nil {
				sr.stats.DecodeErrors++
			}
			if sr.OnPacket != nil {
				sr.OnPacket(packet)
			}
			continue
		}

		batch, err := packet.SampleBatch()
		if err != nil {
			sr.stats.DecodeErrors++
			continue
		}
		samples, err := batch.Samples()
		if err != nil {
			sr.stats.DecodeErrors++
			continue
		}
		if len(samples) == 0 {
			continue
		}

		sr.stats.Samples += uint64(len(samples))
		sr.pending = samples
		return nil
	}
}

// SampleWriter writes samples as a stream of capture packets.
// Samples are buffered into batches; call Flush when done.
type SampleWriter struct {
	w       io.Writer
	pending []Sample
}

// NewSampleWriter creates a sample writer over w
func NewSampleWriter(w io.Writer) *SampleWriter {
	return &SampleWriter{
		w:       w,
		pending: make([]Sample, 0, MaxBatchSamples),
	}
}

// Write buffers a sample, writing a batch once enough are collected
func (sw *SampleWriter) Write(s Sample) error {
	if n := len(sw.pending); n > 0 {
		last := sw.pending[n-1].TimestampUsecs
		// Gaps that do not fit a delta start a new batch
		if s.TimestampUsecs < last || s.TimestampUsecs-last > math.MaxUint32 {
			if err := sw.Flush(); err != nil {
				return err
			}
		}
	}

	sw.pending = append(sw.pending, s)
	if len(sw.pending) >= MaxBatchSamples {
		return sw.Flush()
	}
	return nil
}

// WriteFrameReport flushes pending samples and writes a frame report
func (sw *SampleWriter) WriteFrameReport(r *FrameReport) error {
	if err := sw.Flush(); err != nil {
		return err
	}
	data, err := EncodeFrameReport(r)
	if err != nil {
		return err
	}
	_, err = sw.w.Write(data)
	return err
}

// Flush writes any buffered samples
func (sw *SampleWriter) Flush() error {
	if len(sw.pending) == 0 {
		return nil
	}

	batch, err := NewSampleBatch(sw.pending)
	if err != nil {
		return err
	}
	data, err := EncodeSampleBatch(batch)
	if err != nil {
		return err
	}

	sw.pending = sw.pending[:0]
	if _, err := sw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write sample batch: %w", err)
	}
	return nil
}
