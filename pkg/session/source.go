// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/necscope/pkg/capture"
)

// Clock is a monotonic microsecond time source
type Clock interface {
	NowUsecs() uint64
}

// Pin reads the IR receiver line. Level is true while a mark is present.
type Pin interface {
	Level() (bool, error)
}

// Source yields samples in timestamp order.
// Next returns io.EOF once the source is exhausted.
type Source interface {
	Next() (capture.Sample, error)
}

// SystemClock counts microseconds since it was created
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at zero
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowUsecs implements Clock
func (c *SystemClock) NowUsecs() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// PollingSource samples a pin against a clock on every call to Next
type PollingSource struct {
	pin   Pin
	clock Clock
}

// NewPollingSource creates a source that polls pin, timestamped by clock
func NewPollingSource(pin Pin, clock Clock) *PollingSource {
	return &PollingSource{pin: pin, clock: clock}
}

// Next implements Source
func (s *PollingSource) Next() (capture.Sample, error) {
	ts := s.clock.NowUsecs()
	level, err := s.pin.Level()
	if err != nil {
		return capture.Sample{}, fmt.Errorf("failed to read pin: %w", err)
	}
	return capture.Sample{Level: level, TimestampUsecs: ts}, nil
}

// SliceSource replays samples held in memory
type SliceSource struct {
	samples []capture.Sample
	pos     int
}

// NewSliceSource creates a source over samples
func NewSliceSource(samples []capture.Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

// Next implements Source
func (s *SliceSource) Next() (capture.Sample, error) {
	if s.pos >= len(s.samples) {
		return capture.Sample{}, io.EOF
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, nil
}
