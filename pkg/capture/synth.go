// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"math/rand"

	"github.com/Thermoquad/necscope/pkg/nec"
)

// Edge is a line level held for a duration
type Edge struct {
	Level bool
	Usecs uint32
}

// SynthOptions controls how synthetic frames are sampled
type SynthOptions struct {
	StartUsecs        uint64
	SamplePeriodUsecs uint32 // poll interval, must be positive
	JitterUsecs       uint32 // every edge is displaced by up to +-JitterUsecs
	IdleUsecs         uint32 // low time before and after the frame

	// Rand drives the jitter; nil uses a source seeded from StartUsecs
	Rand *rand.Rand
}

// DefaultSynthOptions samples every 10 us without jitter
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		SamplePeriodUsecs: 10,
		IdleUsecs:         1000,
	}
}

// FrameEdges lays out the marks and spaces of a frame, inverse fields
// included as exact complements
func FrameEdges(p *nec.ProtocolConfig, address, command uint32) []Edge {
	edges := []Edge{
		{true, p.StartPulseUsecs},
		{false, p.StartPeriodUsecs - p.StartPulseUsecs},
	}

	field := func(value, width uint32) {
		for i := uint32(0); i < width; i++ {
			period := p.ZeroPeriodUsecs
			if value&(1<<i) != 0 {
				period = p.OnePeriodUsecs
			}
			edges = append(edges,
				Edge{true, p.DataBitPulseUsecs},
				Edge{false, period - p.DataBitPulseUsecs})
		}
	}

	field(address, p.AddressBits)
	if p.AddrVerifyInverse {
		field(^address&nec.FieldMask(p.AddressBits), p.AddressBits)
	}
	field(command, p.CommandBits)
	if p.CmdVerifyInverse {
		field(^command&nec.FieldMask(p.CommandBits), p.CommandBits)
	}

	return append(edges, Edge{true, p.StopPulseUsecs})
}

// SynthesizeFrame polls a simulated receiver transmitting one frame.
// Returns the samples and the timestamp following the last one.
func SynthesizeFrame(p *nec.ProtocolConfig, address, command uint32, opts SynthOptions) ([]Sample, uint64, error) {
	if opts.SamplePeriodUsecs == 0 {
		return nil, 0, fmt.Errorf("sample period must be positive")
	}
	if p.StartPeriodUsecs <= p.StartPulseUsecs ||
		p.ZeroPeriodUsecs <= p.DataBitPulseUsecs || p.OnePeriodUsecs <= p.DataBitPulseUsecs {
		return nil, 0, fmt.Errorf("protocol %q has periods shorter than their marks", p.Name)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(opts.StartUsecs)))
	}

	edges := []Edge{{false, opts.IdleUsecs}}
	for _, e := range FrameEdges(p, address, command) {
		if opts.JitterUsecs > 0 {
			j := int64(rng.Intn(int(2*opts.JitterUsecs+1))) - int64(opts.JitterUsecs)
			usecs := int64(e.Usecs) + j
			if usecs < 1 {
				usecs = 1
			}
			e.Usecs = uint32(usecs)
		}
		edges = append(edges, e)
	}
	edges = append(edges, Edge{false, opts.IdleUsecs})

	samples, end := SampleEdges(edges, opts.StartUsecs, opts.SamplePeriodUsecs)
	return samples, end, nil
}

// SampleEdges polls a signal every step microseconds from start.
// Returns the samples and the timestamp following the last one.
func SampleEdges(edges []Edge, start uint64, step uint32) ([]Sample, uint64) {
	var total uint64
	for _, e := range edges {
		total += uint64(e.Usecs)
	}
	if len(edges) == 0 || step == 0 {
		return nil, start
	}

	samples := make([]Sample, 0, total/uint64(step)+1)
	idx := 0
	edgeEnd := uint64(edges[0].Usecs)
	offset := uint64(0)
	for ; offset < total; offset += uint64(step) {
		for offset >= edgeEnd && idx < len(edges)-1 {
			idx++
			edgeEnd += uint64(edges[idx].Usecs)
		}
		samples = append(samples, Sample{Level: edges[idx].Level, TimestampUsecs: start + offset})
	}
	return samples, start + offset
}
