// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

import "math/rand"

// ============================================================
// Signal Test Helpers
// ============================================================

// segment is a line level held for a duration
type segment struct {
	level bool
	usecs uint32
}

// sample is a timestamped line level
type sample struct {
	level bool
	ts    uint64
}

// frameSegments lays out a frame for p with the given field values.
// Inverse fields are the bitwise complement unless overridden.
func frameSegments(p *ProtocolConfig, addr, cmd uint32) []segment {
	invAddr := ^addr & FieldMask(p.AddressBits)
	invCmd := ^cmd & FieldMask(p.CommandBits)
	return frameSegmentsWithInverse(p, addr, invAddr, cmd, invCmd)
}

func frameSegmentsWithInverse(p *ProtocolConfig, addr, invAddr, cmd, invCmd uint32) []segment {
	segs := []segment{
		{false, 100},
		{true, p.StartPulseUsecs},
		{false, p.StartPeriodUsecs - p.StartPulseUsecs},
	}

	field := func(value, width uint32) {
		for i := uint32(0); i < width; i++ {
			period := p.ZeroPeriodUsecs
			if value&(1<<i) != 0 {
				period = p.OnePeriodUsecs
			}
			segs = append(segs,
				segment{true, p.DataBitPulseUsecs},
				segment{false, period - p.DataBitPulseUsecs})
		}
	}

	field(addr, p.AddressBits)
	if p.AddrVerifyInverse {
		field(invAddr, p.AddressBits)
	}
	field(cmd, p.CommandBits)
	if p.CmdVerifyInverse {
		field(invCmd, p.CommandBits)
	}

	return append(segs, segment{true, p.StopPulseUsecs}, segment{false, 1000})
}

// jitter perturbs every segment by up to +-maxUsecs
func jitter(rng *rand.Rand, segs []segment, maxUsecs int) []segment {
	out := make([]segment, len(segs))
	for i, s := range segs {
		delta := rng.Intn(2*maxUsecs+1) - maxUsecs
		out[i] = segment{s.level, uint32(int(s.usecs) + delta)}
	}
	return out
}

// sampleSegments polls the signal every step microseconds starting at start
func sampleSegments(segs []segment, start, step uint64) []sample {
	var total uint64
	for _, s := range segs {
		total += uint64(s.usecs)
	}

	var samples []sample
	idx := 0
	var segEnd uint64 = uint64(segs[0].usecs)
	for offset := uint64(0); offset < total; offset += step {
		for offset >= segEnd && idx < len(segs)-1 {
			idx++
			segEnd += uint64(segs[idx].usecs)
		}
		samples = append(samples, sample{segs[idx].level, start + offset})
	}
	return samples
}

// feed runs samples through ProcessSample until the frame finishes or fails
func feed(s *State, p *ProtocolConfig, platform *PlatformConfig, samples []sample) error {
	for _, smp := range samples {
		if err := ProcessSample(s, p, platform, smp.level, smp.ts); err != nil {
			return err
		}
		if s.Finished() {
			return nil
		}
	}
	return nil
}

func mustLookup(name string) ProtocolConfig {
	p, err := LookupProtocol(name)
	if err != nil {
		panic(err)
	}
	return p
}
