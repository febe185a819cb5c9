// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

// ============================================================
// State Tests
// ============================================================

func TestInitState(t *testing.T) {
	c := qt.New(t)

	a := InitState()
	b := InitState()
	c.Assert(a, qt.Equals, b)
	c.Assert(a, qt.Equals, State{})
	c.Assert(a.Stage, qt.Equals, StageIdle)
	c.Assert(a.InProgress(), qt.IsFalse)
	c.Assert(a.Finished(), qt.IsFalse)
}

func TestStateReset(t *testing.T) {
	c := qt.New(t)

	s := State{Stage: StageCmd, BitIdx: 5, SymbolStartUsecs: 1234, Addr: 0xFF, Cmd: 0x1F, InvAddr: 1, InvCmd: 2}
	c.Assert(s.InProgress(), qt.IsTrue)
	s.Reset()
	c.Assert(s, qt.Equals, InitState())
}

// ============================================================
// Dispatcher Tests
// ============================================================

func TestProcessSampleNilArguments(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()
	s := InitState()

	c.Assert(ProcessSample(nil, &p, &platform, true, 0), qt.ErrorIs, ErrNullState)
	c.Assert(ProcessSample(&s, nil, &platform, true, 0), qt.ErrorIs, ErrNullProtocol)
	c.Assert(ProcessSample(&s, &p, nil, true, 0), qt.ErrorIs, ErrNullPlatform)
	c.Assert(s, qt.Equals, InitState())
}

func TestProcessSampleInvalidStage(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	for _, stage := range []Stage{-1, stageMax + 1, 42} {
		c.Run(fmt.Sprintf("stage %d", stage), func(c *qt.C) {
			s := State{Stage: stage}
			err := ProcessSample(&s, &p, &platform, true, 0)
			c.Assert(err, qt.ErrorIs, ErrInvalidStage)
			c.Assert(s.Stage, qt.Equals, stage)
		})
	}
}

func TestProcessSampleFinished(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	s := State{Stage: StageFinished, Addr: 0x00FF}
	err := ProcessSample(&s, &p, &platform, true, 100)
	c.Assert(err, qt.ErrorIs, ErrSessionFinished)
	c.Assert(s.Addr, qt.Equals, uint32(0x00FF))
}

func TestIdleWaitsForRisingEdge(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()
	s := InitState()

	for ts := uint64(0); ts < 1000; ts += 100 {
		c.Assert(ProcessSample(&s, &p, &platform, false, ts), qt.IsNil)
		c.Assert(s, qt.Equals, InitState())
	}

	c.Assert(ProcessSample(&s, &p, &platform, true, 1000), qt.IsNil)
	c.Assert(s.Stage, qt.Equals, StageStartSymbol)
	c.Assert(s.SymbolStartUsecs, qt.Equals, uint64(1000))
}

// ============================================================
// Start Symbol Tests
// ============================================================

func TestStartSymbol(t *testing.T) {
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	tests := []struct {
		name    string
		level   bool
		elapsed uint64
		stage   Stage
		err     error
	}{
		{"mark ends early", false, 8924, StageStartSymbol, ErrPulseTooShort},
		{"mark in progress", true, 5000, StageStartSymbol, nil},
		{"mark ends at minimum", false, 8925, StageStartSymbol, nil},
		{"mark ends at maximum", false, 9075, StageStartSymbol, nil},
		{"space in progress", false, 11000, StageStartSymbol, nil},
		{"line high during space", true, 11000, StageStartSymbol, ErrUnexpectedLineHigh},
		{"period at minimum", true, 13425, StageAddr, nil},
		{"period nominal", true, 13500, StageAddr, nil},
		{"period at maximum", true, 13575, StageAddr, nil},
		{"period too long low", false, 13576, StageStartSymbol, ErrSymbolPeriodTooLong},
		{"period too long high", true, 13576, StageStartSymbol, ErrSymbolPeriodTooLong},
	}

	c := qt.New(t)
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			s := State{Stage: StageStartSymbol, SymbolStartUsecs: 500}
			err := ProcessSample(&s, &p, &platform, tt.level, 500+tt.elapsed)
			if tt.err == nil {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.ErrorIs, tt.err)
			}
			c.Assert(s.Stage, qt.Equals, tt.stage)
			if tt.stage == StageAddr {
				c.Assert(s.SymbolStartUsecs, qt.Equals, 500+tt.elapsed)
			}
		})
	}
}

// ============================================================
// Data Bit Tests
// ============================================================

func TestDataBitBoundaries(t *testing.T) {
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	shortMax := uint64(ZeroPeriodUsecs + DefaultTolerance)
	longMax := uint64(OnePeriodUsecs + DefaultTolerance)

	tests := []struct {
		name     string
		level    bool
		elapsed  uint64
		complete bool
		bit      bool
		err      error
	}{
		{"mark ends early", false, BitMarkUsecs - DefaultTolerance - 1, false, false, ErrPulseTooShort},
		{"mark in progress", true, 100, false, false, nil},
		{"mark ends at minimum", false, BitMarkUsecs - DefaultTolerance, false, false, nil},
		{"mark ends at maximum", false, BitMarkUsecs + DefaultTolerance, false, false, nil},
		{"line high before zero period", true, ZeroPeriodUsecs - DefaultTolerance - 1, false, false, ErrUnexpectedLineHigh},
		{"zero at minimum", true, ZeroPeriodUsecs - DefaultTolerance, true, false, nil},
		{"zero nominal", true, ZeroPeriodUsecs, true, false, nil},
		{"zero at maximum", true, shortMax, true, false, nil},
		{"line high past zero period", true, shortMax + 1, false, false, ErrUnexpectedLineHigh},
		{"space between periods", false, shortMax + 1, false, false, nil},
		{"one at minimum", true, OnePeriodUsecs - DefaultTolerance, true, true, nil},
		{"one nominal", true, OnePeriodUsecs, true, true, nil},
		{"one at maximum", true, longMax, true, true, nil},
		{"space too long", false, longMax + 1, false, false, ErrSymbolPeriodTooLong},
		{"period too long", true, longMax + 1, false, false, ErrSymbolPeriodTooLong},
	}

	c := qt.New(t)
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			s := State{Stage: StageAddr, SymbolStartUsecs: 20000, BitIdx: 3, Addr: 0x7}
			err := ProcessSample(&s, &p, &platform, tt.level, 20000+tt.elapsed)
			if tt.err != nil {
				c.Assert(err, qt.ErrorIs, tt.err)
				return
			}
			c.Assert(err, qt.IsNil)
			if !tt.complete {
				c.Assert(s.BitIdx, qt.Equals, uint32(3))
				c.Assert(s.SymbolStartUsecs, qt.Equals, uint64(20000))
				return
			}
			c.Assert(s.BitIdx, qt.Equals, uint32(4))
			c.Assert(s.SymbolStartUsecs, qt.Equals, 20000+tt.elapsed)
			c.Assert(s.Addr&(1<<3) != 0, qt.Equals, tt.bit)
			c.Assert(s.Addr&0x7, qt.Equals, uint32(0x7))
		})
	}
}

func TestDataBitClearsStaleBit(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	s := State{Stage: StageCmd, SymbolStartUsecs: 0, Cmd: 0xFFFF}
	c.Assert(ProcessSample(&s, &p, &platform, true, ZeroPeriodUsecs), qt.IsNil)
	c.Assert(s.Cmd, qt.Equals, uint32(0xFFFE))
}

func TestClassifierInvertedPeriods(t *testing.T) {
	c := qt.New(t)

	// One is the shorter period here
	p := mustLookup(ProtocolNEC32)
	p.ZeroPeriodUsecs, p.OnePeriodUsecs = p.OnePeriodUsecs, p.ZeroPeriodUsecs
	platform := DefaultPlatform()
	c.Assert(p.Validate(&platform), qt.IsNil)

	b := newBitBands(&p, &platform)
	bit, complete, kind := classifyDataBit(b, true, 1124)
	c.Assert(kind, qt.Equals, errNone)
	c.Assert(complete, qt.IsTrue)
	c.Assert(bit, qt.IsTrue)

	bit, complete, kind = classifyDataBit(b, true, 2249)
	c.Assert(kind, qt.Equals, errNone)
	c.Assert(complete, qt.IsTrue)
	c.Assert(bit, qt.IsFalse)
}

func TestWindowSaturates(t *testing.T) {
	c := qt.New(t)
	w := newWindow(50, 75)
	c.Assert(w.min, qt.Equals, uint64(0))
	c.Assert(w.max, qt.Equals, uint64(125))

	w = newWindow(^uint32(0), ^uint32(0))
	c.Assert(w.max, qt.Equals, 2*uint64(^uint32(0)))
}

// ============================================================
// Stop Symbol Tests
// ============================================================

func TestStopSymbol(t *testing.T) {
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	tests := []struct {
		name    string
		level   bool
		elapsed uint64
		stage   Stage
		err     error
	}{
		{"mark in progress", true, 300, StageStopSymbol, nil},
		{"mark ends early", false, 486, StageStopSymbol, ErrPulseTooShort},
		{"mark ends at minimum", false, 487, StageFinished, nil},
		{"mark ends nominal", false, 562, StageFinished, nil},
		{"mark ends at maximum", false, 637, StageFinished, nil},
		{"mark still high at maximum", true, 637, StageStopSymbol, nil},
		{"mark too long", true, 638, StageStopSymbol, ErrUnexpectedLineHigh},
		{"falling edge missed", false, 638, StageStopSymbol, ErrSymbolPeriodTooLong},
	}

	c := qt.New(t)
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			s := State{Stage: StageStopSymbol, SymbolStartUsecs: 9000, Addr: 1, Cmd: 2}
			err := ProcessSample(&s, &p, &platform, tt.level, 9000+tt.elapsed)
			if tt.err == nil {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.ErrorIs, tt.err)
			}
			c.Assert(s.Stage, qt.Equals, tt.stage)
			c.Assert(s.Addr, qt.Equals, uint32(1))
			c.Assert(s.Cmd, qt.Equals, uint32(2))
		})
	}
}

// ============================================================
// Frame Tests
// ============================================================

func TestDecodeNEC32Frame(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := PlatformConfig{ToleranceUsecs: 75}

	segs := frameSegments(&p, 0x00FF, 0x10EF)
	s := InitState()
	err := feed(&s, &p, &platform, sampleSegments(segs, 1_000_000, 10))
	c.Assert(err, qt.IsNil)
	c.Assert(s.Stage, qt.Equals, StageFinished)
	c.Assert(s.Addr, qt.Equals, uint32(0x00FF))
	c.Assert(s.Cmd, qt.Equals, uint32(0x10EF))
}

func TestDecodeNEC32FrameEdgesOnly(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := PlatformConfig{ToleranceUsecs: 75}

	// One sample per transition, taken exactly on the edge
	var samples []sample
	var ts uint64 = 50
	for _, seg := range frameSegments(&p, 0x00FF, 0x10EF) {
		samples = append(samples, sample{seg.level, ts})
		ts += uint64(seg.usecs)
	}

	s := InitState()
	c.Assert(feed(&s, &p, &platform, samples), qt.IsNil)
	c.Assert(s.Finished(), qt.IsTrue)
	c.Assert(s.Addr, qt.Equals, uint32(0x00FF))
	c.Assert(s.Cmd, qt.Equals, uint32(0x10EF))
}

func TestDecodeTimestampWraparound(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	// Start close enough to the top of the range that the clock wraps mid-frame
	start := ^uint64(0) - 30000
	s := InitState()
	c.Assert(feed(&s, &p, &platform, sampleSegments(frameSegments(&p, 0xBEEF, 0x1234), start, 7)), qt.IsNil)
	c.Assert(s.Finished(), qt.IsTrue)
	c.Assert(s.Addr, qt.Equals, uint32(0xBEEF))
	c.Assert(s.Cmd, qt.Equals, uint32(0x1234))
}

func TestDecodeInverseFrames(t *testing.T) {
	tests := []struct {
		protocol string
		addr     uint32
		cmd      uint32
		raw      uint32
	}{
		{ProtocolNEC, 0x00, 0x00, 0xFF00FF00},
		{ProtocolNEC, 0x12, 0x34, 0xCB34ED12},
		{ProtocolNEC, 0xFF, 0xFF, 0x00FF00FF},
		{ProtocolNECExtended, 0xF00D, 0x00, 0xFF00F00D},
		{ProtocolNECExtended, 0x0100, 0x5A, 0xA55A0100},
	}

	c := qt.New(t)
	for _, tt := range tests {
		c.Run(fmt.Sprintf("%s addr 0x%X cmd 0x%X", tt.protocol, tt.addr, tt.cmd), func(c *qt.C) {
			p := mustLookup(tt.protocol)
			platform := DefaultPlatform()
			d, err := NewDecoder(p, platform)
			c.Assert(err, qt.IsNil)

			var frame *Frame
			for _, smp := range sampleSegments(frameSegments(&p, tt.addr, tt.cmd), 0, 5) {
				frame, err = d.DecodeSample(smp.level, smp.ts)
				c.Assert(err, qt.IsNil)
				if frame != nil {
					break
				}
			}
			c.Assert(frame, qt.IsNotNil)
			c.Assert(frame.Protocol, qt.Equals, tt.protocol)
			c.Assert(frame.Address, qt.Equals, tt.addr)
			c.Assert(frame.Command, qt.Equals, tt.cmd)

			raw, ok := frame.RawCode()
			c.Assert(ok, qt.IsTrue)
			c.Assert(raw, qt.Equals, tt.raw)

			valid, addr, cmd := SplitRawCode(raw)
			c.Assert(valid, qt.IsTrue)
			c.Assert(uint32(addr), qt.Equals, tt.addr)
			c.Assert(uint32(cmd), qt.Equals, tt.cmd)
		})
	}
}

func TestDecodeInverseMismatch(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC)
	platform := DefaultPlatform()

	c.Run("address", func(c *qt.C) {
		s := InitState()
		segs := frameSegmentsWithInverse(&p, 0x12, 0xEC, 0x34, 0xCB)
		err := feed(&s, &p, &platform, sampleSegments(segs, 0, 10))

		var decodeErr *DecodeError
		c.Assert(err, qt.ErrorAs, &decodeErr)
		c.Assert(decodeErr.Kind, qt.Equals, ErrInverseMismatch)
		c.Assert(decodeErr.Stage, qt.Equals, StageAddrInv)
	})

	c.Run("command", func(c *qt.C) {
		s := InitState()
		segs := frameSegmentsWithInverse(&p, 0x12, 0xED, 0x34, 0xCA)
		err := feed(&s, &p, &platform, sampleSegments(segs, 0, 10))
		c.Assert(err, qt.ErrorIs, ErrInverseMismatch)
		c.Assert(s.Stage, qt.Equals, StageCmdInv)
	})
}

func TestRoutingFollowsFieldFlags(t *testing.T) {
	platform := DefaultPlatform()

	tests := []struct {
		name       string
		addrVerify bool
		cmdVerify  bool
		afterAddr  Stage
		afterCmd   Stage
	}{
		{"no inverse", false, false, StageCmd, StageStopSymbol},
		{"address inverse only", true, false, StageAddrInv, StageStopSymbol},
		{"command inverse only", false, true, StageCmd, StageCmdInv},
		{"both inverse", true, true, StageAddrInv, StageCmdInv},
	}

	c := qt.New(t)
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			p := mustLookup(ProtocolNEC)
			p.AddrVerifyInverse = tt.addrVerify
			p.CmdVerifyInverse = tt.cmdVerify

			s := State{Stage: StageAddr}
			var ts uint64
			for i := uint32(0); i < p.AddressBits; i++ {
				ts += ZeroPeriodUsecs
				c.Assert(ProcessSample(&s, &p, &platform, true, ts), qt.IsNil)
			}
			c.Assert(s.Stage, qt.Equals, tt.afterAddr)
			c.Assert(s.BitIdx, qt.Equals, uint32(0))

			s.Stage = StageCmd
			for i := uint32(0); i < p.CommandBits; i++ {
				ts += OnePeriodUsecs
				c.Assert(ProcessSample(&s, &p, &platform, true, ts), qt.IsNil)
			}
			c.Assert(s.Stage, qt.Equals, tt.afterCmd)
			c.Assert(s.Cmd, qt.Equals, uint32(0xFF))

			// A full frame with the same flags decodes end to end
			s = InitState()
			c.Assert(feed(&s, &p, &platform, sampleSegments(frameSegments(&p, 0x5A, 0xC3), 0, 10)), qt.IsNil)
			c.Assert(s.Finished(), qt.IsTrue)
			c.Assert(s.Addr, qt.Equals, uint32(0x5A))
			c.Assert(s.Cmd, qt.Equals, uint32(0xC3))
		})
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestNewDecoderValidates(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	p.OnePeriodUsecs = p.ZeroPeriodUsecs

	d, err := NewDecoder(p, DefaultPlatform())
	c.Assert(d, qt.IsNil)
	c.Assert(err, qt.ErrorIs, ErrInvalidProtocol)
}

func TestDecoderBackToBack(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	d, err := NewDecoder(p, DefaultPlatform())
	c.Assert(err, qt.IsNil)

	var segs []segment
	want := []struct{ addr, cmd uint32 }{{0x00FF, 0x10EF}, {0xABCD, 0x0001}, {0, 0xFFFF}}
	for _, w := range want {
		segs = append(segs, frameSegments(&p, w.addr, w.cmd)...)
	}

	var frames []*Frame
	for _, smp := range sampleSegments(segs, 0, 10) {
		frame, err := d.DecodeSample(smp.level, smp.ts)
		c.Assert(err, qt.IsNil)
		if frame != nil {
			frames = append(frames, frame)
		}
	}

	c.Assert(frames, qt.HasLen, len(want))
	for i, w := range want {
		c.Assert(frames[i].Address, qt.Equals, w.addr)
		c.Assert(frames[i].Command, qt.Equals, w.cmd)
		c.Assert(frames[i].Timestamp.IsZero(), qt.IsFalse)
		c.Assert(frames[i].String(), qt.Equals, fmt.Sprintf("addr: 0x%X, cmd: 0x%X", w.addr, w.cmd))
	}
	c.Assert(d.Stage(), qt.Equals, StageIdle)
}

func TestDecoderResetsOnError(t *testing.T) {
	c := qt.New(t)
	d, err := NewDecoder(mustLookup(ProtocolNEC32), DefaultPlatform())
	c.Assert(err, qt.IsNil)

	_, err = d.DecodeSample(true, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(d.Stage(), qt.Equals, StageStartSymbol)

	// Leading mark cut short
	_, err = d.DecodeSample(false, 4000)
	c.Assert(err, qt.ErrorIs, ErrPulseTooShort)
	c.Assert(d.State(), qt.Equals, InitState())
}

// ============================================================
// Error Tests
// ============================================================

func TestDecodeErrorDetails(t *testing.T) {
	c := qt.New(t)
	p := mustLookup(ProtocolNEC32)
	platform := DefaultPlatform()

	s := State{Stage: StageAddr, SymbolStartUsecs: 100}
	err := ProcessSample(&s, &p, &platform, false, 100+486)

	var decodeErr *DecodeError
	c.Assert(errors.As(err, &decodeErr), qt.IsTrue)
	c.Assert(decodeErr.Kind, qt.Equals, ErrPulseTooShort)
	c.Assert(decodeErr.Stage, qt.Equals, StageAddr)
	c.Assert(decodeErr.ElapsedUsecs, qt.Equals, uint64(486))
	c.Assert(decodeErr.Level, qt.IsFalse)
	c.Assert(err.Error(), qt.Equals, "pulse too short in ADDR after 486 us")

	kind, ok := KindOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(kind, qt.Equals, ErrPulseTooShort)
	c.Assert(kind.Name(), qt.Equals, "PULSE_TOO_SHORT")

	kind, ok = KindOf(fmt.Errorf("wrapped: %w", ErrNullPlatform))
	c.Assert(ok, qt.IsTrue)
	c.Assert(kind, qt.Equals, ErrNullPlatform)

	_, ok = KindOf(errors.New("other"))
	c.Assert(ok, qt.IsFalse)
}

func TestStageNames(t *testing.T) {
	c := qt.New(t)
	c.Assert(StageIdle.String(), qt.Equals, "IDLE")
	c.Assert(StageCmdInv.String(), qt.Equals, "CMD_INV")
	c.Assert(Stage(99).String(), qt.Equals, "UNKNOWN")
	c.Assert(Stage(99).Valid(), qt.IsFalse)
	c.Assert(StageFinished.Valid(), qt.IsTrue)
}
