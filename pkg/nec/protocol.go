// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProtocolConfig describes the bit and timing layout of an NEC-family protocol.
// All durations are in microseconds. A ProtocolConfig is never modified by the
// decoder and may be shared between any number of sessions.
type ProtocolConfig struct {
	Name string

	AddressBits uint32
	CommandBits uint32

	StartPulseUsecs  uint32 // leading mark
	StartPeriodUsecs uint32 // leading mark + space
	StopPulseUsecs   uint32 // trailing mark

	// NEC marks are constant width, only the space differs between 0 and 1
	DataBitPulseUsecs uint32
	ZeroPeriodUsecs   uint32
	OnePeriodUsecs    uint32

	AddrVerifyInverse bool
	CmdVerifyInverse  bool
}

// PlatformConfig describes the sampling platform
type PlatformConfig struct {
	// ToleranceUsecs is the symmetric slack applied to every expected duration
	ToleranceUsecs uint32
}

// DefaultPlatform returns a platform with the default tolerance
func DefaultPlatform() PlatformConfig {
	return PlatformConfig{ToleranceUsecs: DefaultTolerance}
}

// Validate checks the protocol invariants against a platform tolerance.
// Besides positive durations and distinct zero/one periods, the tolerance
// bands used by the classifier must not overlap.
func (p *ProtocolConfig) Validate(platform *PlatformConfig) error {
	if p == nil {
		return ErrNullProtocol
	}
	if platform == nil {
		return ErrNullPlatform
	}

	if p.AddressBits == 0 || p.AddressBits > 32 {
		return invalidProtocol("address bits %d out of range 1-32", p.AddressBits)
	}
	if p.CommandBits == 0 || p.CommandBits > 32 {
		return invalidProtocol("command bits %d out of range 1-32", p.CommandBits)
	}

	durations := []struct {
		name  string
		value uint32
	}{
		{"start pulse", p.StartPulseUsecs},
		{"start period", p.StartPeriodUsecs},
		{"stop pulse", p.StopPulseUsecs},
		{"data bit pulse", p.DataBitPulseUsecs},
		{"zero period", p.ZeroPeriodUsecs},
		{"one period", p.OnePeriodUsecs},
	}
	for _, d := range durations {
		if d.value == 0 {
			return invalidProtocol("%s must be positive", d.name)
		}
	}

	if p.ZeroPeriodUsecs == p.OnePeriodUsecs {
		return invalidProtocol("zero and one periods are both %d us", p.ZeroPeriodUsecs)
	}

	tol := platform.ToleranceUsecs
	start := newWindow(p.StartPulseUsecs, tol)
	startPeriod := newWindow(p.StartPeriodUsecs, tol)
	if start.max >= startPeriod.min {
		return invalidProtocol("start pulse band [%d, %d] overlaps start period band [%d, %d]",
			start.min, start.max, startPeriod.min, startPeriod.max)
	}

	bands := newBitBands(p, platform)
	if bands.pulse.max >= bands.short.min {
		return invalidProtocol("data pulse band [%d, %d] overlaps shorter period band [%d, %d]",
			bands.pulse.min, bands.pulse.max, bands.short.min, bands.short.max)
	}
	if bands.short.max >= bands.long.min {
		return invalidProtocol("shorter period band [%d, %d] overlaps longer period band [%d, %d]",
			bands.short.min, bands.short.max, bands.long.min, bands.long.max)
	}

	return nil
}

func invalidProtocol(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidProtocol, fmt.Sprintf(format, args...))
}

// Preset protocol names
const (
	ProtocolNEC         = "nec"
	ProtocolNECExtended = "nec-extended"
	ProtocolNEC32       = "nec32"

	DefaultProtocol = ProtocolNEC32
)

func necTimings(name string) ProtocolConfig {
	return ProtocolConfig{
		Name:              name,
		StartPulseUsecs:   LeadMarkUsecs,
		StartPeriodUsecs:  LeadPeriodUsecs,
		StopPulseUsecs:    TrailMarkUsecs,
		DataBitPulseUsecs: BitMarkUsecs,
		ZeroPeriodUsecs:   ZeroPeriodUsecs,
		OnePeriodUsecs:    OnePeriodUsecs,
	}
}

var (
	presetsMu sync.RWMutex
	presets   = map[string]ProtocolConfig{}
)

func init() {
	// Canonical NEC: addr, ~addr, cmd, ~cmd
	p := necTimings(ProtocolNEC)
	p.AddressBits = 8
	p.CommandBits = 8
	p.AddrVerifyInverse = true
	p.CmdVerifyInverse = true
	RegisterProtocol(p)

	// Extended NEC: 16-bit address, cmd, ~cmd
	p = necTimings(ProtocolNECExtended)
	p.AddressBits = 16
	p.CommandBits = 8
	p.CmdVerifyInverse = true
	RegisterProtocol(p)

	// Whole 32-bit payload taken as two unchecked 16-bit fields
	p = necTimings(ProtocolNEC32)
	p.AddressBits = 16
	p.CommandBits = 16
	RegisterProtocol(p)
}

// RegisterProtocol adds or replaces a named protocol preset
func RegisterProtocol(p ProtocolConfig) {
	presetsMu.Lock()
	defer presetsMu.Unlock()
	presets[strings.ToLower(p.Name)] = p
}

// LookupProtocol returns a copy of the named preset
func LookupProtocol(name string) (ProtocolConfig, error) {
	presetsMu.RLock()
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	presetsMu.RUnlock()
	if !ok {
		return ProtocolConfig{}, fmt.Errorf("unknown protocol %q (available: %s)",
			name, strings.Join(ProtocolNames(), ", "))
	}
	return p, nil
}

// ProtocolNames returns the registered preset names in sorted order
func ProtocolNames() []string {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
