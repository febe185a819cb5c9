// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

// window is an inclusive [min, max] range of elapsed microseconds
type window struct {
	min uint64
	max uint64
}

func newWindow(expected, tolerance uint32) window {
	w := window{max: uint64(expected) + uint64(tolerance)}
	if expected > tolerance {
		w.min = uint64(expected - tolerance)
	}
	return w
}

// bitBands holds the classification windows for a data bit symbol.
// The bands are ordered: pulse < short < long.
type bitBands struct {
	pulse window
	short window
	long  window

	shortValue bool
	longValue  bool
}

func newBitBands(p *ProtocolConfig, platform *PlatformConfig) bitBands {
	tol := platform.ToleranceUsecs
	b := bitBands{pulse: newWindow(p.DataBitPulseUsecs, tol)}

	if p.ZeroPeriodUsecs < p.OnePeriodUsecs {
		b.short = newWindow(p.ZeroPeriodUsecs, tol)
		b.long = newWindow(p.OnePeriodUsecs, tol)
		b.shortValue = false
		b.longValue = true
	} else {
		b.short = newWindow(p.OnePeriodUsecs, tol)
		b.long = newWindow(p.ZeroPeriodUsecs, tol)
		b.shortValue = true
		b.longValue = false
	}

	return b
}

// classifyDataBit decodes a zero-or-one symbol from the time elapsed since the
// symbol began and the current line level. complete is false with errNone
// while the symbol is still in progress.
func classifyDataBit(b bitBands, level bool, elapsed uint64) (bit bool, complete bool, kind ErrorKind) {
	switch {
	case elapsed < b.pulse.min:
		// Mark ended before it could be a data bit
		if !level {
			return false, false, ErrPulseTooShort
		}

	case elapsed <= b.pulse.max:
		// Mark within tolerance, either level is fine

	case elapsed < b.short.min:
		if level {
			return false, false, ErrUnexpectedLineHigh
		}

	case elapsed <= b.short.max:
		if level {
			return b.shortValue, true, errNone
		}

	case elapsed < b.long.min:
		if level {
			return false, false, ErrUnexpectedLineHigh
		}

	case elapsed <= b.long.max:
		if level {
			return b.longValue, true, errNone
		}

	default:
		return false, false, ErrSymbolPeriodTooLong
	}

	return false, false, errNone
}

// classifyStartSymbol checks the leading symbol, which has a single valid
// period. complete is true once the next mark begins inside the period band.
func classifyStartSymbol(p *ProtocolConfig, platform *PlatformConfig, level bool, elapsed uint64) (complete bool, kind ErrorKind) {
	pulse := newWindow(p.StartPulseUsecs, platform.ToleranceUsecs)
	period := newWindow(p.StartPeriodUsecs, platform.ToleranceUsecs)

	switch {
	case elapsed < pulse.min:
		if !level {
			return false, ErrPulseTooShort
		}

	case elapsed <= pulse.max:

	case elapsed < period.min:
		if level {
			return false, ErrUnexpectedLineHigh
		}

	case elapsed <= period.max:
		if level {
			return true, errNone
		}

	default:
		return false, ErrSymbolPeriodTooLong
	}

	return false, errNone
}

// classifyStopSymbol checks the trailing mark, which has no space component.
// complete is true once the line falls inside the pulse band.
func classifyStopSymbol(p *ProtocolConfig, platform *PlatformConfig, level bool, elapsed uint64) (complete bool, kind ErrorKind) {
	pulse := newWindow(p.StopPulseUsecs, platform.ToleranceUsecs)

	switch {
	case elapsed < pulse.min:
		if !level {
			return false, ErrPulseTooShort
		}

	case elapsed <= pulse.max:
		if !level {
			return true, errNone
		}

	default:
		// Still high means the mark is too long; low means the falling
		// edge was missed and no valid symbol fits any more
		if level {
			return false, ErrUnexpectedLineHigh
		}
		return false, ErrSymbolPeriodTooLong
	}

	return false, errNone
}
