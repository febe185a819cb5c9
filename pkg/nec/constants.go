// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nec decodes NEC infrared remote-control frames from a stream of
// timestamped line-level samples.
//
// The decoder is a state machine advanced by exactly one sample per call to
// ProcessSample. Symbol boundaries are found purely from the time elapsed
// since the current symbol began, compared against the expected durations of
// a ProtocolConfig widened by the PlatformConfig tolerance.
//
// NEC protocol references:
// https://www.sbprojects.net/knowledge/ir/nec.php
// https://techdocs.altium.com/display/FPGA/NEC+Infrared+Transmission+Protocol
package nec

// NEC nominal timings in microseconds
const (
	UnitUsecs        = 562  // 562.5 us, rounded down
	LeadMarkUsecs    = 9000 // 16 units
	LeadPeriodUsecs  = 13500
	BitMarkUsecs     = UnitUsecs
	ZeroPeriodUsecs  = 2 * UnitUsecs
	OnePeriodUsecs   = UnitUsecs + 1687
	TrailMarkUsecs   = UnitUsecs
	DefaultTolerance = 75
)

// Stage is a position in the frame decoding state machine
type Stage int

// Stage values, in frame order
const (
	StageIdle Stage = iota
	StageStartSymbol
	StageAddr
	StageAddrInv
	StageCmd
	StageCmdInv
	StageStopSymbol
	StageFinished

	stageMax = StageFinished
)

// String returns the stage name
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "IDLE"
	case StageStartSymbol:
		return "START_SYMBOL"
	case StageAddr:
		return "ADDR"
	case StageAddrInv:
		return "ADDR_INV"
	case StageCmd:
		return "CMD"
	case StageCmdInv:
		return "CMD_INV"
	case StageStopSymbol:
		return "STOP_SYMBOL"
	case StageFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the declared stages
func (s Stage) Valid() bool {
	return s >= StageIdle && s <= stageMax
}
