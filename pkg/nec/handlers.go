// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

// handleIdle waits for the first high sample, which starts the leading mark
func handleIdle(s *State, _ *ProtocolConfig, _ *PlatformConfig, level bool, timestamp uint64) error {
	if !level {
		return nil
	}

	s.Stage = StageStartSymbol
	s.SymbolStartUsecs = timestamp
	return nil
}

func handleStartSymbol(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64) error {
	elapsed := timestamp - s.SymbolStartUsecs
	complete, kind := classifyStartSymbol(p, platform, level, elapsed)
	if kind != errNone {
		return newDecodeError(kind, s, elapsed, level)
	}
	if !complete {
		return nil
	}

	s.SymbolStartUsecs = timestamp
	s.Stage = StageAddr
	return nil
}

func handleAddr(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64) error {
	done, err := decodeFieldBit(s, p, platform, level, timestamp, &s.Addr, p.AddressBits)
	if err != nil || !done {
		return err
	}

	if p.AddrVerifyInverse {
		s.Stage = StageAddrInv
	} else {
		s.Stage = StageCmd
	}
	return nil
}

func handleAddrInv(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64) error {
	done, err := decodeFieldBit(s, p, platform, level, timestamp, &s.InvAddr, p.AddressBits)
	if err != nil || !done {
		return err
	}

	if !isInverse(s.Addr, s.InvAddr, p.AddressBits) {
		return newDecodeError(ErrInverseMismatch, s, 0, level)
	}

	s.Stage = StageCmd
	return nil
}

func handleCmd(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64) error {
	done, err := decodeFieldBit(s, p, platform, level, timestamp, &s.Cmd, p.CommandBits)
	if err != nil || !done {
		return err
	}

	if p.CmdVerifyInverse {
		s.Stage = StageCmdInv
	} else {
		s.Stage = StageStopSymbol
	}
	return nil
}

func handleCmdInv(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64) error {
	done, err := decodeFieldBit(s, p, platform, level, timestamp, &s.InvCmd, p.CommandBits)
	if err != nil || !done {
		return err
	}

	if !isInverse(s.Cmd, s.InvCmd, p.CommandBits) {
		return newDecodeError(ErrInverseMismatch, s, 0, level)
	}

	s.Stage = StageStopSymbol
	return nil
}

func handleStopSymbol(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64) error {
	elapsed := timestamp - s.SymbolStartUsecs
	complete, kind := classifyStopSymbol(p, platform, level, elapsed)
	if kind != errNone {
		return newDecodeError(kind, s, elapsed, level)
	}
	if complete {
		s.Stage = StageFinished
	}
	return nil
}

// decodeFieldBit runs the data bit classifier and shifts a completed bit into
// field at BitIdx. It returns true once width bits have been accepted, with
// BitIdx reset for the next field.
func decodeFieldBit(s *State, p *ProtocolConfig, platform *PlatformConfig, level bool, timestamp uint64, field *uint32, width uint32) (bool, error) {
	elapsed := timestamp - s.SymbolStartUsecs
	bit, complete, kind := classifyDataBit(newBitBands(p, platform), level, elapsed)
	if kind != errNone {
		return false, newDecodeError(kind, s, elapsed, level)
	}
	if !complete {
		return false, nil
	}

	if bit {
		*field |= 1 << s.BitIdx
	} else {
		*field &^= 1 << s.BitIdx
	}
	s.BitIdx++
	s.SymbolStartUsecs = timestamp

	if s.BitIdx < width {
		return false, nil
	}
	s.BitIdx = 0
	return true, nil
}

func isInverse(value, inverse, width uint32) bool {
	mask := FieldMask(width)
	return (value^inverse)&mask == mask
}
