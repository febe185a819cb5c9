// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

import (
	"fmt"
	"time"
)

// Frame is a fully decoded NEC frame
type Frame struct {
	Protocol    string
	AddressBits uint32
	CommandBits uint32

	Address    uint32
	Command    uint32
	InvAddress uint32
	InvCommand uint32

	HasInvAddress bool
	HasInvCommand bool

	EndUsecs  uint64    // sample timestamp of the end of the stop mark
	Timestamp time.Time // wall-clock decode time
}

// FrameFromState builds a frame from a finished state
func FrameFromState(protocol *ProtocolConfig, state *State) (*Frame, error) {
	if state == nil {
		return nil, ErrNullState
	}
	if protocol == nil {
		return nil, ErrNullProtocol
	}
	if !state.Finished() {
		return nil, fmt.Errorf("frame not finished (stage %s)", state.Stage)
	}
	return newFrame(protocol, state), nil
}

func newFrame(protocol *ProtocolConfig, state *State) *Frame {
	return &Frame{
		Protocol:      protocol.Name,
		AddressBits:   protocol.AddressBits,
		CommandBits:   protocol.CommandBits,
		Address:       state.Addr,
		Command:       state.Cmd,
		InvAddress:    state.InvAddr,
		InvCommand:    state.InvCmd,
		HasInvAddress: protocol.AddrVerifyInverse,
		HasInvCommand: protocol.CmdVerifyInverse,
	}
}

// String formats the frame the way the record command prints it
func (f *Frame) String() string {
	return fmt.Sprintf("addr: 0x%X, cmd: 0x%X", f.Address, f.Command)
}

// RawCode reassembles the frame's fields into the code as it was sent,
// first field in the least significant bits.
// Returns false if the fields do not fit in 32 bits.
func (f *Frame) RawCode() (uint32, bool) {
	var code uint64
	var shift uint32

	push := func(value, width uint32) {
		code |= uint64(value&FieldMask(width)) << shift
		shift += width
	}

	push(f.Address, f.AddressBits)
	if f.HasInvAddress {
		push(f.InvAddress, f.AddressBits)
	}
	push(f.Command, f.CommandBits)
	if f.HasInvCommand {
		push(f.InvCommand, f.CommandBits)
	}

	if shift > 32 {
		return 0, false
	}
	return uint32(code), true
}
