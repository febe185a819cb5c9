// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import "github.com/Thermoquad/necscope/pkg/nec"

// NewFrameReport builds the report for a decoded frame
func NewFrameReport(f *nec.Frame) *FrameReport {
	r := &FrameReport{
		Protocol: f.Protocol,
		Address:  f.Address,
		Command:  f.Command,
	}
	if raw, ok := f.RawCode(); ok {
		r.Raw = raw
	}
	return r
}

// ReportFrame rebuilds the frame described by a report. Inverse fields are
// taken to be exact complements.
func ReportFrame(p *nec.ProtocolConfig, r *FrameReport) *nec.Frame {
	return &nec.Frame{
		Protocol:      p.Name,
		AddressBits:   p.AddressBits,
		CommandBits:   p.CommandBits,
		Address:       r.Address,
		Command:       r.Command,
		InvAddress:    ^r.Address & nec.FieldMask(p.AddressBits),
		InvCommand:    ^r.Command & nec.FieldMask(p.CommandBits),
		HasInvAddress: p.AddrVerifyInverse,
		HasInvCommand: p.CmdVerifyInverse,
	}
}
