// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"

	"github.com/Thermoquad/necscope/pkg/nec"
)

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyEmptyBatch
	AnomalyFirstDelta
	AnomalyFieldOverflow
	AnomalyRawMismatch
	AnomalyUnknownProtocol
	AnomalyDecodeError
)

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket validates packet contents and detects anomalies
// Returns a slice of validation errors (empty if packet is valid)
func ValidatePacket(p *Packet) []ValidationError {
	if err := p.ParseError(); err != nil {
		return []ValidationError{{
			Type:    AnomalyDecodeError,
			Message: fmt.Sprintf("CBOR decode failed: %v", err),
		}}
	}

	switch p.Type() {
	case MsgSampleBatch:
		b, err := p.SampleBatch()
		if err != nil {
			return []ValidationError{{Type: AnomalyDecodeError, Message: err.Error()}}
		}
		return validateSampleBatch(b)
	case MsgFrameReport:
		r, err := p.FrameReport()
		if err != nil {
			return []ValidationError{{Type: AnomalyDecodeError, Message: err.Error()}}
		}
		return validateFrameReport(r)
	}

	return []ValidationError{}
}

func validateSampleBatch(b *SampleBatch) []ValidationError {
	errors := []ValidationError{}

	if len(b.Deltas) == 0 {
		return []ValidationError{{
			Type:    AnomalyEmptyBatch,
			Message: "SAMPLE_BATCH has no samples",
		}}
	}

	if want := (len(b.Deltas) + 7) / 8; len(b.Levels) != want {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("SAMPLE_BATCH level bitmap is %d bytes (expected %d)", len(b.Levels), want),
			Details: map[string]interface{}{"length": len(b.Levels), "expected": want},
		})
	}

	if b.Deltas[0] != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyFirstDelta,
			Message: fmt.Sprintf("SAMPLE_BATCH first delta is %d (expected 0)", b.Deltas[0]),
			Details: map[string]interface{}{"delta": b.Deltas[0]},
		})
	}

	return errors
}

func validateFrameReport(r *FrameReport) []ValidationError {
	errors := []ValidationError{}

	p, err := nec.LookupProtocol(r.Protocol)
	if err != nil {
		return []ValidationError{{
			Type:    AnomalyUnknownProtocol,
			Message: err.Error(),
			Details: map[string]interface{}{"protocol": r.Protocol},
		}}
	}

	if p.AddressBits < 32 && r.Address>>p.AddressBits != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyFieldOverflow,
			Message: fmt.Sprintf("Address 0x%X wider than %d bits", r.Address, p.AddressBits),
			Details: map[string]interface{}{"address": r.Address, "bits": p.AddressBits},
		})
	}
	if p.CommandBits < 32 && r.Command>>p.CommandBits != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyFieldOverflow,
			Message: fmt.Sprintf("Command 0x%X wider than %d bits", r.Command, p.CommandBits),
			Details: map[string]interface{}{"command": r.Command, "bits": p.CommandBits},
		})
	}

	if r.Raw != 0 {
		frame := ReportFrame(&p, r)
		if raw, ok := frame.RawCode(); ok && raw != r.Raw {
			errors = append(errors, ValidationError{
				Type:    AnomalyRawMismatch,
				Message: fmt.Sprintf("Raw code 0x%08X does not match fields (expected 0x%08X)", r.Raw, raw),
				Details: map[string]interface{}{"raw": r.Raw, "expected": raw},
			})
		}
	}

	return errors
}
