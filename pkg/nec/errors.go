// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

import (
	"errors"
	"fmt"
)

// ErrorKind identifies why a sample was rejected. Every kind is fatal to the
// frame being decoded: the state must be reset before decoding continues.
type ErrorKind int

// Error kinds
const (
	errNone ErrorKind = iota
	ErrNullState
	ErrNullProtocol
	ErrNullPlatform
	ErrInvalidStage
	ErrPulseTooShort
	ErrUnexpectedLineHigh
	ErrSymbolPeriodTooLong
	ErrInverseMismatch
	ErrSessionFinished
	ErrInvalidProtocol
)

// Error implements the error interface
func (k ErrorKind) Error() string {
	switch k {
	case errNone:
		return "no error"
	case ErrNullState:
		return "state is nil"
	case ErrNullProtocol:
		return "protocol is nil"
	case ErrNullPlatform:
		return "platform is nil"
	case ErrInvalidStage:
		return "invalid stage"
	case ErrPulseTooShort:
		return "pulse too short"
	case ErrUnexpectedLineHigh:
		return "unexpected line high"
	case ErrSymbolPeriodTooLong:
		return "symbol period too long"
	case ErrInverseMismatch:
		return "inverse field mismatch"
	case ErrSessionFinished:
		return "frame already finished"
	case ErrInvalidProtocol:
		return "invalid protocol"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

// Name returns the upper-case identifier used in logs and records
func (k ErrorKind) Name() string {
	switch k {
	case ErrNullState:
		return "NULL_STATE"
	case ErrNullProtocol:
		return "NULL_PROTOCOL"
	case ErrNullPlatform:
		return "NULL_PLATFORM"
	case ErrInvalidStage:
		return "INVALID_STAGE"
	case ErrPulseTooShort:
		return "PULSE_TOO_SHORT"
	case ErrUnexpectedLineHigh:
		return "UNEXPECTED_LINE_HIGH"
	case ErrSymbolPeriodTooLong:
		return "SYMBOL_PERIOD_TOO_LONG"
	case ErrInverseMismatch:
		return "INVERSE_MISMATCH"
	case ErrSessionFinished:
		return "SESSION_FINISHED"
	case ErrInvalidProtocol:
		return "INVALID_PROTOCOL"
	default:
		return "UNKNOWN"
	}
}

// DecodeError reports a rejected sample along with where it happened
type DecodeError struct {
	Kind         ErrorKind
	Stage        Stage
	ElapsedUsecs uint64 // time since the current symbol began
	Level        bool
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s in %s after %d us", e.Kind, e.Stage, e.ElapsedUsecs)
}

// Unwrap exposes the kind so errors.Is(err, ErrPulseTooShort) works
func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// KindOf extracts the ErrorKind from err, or returns false if err carries none
func KindOf(err error) (ErrorKind, bool) {
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind, true
	}
	return errNone, false
}

func newDecodeError(kind ErrorKind, s *State, elapsed uint64, level bool) error {
	return &DecodeError{
		Kind:         kind,
		Stage:        s.Stage,
		ElapsedUsecs: elapsed,
		Level:        level,
	}
}
