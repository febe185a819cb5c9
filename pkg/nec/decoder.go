// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

import "time"

// ProcessSample advances the state machine by one sample.
//
// sample is the line level (true = mark) and timestampUsecs the time it was
// taken. Timestamps must be monotonically non-decreasing within a session.
// On error the frame is lost and state must be reset before the next call;
// once state reaches StageFinished the host stops calling and reads the
// decoded fields from state.
func ProcessSample(state *State, protocol *ProtocolConfig, platform *PlatformConfig, sample bool, timestampUsecs uint64) error {
	if state == nil {
		return ErrNullState
	}
	if protocol == nil {
		return ErrNullProtocol
	}
	if platform == nil {
		return ErrNullPlatform
	}
	if !state.Stage.Valid() {
		return &DecodeError{Kind: ErrInvalidStage, Stage: state.Stage, Level: sample}
	}

	switch state.Stage {
	case StageIdle:
		return handleIdle(state, protocol, platform, sample, timestampUsecs)
	case StageStartSymbol:
		return handleStartSymbol(state, protocol, platform, sample, timestampUsecs)
	case StageAddr:
		return handleAddr(state, protocol, platform, sample, timestampUsecs)
	case StageAddrInv:
		return handleAddrInv(state, protocol, platform, sample, timestampUsecs)
	case StageCmd:
		return handleCmd(state, protocol, platform, sample, timestampUsecs)
	case StageCmdInv:
		return handleCmdInv(state, protocol, platform, sample, timestampUsecs)
	case StageStopSymbol:
		return handleStopSymbol(state, protocol, platform, sample, timestampUsecs)
	default:
		// StageFinished is terminal
		return &DecodeError{Kind: ErrSessionFinished, Stage: state.Stage, Level: sample}
	}
}

// Decoder bundles a State with its configuration for hosts that decode
// frames back to back. It is not safe for concurrent use.
type Decoder struct {
	protocol ProtocolConfig
	platform PlatformConfig
	state    State
}

// NewDecoder creates a decoder after validating the configuration
func NewDecoder(protocol ProtocolConfig, platform PlatformConfig) (*Decoder, error) {
	if err := protocol.Validate(&platform); err != nil {
		return nil, err
	}
	return &Decoder{
		protocol: protocol,
		platform: platform,
		state:    InitState(),
	}, nil
}

// Reset discards any partial frame
func (d *Decoder) Reset() {
	d.state.Reset()
}

// Stage returns the current stage
func (d *Decoder) Stage() Stage {
	return d.state.Stage
}

// State returns a copy of the current state
func (d *Decoder) State() State {
	return d.state
}

// Protocol returns the decoder's protocol configuration
func (d *Decoder) Protocol() ProtocolConfig {
	return d.protocol
}

// Platform returns the decoder's platform configuration
func (d *Decoder) Platform() PlatformConfig {
	return d.platform
}

// DecodeSample processes a single sample.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if decoding fails; the decoder is then reset and will
// start over on the next rising edge.
func (d *Decoder) DecodeSample(level bool, timestampUsecs uint64) (*Frame, error) {
	if err := ProcessSample(&d.state, &d.protocol, &d.platform, level, timestampUsecs); err != nil {
		d.Reset()
		return nil, err
	}

	if !d.state.Finished() {
		return nil, nil
	}

	frame := newFrame(&d.protocol, &d.state)
	frame.EndUsecs = timestampUsecs
	frame.Timestamp = time.Now()

	d.Reset()
	return frame, nil
}
