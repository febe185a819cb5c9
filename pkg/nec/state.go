// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

// State is the progress record of one in-flight frame decode.
// It is owned by a single decode session and mutated by ProcessSample.
// Field values are accumulated LSB first.
type State struct {
	Stage            Stage
	BitIdx           uint32 // bits accepted in the current field
	SymbolStartUsecs uint64 // timestamp at which the current symbol began

	Addr    uint32
	Cmd     uint32
	InvAddr uint32
	InvCmd  uint32
}

// InitState returns a fresh state in StageIdle with every field zeroed
func InitState() State {
	return State{Stage: StageIdle}
}

// Reset reinitializes the state in place
func (s *State) Reset() {
	*s = InitState()
}

// Finished reports whether a complete frame has been decoded
func (s *State) Finished() bool {
	return s.Stage == StageFinished
}

// InProgress reports whether a frame has started but not finished
func (s *State) InProgress() bool {
	return s.Stage != StageIdle && s.Stage != StageFinished
}
