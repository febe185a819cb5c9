// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Thermoquad/necscope/pkg/nec"
)

// Statistics tracks decoded frames and decode errors. It is safe for
// concurrent use; readers take a Snapshot.
type Statistics struct {
	mu sync.Mutex

	startTime      time.Time
	lastUpdateTime time.Time

	// Counters
	totalSamples  uint64
	totalFrames   uint64
	decodeErrors  uint64
	errorsByKind  map[nec.ErrorKind]uint64
	errorsByStage map[nec.Stage]uint64

	lastFrame *nec.Frame
}

// Snapshot is a point-in-time copy of Statistics
type Snapshot struct {
	StartTime      time.Time         `json:"start_time"`
	LastUpdateTime time.Time         `json:"last_update_time"`
	Elapsed        time.Duration     `json:"elapsed_ns"`
	TotalSamples   uint64            `json:"total_samples"`
	TotalFrames    uint64            `json:"total_frames"`
	DecodeErrors   uint64            `json:"decode_errors"`
	ErrorsByKind   map[string]uint64 `json:"errors_by_kind"`
	ErrorsByStage  map[string]uint64 `json:"errors_by_stage"`
	FrameRate      float64           `json:"frame_rate"` // frames/sec
	ErrorRate      float64           `json:"error_rate"` // errors/sec
	LastFrame      *nec.Frame        `json:"last_frame,omitempty"`
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

// RecordSample counts a processed sample
func (s *Statistics) RecordSample() {
	s.mu.Lock()
	s.totalSamples++
	s.mu.Unlock()
}

// RecordFrame counts a decoded frame
func (s *Statistics) RecordFrame(f *nec.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalFrames++
	s.lastFrame = f
	s.lastUpdateTime = time.Now()
}

// RecordError counts a decode error by kind and, when known, stage
func (s *Statistics) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decodeErrors++
	s.lastUpdateTime = time.Now()

	if kind, ok := nec.KindOf(err); ok {
		s.errorsByKind[kind]++
	}
	if stage, ok := stageOf(err); ok {
		s.errorsByStage[stage]++
	}
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		StartTime:      s.startTime,
		LastUpdateTime: s.lastUpdateTime,
		Elapsed:        time.Since(s.startTime),
		TotalSamples:   s.totalSamples,
		TotalFrames:    s.totalFrames,
		DecodeErrors:   s.decodeErrors,
		ErrorsByKind:   make(map[string]uint64, len(s.errorsByKind)),
		ErrorsByStage:  make(map[string]uint64, len(s.errorsByStage)),
		LastFrame:      s.lastFrame,
	}
	for kind, n := range s.errorsByKind {
		snap.ErrorsByKind[kind.Name()] = n
	}
	for stage, n := range s.errorsByStage {
		snap.ErrorsByStage[stage.String()] = n
	}

	if elapsed := snap.Elapsed.Seconds(); elapsed > 0 {
		snap.FrameRate = float64(s.totalFrames) / elapsed
		snap.ErrorRate = float64(s.decodeErrors) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String returns a formatted statistics summary
func (snap Snapshot) String() string {
	attempts := snap.TotalFrames + snap.DecodeErrors
	var framePercent, errorPercent float64
	if attempts > 0 {
		framePercent = float64(snap.TotalFrames) * 100.0 / float64(attempts)
		errorPercent = float64(snap.DecodeErrors) * 100.0 / float64(attempts)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	result += fmt.Sprintf("Samples:         %8d\n", snap.TotalSamples)
	result += fmt.Sprintf("Frames:          %8d (%.1f%%)\n", snap.TotalFrames, framePercent)

	if snap.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", snap.DecodeErrors, errorPercent)
		for _, name := range sortedKeys(snap.ErrorsByKind) {
			result += fmt.Sprintf("  %-22s %5d\n", name+":", snap.ErrorsByKind[name])
		}
		if len(snap.ErrorsByStage) > 0 {
			result += "  By stage:\n"
			for _, name := range sortedKeys(snap.ErrorsByStage) {
				result += fmt.Sprintf("    %-20s %5d\n", name+":", snap.ErrorsByStage[name])
			}
		}
	}

	if snap.LastFrame != nil {
		result += fmt.Sprintf("Last Frame:      %s\n", snap.LastFrame)
	}

	result += fmt.Sprintf("Frame Rate:      %8.2f frames/sec\n", snap.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.2f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.startTime = now
	s.lastUpdateTime = now
	s.totalSamples = 0
	s.totalFrames = 0
	s.decodeErrors = 0
	s.errorsByKind = make(map[nec.ErrorKind]uint64)
	s.errorsByStage = make(map[nec.Stage]uint64)
	s.lastFrame = nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
