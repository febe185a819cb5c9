// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package monitoring

import (
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/necscope/pkg/nec"
)

// FrameEntry is a decoded frame as served over HTTP
type FrameEntry struct {
	Protocol string    `json:"protocol"`
	Address  uint32    `json:"address"`
	Command  uint32    `json:"command"`
	RawCode  *uint32   `json:"raw_code,omitempty"`
	EndUsecs uint64    `json:"end_usecs"`
	Time     time.Time `json:"time"`
	Text     string    `json:"text"`
}

// ErrorEntry is a decode error as served over HTTP
type ErrorEntry struct {
	Kind         string    `json:"kind"`
	Stage        string    `json:"stage,omitempty"`
	ElapsedUsecs uint64    `json:"elapsed_usecs"`
	Time         time.Time `json:"time"`
	Text         string    `json:"text"`
}

// FrameLog keeps the most recent frames and errors
type FrameLog struct {
	sync.Mutex
	capacity int
	frames   []FrameEntry
	errs     []ErrorEntry
}

// NewFrameLog creates a log holding up to capacity entries of each kind
func NewFrameLog(capacity int) *FrameLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameLog{capacity: capacity}
}

// AddFrame appends a frame, dropping the oldest when full
func (l *FrameLog) AddFrame(f *nec.Frame) {
	if f == nil {
		return
	}

	entry := FrameEntry{
		Protocol: f.Protocol,
		Address:  f.Address,
		Command:  f.Command,
		EndUsecs: f.EndUsecs,
		Time:     f.Timestamp,
		Text:     f.String(),
	}
	if raw, ok := f.RawCode(); ok {
		entry.RawCode = &raw
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	l.Lock()
	defer l.Unlock()
	l.frames = append(l.frames, entry)
	if len(l.frames) > l.capacity {
		l.frames = l.frames[len(l.frames)-l.capacity:]
	}
}

// AddError appends a decode error, dropping the oldest when full
func (l *FrameLog) AddError(err error) {
	if err == nil {
		return
	}

	entry := ErrorEntry{
		Kind: "UNKNOWN",
		Time: time.Now(),
		Text: err.Error(),
	}
	if kind, ok := nec.KindOf(err); ok {
		entry.Kind = kind.Name()
	}
	var de *nec.DecodeError
	if errors.As(err, &de) {
		entry.Stage = de.Stage.String()
		entry.ElapsedUsecs = de.ElapsedUsecs
	}

	l.Lock()
	defer l.Unlock()
	l.errs = append(l.errs, entry)
	if len(l.errs) > l.capacity {
		l.errs = l.errs[len(l.errs)-l.capacity:]
	}
}

// Frames returns up to limit frames, newest first. limit <= 0 returns all.
func (l *FrameLog) Frames(limit int) []FrameEntry {
	l.Lock()
	defer l.Unlock()

	n := len(l.frames)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]FrameEntry, 0, n)
	for i := len(l.frames) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.frames[i])
	}
	return out
}

// Errors returns up to limit errors, newest first. limit <= 0 returns all.
func (l *FrameLog) Errors(limit int) []ErrorEntry {
	l.Lock()
	defer l.Unlock()

	n := len(l.errs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ErrorEntry, 0, n)
	for i := len(l.errs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.errs[i])
	}
	return out
}
