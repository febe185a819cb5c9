// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
	"github.com/Thermoquad/necscope/pkg/recorder"
)

// openRecorder opens the database named by the --db flag or NECSCOPE_DB.
// Returns nil when neither is set.
func openRecorder(flag string, sessionID string) (*recorder.Recorder, error) {
	dsn := databaseDSN(flag)
	if dsn == "" {
		return nil, nil
	}

	rec, err := recorder.Open(dsn, recorder.WithSessionID(sessionID))
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Recording to %s database (session %s)\n", rec.Driver(), sessionID)
	return rec, nil
}

// openCaptureFile creates a capture file that samples are teed into
func openCaptureFile(path string) (*os.File, *capture.SampleWriter, error) {
	if path == "" {
		return nil, nil, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	return f, capture.NewSampleWriter(f), nil
}

// printFrame prints a frame the way the record command reports it
func printFrame(f *nec.Frame) {
	fmt.Println(f)
}

// printTimedFrame prints a frame with its decode time
func printTimedFrame(f *nec.Frame) {
	timestamp := f.Timestamp.Format("15:04:05.000")
	raw := ""
	if code, ok := f.RawCode(); ok {
		raw = fmt.Sprintf(" raw=0x%08X", code)
	}
	fmt.Printf("[%s] %s%s\n", timestamp, f, raw)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
}

// printDeviceReport prints a frame decoded by the capture device itself
func printDeviceReport(p *capture.Packet) {
	if p.Type() != capture.MsgFrameReport {
		return
	}
	report, err := p.FrameReport()
	if err != nil {
		return
	}
	timestamp := p.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;36mDEVICE:\033[0m %s addr: 0x%X, cmd: 0x%X\n",
		timestamp, report.Protocol, report.Address, report.Command)
}
