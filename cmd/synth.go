// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
)

var (
	synthAddress      uint32
	synthCommand      uint32
	synthCount        int
	synthSamplePeriod uint32
	synthJitter       uint32
	synthGap          uint32
	synthSeed         int64
	synthNoReport     bool
	synthOut          string
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a capture file of synthetic NEC frames",
	Long: `Generate the sampled waveform of NEC frames and write it as a capture file.

Each frame is preceded and followed by idle time and polled every
--sample-period microseconds. --jitter displaces every edge by a random
amount up to the given number of microseconds, which is useful for checking
the --tolerance setting with 'replay --verify'.

A frame report is written after each frame unless --no-report is set.`,
	RunE: runSynth,
}

func init() {
	rootCmd.AddCommand(synthCmd)
	synthCmd.Flags().Uint32Var(&synthAddress, "address", 0x00FF, "Address field value")
	synthCmd.Flags().Uint32Var(&synthCommand, "command", 0x10EF, "Command field value")
	synthCmd.Flags().IntVar(&synthCount, "count", 1, "Number of frames")
	synthCmd.Flags().Uint32Var(&synthSamplePeriod, "sample-period", 10, "Microseconds between samples")
	synthCmd.Flags().Uint32Var(&synthJitter, "jitter", 0, "Maximum edge displacement in microseconds")
	synthCmd.Flags().Uint32Var(&synthGap, "gap", 40000, "Idle microseconds between frames")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", 1, "Jitter random seed")
	synthCmd.Flags().BoolVar(&synthNoReport, "no-report", false, "Do not write frame reports")
	synthCmd.Flags().StringVarP(&synthOut, "out", "o", "", "Output file (default stdout)")
}

func runSynth(cmd *cobra.Command, args []string) error {
	protocol, _, err := decoderConfig()
	if err != nil {
		return err
	}
	if synthCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	var out io.Writer = os.Stdout
	if synthOut != "" {
		f, err := os.Create(synthOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", synthOut, err)
		}
		defer f.Close()
		out = f
	}

	written, err := writeSynthFrames(out, &protocol)
	if err != nil {
		return err
	}

	if synthOut != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d %s frames (%d samples) to %s\n",
			synthCount, protocol.Name, written, synthOut)
	}
	return nil
}

func writeSynthFrames(out io.Writer, protocol *nec.ProtocolConfig) (int, error) {
	opts := capture.DefaultSynthOptions()
	opts.SamplePeriodUsecs = synthSamplePeriod
	opts.JitterUsecs = synthJitter
	opts.IdleUsecs = synthGap / 2
	opts.Rand = rand.New(rand.NewSource(synthSeed))

	address := synthAddress & nec.FieldMask(protocol.AddressBits)
	command := synthCommand & nec.FieldMask(protocol.CommandBits)
	report := capture.NewFrameReport(capture.ReportFrame(protocol, &capture.FrameReport{
		Protocol: protocol.Name,
		Address:  address,
		Command:  command,
	}))

	writer := capture.NewSampleWriter(out)
	written := 0
	for i := 0; i < synthCount; i++ {
		samples, end, err := capture.SynthesizeFrame(protocol, address, command, opts)
		if err != nil {
			return written, err
		}
		for _, s := range samples {
			if err := writer.Write(s); err != nil {
				return written, err
			}
		}
		written += len(samples)

		if !synthNoReport {
			if err := writer.WriteFrameReport(report); err != nil {
				return written, err
			}
		}
		opts.StartUsecs = end
	}

	return written, writer.Flush()
}
