// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
	"github.com/Thermoquad/necscope/pkg/recorder"
	"github.com/Thermoquad/necscope/pkg/session"
)

var (
	replayDB     string
	replayVerify bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode every frame in a capture file",
	Long: `Decode every NEC frame in a capture file written by 'record --capture'
or 'synth'.

Decoding restarts after every timing error, exactly as in continuous mode.
With --verify, frames are compared against the frame reports stored in the
file and any difference is reported; the command fails if one is found.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayDB, "db", "", "Record frames to a database (file.sqlite3 or mysql://...)")
	replayCmd.Flags().BoolVar(&replayVerify, "verify", false, "Compare decoded frames with stored frame reports")
}

func runReplay(cmd *cobra.Command, args []string) error {
	protocol, platform, err := decoderConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	var rec *recorder.Recorder
	var decoded []*nec.Frame
	var reports []*capture.FrameReport

	sess, err := session.New(protocol, platform,
		session.WithFrameHandler(func(fr *nec.Frame) {
			decoded = append(decoded, fr)
			fmt.Printf("%8d us  %s\n", fr.EndUsecs, fr)
			if rec != nil {
				if err := rec.RecordFrame(fr); err != nil {
					log.Printf("Recorder error: %v", err)
				}
			}
		}),
		session.WithErrorHandler(func(err error) {
			fmt.Printf("%8s     \033[1;31mDECODE ERROR:\033[0m %v\n", "", err)
			if rec != nil {
				if err := rec.RecordError(protocol.Name, err); err != nil {
					log.Printf("Recorder error: %v", err)
				}
			}
		}))
	if err != nil {
		return err
	}

	rec, err = openRecorder(replayDB, sess.ID().String())
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
	}

	reader := capture.NewSampleReader(f)
	reader.OnPacket = func(p *capture.Packet) {
		if p.Type() != capture.MsgFrameReport {
			return
		}
		report, err := p.FrameReport()
		if err != nil {
			log.Printf("Invalid frame report: %v", err)
			return
		}
		reports = append(reports, report)
	}

	if err := sess.Run(context.Background(), reader); err != nil {
		return err
	}

	stats := reader.Stats()
	fmt.Println()
	fmt.Printf("Packets: %d, Samples: %d, CRC errors: %d, Corrupt packets: %d\n",
		stats.Packets, stats.Samples, stats.CRCErrors, stats.DecodeErrors)
	fmt.Print(sess.Stats().String())

	if !replayVerify {
		return nil
	}
	return verifyReports(decoded, reports)
}

// verifyReports pairs decoded frames with stored reports in order
func verifyReports(decoded []*nec.Frame, reports []*capture.FrameReport) error {
	mismatches := 0
	for i := 0; i < len(decoded) || i < len(reports); i++ {
		switch {
		case i >= len(reports):
			fmt.Printf("Frame %d: decoded %s, no report stored\n", i, decoded[i])
			mismatches++
		case i >= len(decoded):
			fmt.Printf("Frame %d: report addr: 0x%X, cmd: 0x%X was not decoded\n",
				i, reports[i].Address, reports[i].Command)
			mismatches++
		case decoded[i].Address != reports[i].Address || decoded[i].Command != reports[i].Command:
			fmt.Printf("Frame %d: decoded %s, report addr: 0x%X, cmd: 0x%X\n",
				i, decoded[i], reports[i].Address, reports[i].Command)
			mismatches++
		}
	}

	if mismatches > 0 {
		return fmt.Errorf("%d of %d frames differ from their reports", mismatches, len(reports))
	}
	fmt.Printf("Verified %d frames against stored reports\n", len(reports))
	return nil
}
