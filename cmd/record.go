// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
	"github.com/Thermoquad/necscope/pkg/recorder"
	"github.com/Thermoquad/necscope/pkg/session"
)

var (
	recordTimeout    int
	recordContinuous bool
	recordDB         string
	recordCapture    string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Decode NEC frames from the live sample stream",
	Long: `Decode NEC frames from the capture device's sample stream.

By default a single frame is decoded and printed as:
  addr: 0x<address>, cmd: 0x<command>
A timing error ends the attempt with a non-zero exit status.

With --continuous, every frame is printed and decoding restarts after each
timing error until the connection closes, --timeout expires, or Ctrl+C.

Frames and errors can be stored with --db (or NECSCOPE_DB), and the raw
samples saved with --capture for later replay.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().IntVar(&recordTimeout, "timeout", 0, "Give up after this many seconds (0 waits forever)")
	recordCmd.Flags().BoolVar(&recordContinuous, "continuous", false, "Keep decoding after the first frame")
	recordCmd.Flags().StringVar(&recordDB, "db", "", "Record frames to a database (file.sqlite3 or mysql://...)")
	recordCmd.Flags().StringVar(&recordCapture, "capture", "", "Save the received samples to a capture file")
}

func runRecord(cmd *cobra.Command, args []string) error {
	protocol, platform, err := decoderConfig()
	if err != nil {
		return err
	}

	link, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if recordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recordTimeout)*time.Second)
		defer cancel()
	}
	link.CloseOnDone(ctx)

	captureFile, writer, err := openCaptureFile(recordCapture)
	if err != nil {
		return err
	}
	if captureFile != nil {
		defer captureFile.Close()
		defer writer.Flush()
	}

	var rec *recorder.Recorder
	opts := []session.Option{
		session.WithLogger(log.Default()),
		session.WithFrameHandler(func(f *nec.Frame) {
			if recordContinuous {
				printTimedFrame(f)
			} else {
				printFrame(f)
			}
			if rec != nil {
				if err := rec.RecordFrame(f); err != nil {
					log.Printf("Recorder error: %v", err)
				}
			}
			if writer != nil {
				if err := writer.WriteFrameReport(capture.NewFrameReport(f)); err != nil {
					log.Printf("Capture error: %v", err)
				}
			}
		}),
		session.WithErrorHandler(func(err error) {
			if recordContinuous {
				printDecodeError(err)
			}
			if rec != nil {
				if err := rec.RecordError(protocol.Name, err); err != nil {
					log.Printf("Recorder error: %v", err)
				}
			}
		}),
	}
	if writer != nil {
		opts = append(opts, session.WithSampleHandler(func(s capture.Sample) {
			if err := writer.Write(s); err != nil {
				log.Printf("Capture error: %v", err)
			}
		}))
	}

	sess, err := session.New(protocol, platform, opts...)
	if err != nil {
		return err
	}

	rec, err = openRecorder(recordDB, sess.ID().String())
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
	}

	reader := link.Samples()
	if recordContinuous {
		reader.OnPacket = printDeviceReport
	}

	fmt.Fprintf(os.Stderr, "Connection: %s\n", link)
	fmt.Fprintf(os.Stderr, "Protocol: %s, tolerance %d us\n", protocol.Name, platform.ToleranceUsecs)

	if !recordContinuous {
		_, err := sess.DecodeOne(ctx, reader)
		return decodeOneError(ctx, err)
	}

	fmt.Fprintf(os.Stderr, "Press Ctrl+C to exit\n\n")
	err = sess.Run(ctx, reader)
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, sess.Stats().String())

	if ctx.Err() != nil || err == nil || isClosed(err) {
		return nil
	}
	return err
}

// decodeOneError explains why a single-frame decode ended without a frame
func decodeOneError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("no frame received within %d seconds", recordTimeout)
	case ctx.Err() != nil:
		return ctx.Err()
	case isClosed(err):
		return fmt.Errorf("connection closed before a frame was decoded")
	default:
		if kind, ok := nec.KindOf(err); ok {
			return fmt.Errorf("decode failed (%s): %w", kind.Name(), err)
		}
		return err
	}
}
