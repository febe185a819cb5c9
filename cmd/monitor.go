// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/monitoring"
	"github.com/Thermoquad/necscope/pkg/nec"
	"github.com/Thermoquad/necscope/pkg/recorder"
	"github.com/Thermoquad/necscope/pkg/session"
)

var (
	statsInterval int
	pingInterval  int
	useTUI        bool
	httpPort      int
	openBrowser   bool
	monitorDB     string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode live frames and track timing errors",
	Long: `Decode NEC frames continuously and track timing errors with statistics.

Every decoded frame and every decode error is shown as it happens, along with
frame and error rates, errors grouped by kind and stage, and the distinct
codes received so far. Frames reported by the capture device itself are shown
alongside for comparison.

Statistics are printed every --stats-interval seconds in text mode and updated
live in the terminal UI.

With --http-port or --open, a status server exposes the same data as JSON:
  /api/stats  /api/frames  /api/errors  /api/history  /api/protocol
  /api/resource  /api/profile`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().IntVar(&pingInterval, "ping-interval", 10, "Seconds between device ping requests (0 disables)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().IntVar(&httpPort, "http-port", 0, "Serve status over HTTP on this port (0 disables)")
	monitorCmd.Flags().BoolVar(&openBrowser, "open", false, "Start the status server and open it in a browser")
	monitorCmd.Flags().StringVar(&monitorDB, "db", "", "Record frames to a database (file.sqlite3 or mysql://...)")
}

// decodeEvent is one session callback forwarded to the display
type decodeEvent struct {
	frame  *nec.Frame
	err    error
	report *capture.FrameReport
	uptime *uint64
}

func runMonitor(cmd *cobra.Command, args []string) error {
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
	link.CloseOnDone(ctx)

	stats := session.NewStatistics()
	monitor := monitoring.NewMonitor().WithPortNumber(httpPort)
	monitor.RegisterStatistics(stats)
	monitor.RegisterProtocol(protocol)

	// Events go to the terminal UI, or straight to stdout in text mode
	var program *tea.Program
	emit := printEvent
	if useTUI {
		program = tea.NewProgram(initialMonitorModel(link.String(), protocol, stats))
		emit = func(ev decodeEvent) { program.Send(eventMsg(ev)) }
	}

	var rec *recorder.Recorder
	sess, err := session.New(protocol, platform,
		session.WithStatistics(stats),
		session.WithLogger(log.Default()),
		session.WithFrameHandler(func(f *nec.Frame) {
			monitor.RecordFrame(f)
			if rec != nil {
				if err := rec.RecordFrame(f); err != nil {
					log.Printf("Recorder error: %v", err)
				}
			}
			emit(decodeEvent{frame: f})
		}),
		session.WithErrorHandler(func(err error) {
			monitor.RecordError(err)
			if rec != nil {
				if err := rec.RecordError(protocol.Name, err); err != nil {
					log.Printf("Recorder error: %v", err)
				}
			}
			emit(decodeEvent{err: err})
		}))
	if err != nil {
		return err
	}

	rec, err = openRecorder(monitorDB, sess.ID().String())
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
		monitor.RegisterHistory(rec)
	}

	if httpPort != 0 || openBrowser {
		url, err := monitor.StartServer()
		if err != nil {
			return err
		}
		defer monitor.Shutdown(context.Background())

		if openBrowser {
			if err := browser.OpenURL(url); err != nil {
				log.Printf("Failed to open browser: %v", err)
			}
		}
	}

	reader := link.Samples()
	reader.OnPacket = func(p *capture.Packet) {
		switch p.Type() {
		case capture.MsgFrameReport:
			if report, err := p.FrameReport(); err == nil {
				emit(decodeEvent{report: report})
			}
		case capture.MsgPingResponse:
			if ping, err := p.PingResponse(); err == nil {
				uptime := ping.UptimeMs
				emit(decodeEvent{uptime: &uptime})
			}
		}
	}

	if pingInterval > 0 {
		go pingDevice(ctx, link, time.Duration(pingInterval)*time.Second)
	}

	done := make(chan error, 1)
	start := func() {
		go func() {
			err := sess.Run(ctx, reader)
			if ctx.Err() != nil || isClosed(err) {
				err = nil
			}
			done <- err
		}()
	}

	if useTUI {
		return runTUIMode(program, stop, start, done)
	}
	return runTextMode(link.String(), protocol, stats, start, done)
}

// pingDevice sends a ping request every interval until ctx is done
func pingDevice(ctx context.Context, link *Link, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := link.Ping(); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// printEvent prints one event in text mode
func printEvent(ev decodeEvent) {
	timestamp := time.Now().Format("15:04:05.000")
	switch {
	case ev.frame != nil:
		printTimedFrame(ev.frame)
	case ev.err != nil:
		printDecodeError(ev.err)
	case ev.report != nil:
		fmt.Printf("[%s] \033[1;36mDEVICE:\033[0m %s addr: 0x%X, cmd: 0x%X\n",
			timestamp, ev.report.Protocol, ev.report.Address, ev.report.Command)
	case ev.uptime != nil:
		fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m device uptime: %s\n",
			timestamp, capture.FormatUptime(*ev.uptime))
	}
}

// runTUIMode runs the monitor with the terminal UI
func runTUIMode(p *tea.Program, stop context.CancelFunc, start func(), done <-chan error) error {
	start()

	// Report the end of the stream without closing the UI
	go func() {
		p.Send(streamEndMsg{err: <-done})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	stop()
	return nil
}

// runTextMode runs the monitor with plain output
func runTextMode(connInfo string, protocol nec.ProtocolConfig,
	stats *session.Statistics, start func(), done <-chan error) error {

	fmt.Printf("necscope - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Protocol: %s\n", protocol.Name)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	start()
	for {
		select {
		case err := <-done:
			fmt.Println()
			fmt.Print(stats.String())
			return err

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
