// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/Thermoquad/necscope/pkg/capture"
)

// Probe exit codes
const (
	probeOK         = 0
	probeTimeout    = 1
	probeConnection = 2
)

var (
	probeTimeoutSecs int
	probeNoPing      bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid capture packet",
	Long: `Wait for a valid capture packet on the connection until timeout.

This command connects to a serial port or WebSocket, sends a ping request,
and waits for any valid capture packet. Invalid bytes are ignored until a
complete packet passes its CRC check.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for testing connectivity to the capture device or a WebSocket bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeoutSecs, "timeout", 10, "Timeout in seconds to wait for a packet")
	probeCmd.Flags().BoolVar(&probeNoPing, "no-ping", false, "Listen only, do not send a ping request")
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	link, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		atexit.Exit(probeConnection)
	}
	atexit.Register(func() { link.Close() })

	fmt.Printf("necscope - Probe\n")
	fmt.Printf("Connection: %s\n", link)
	fmt.Printf("Timeout: %d seconds\n", probeTimeoutSecs)

	if !probeNoPing {
		if err := link.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			atexit.Exit(probeConnection)
		}
		fmt.Printf("Sent ping request\n")
	}
	fmt.Printf("Waiting for valid capture packet...\n\n")

	// Channel for packet reception
	packetChan := make(chan *capture.Packet, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		invalidPackets := 0
		for {
			packet, err := link.ReadPacket()
			if errors.Is(err, capture.ErrInvalidPacket) {
				invalidPackets++
				continue
			}
			if err != nil {
				errChan <- err
				return
			}
			if invalidPackets > 0 {
				fmt.Printf("(skipped %d invalid packets before sync)\n", invalidPackets)
			}
			packetChan <- packet
			return
		}
	}()

	// Wait for packet or timeout
	select {
	case packet := <-packetChan:
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Type: %s (0x%02X)\n", capture.FormatMessageType(packet.Type()), packet.Type())
		fmt.Printf("  Length: %d bytes\n", packet.Length())
		fmt.Printf("  CRC: 0x%04X\n", packet.CRC())
		if packet.Type() == capture.MsgPingResponse {
			if ping, err := packet.PingResponse(); err == nil {
				fmt.Printf("  Uptime: %d ms\n", ping.UptimeMs)
			}
		}
		atexit.Exit(probeOK)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		atexit.Exit(probeConnection)

	case <-time.After(time.Duration(probeTimeoutSecs) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", probeTimeoutSecs)
		atexit.Exit(probeTimeout)
	}

	return nil
}
