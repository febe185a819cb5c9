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

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send PING_REQUEST to the capture device and wait for PING_RESPONSE",
	Long: `Send PING_REQUEST packets to the capture device and wait for PING_RESPONSE.

This command tests bidirectional communication with the capture device over
serial or a WebSocket bridge. Sample batches and frame reports arriving in
between are ignored.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	link, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		atexit.Exit(2)
	}
	atexit.Register(func() { link.Close() })

	fmt.Printf("necscope - Ping Test\n")
	fmt.Printf("Connection: %s\n", link)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	// One reader for all pings
	responseChan := make(chan *capture.PingResponse, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			packet, err := link.ReadPacket()
			if errors.Is(err, capture.ErrInvalidPacket) {
				continue
			}
			if err != nil {
				errChan <- err
				return
			}
			if packet.Type() != capture.MsgPingResponse {
				continue
			}
			if rsp, err := packet.PingResponse(); err == nil {
				select {
				case responseChan <- rsp:
				default:
				}
			}
		}
	}()

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// Drop a late response to the previous ping
		select {
		case <-responseChan:
		default:
		}

		startTime := time.Now()
		if err := link.Ping(); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case rsp := <-responseChan:
			rtt := time.Since(startTime)
			fmt.Printf("PONG, uptime=%s, rtt=%v\n", capture.FormatUptime(rsp.UptimeMs), rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount += pingCount - i + 1
			i = pingCount

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		atexit.Exit(1)
	}
	return nil
}
