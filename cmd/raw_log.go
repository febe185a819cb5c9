// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/capture"
)

var rawLogFile string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display capture packets in human-readable format",
	Long: `Continuously decode and display capture packets as they arrive.

Each packet is shown with timestamp, message type, and decoded body: sample
batches as a level strip ('^' mark, '_' space), frame reports with their
address and command. Packets that decode but carry inconsistent contents are
flagged.

Reads from a serial or WebSocket connection, or from a capture file with
--file.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVarP(&rawLogFile, "file", "f", "", "Read packets from a capture file")
}

// packetSource is a capture file or a live link
type packetSource interface {
	ReadPacket() (*capture.Packet, error)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	var src packetSource
	var connInfo string

	if rawLogFile != "" {
		f, err := os.Open(rawLogFile)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer f.Close()
		src, connInfo = capture.NewPacketReader(f), "File: "+rawLogFile
	} else {
		link, err := OpenLink()
		if err != nil {
			return err
		}
		defer link.Close()
		src, connInfo = link, link.String()
	}

	fmt.Printf("necscope - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for {
		packet, err := src.ReadPacket()
		if errors.Is(err, capture.ErrInvalidPacket) {
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}
		if err != nil {
			// A closed WebSocket or the end of a file means the stream is over
			if isClosed(err) {
				log.Printf("Connection closed")
				return nil
			}
			if rawLogFile != "" {
				return err
			}
			log.Printf("Read error: %v", err)
			continue
		}

		fmt.Print(capture.FormatPacket(packet))
		for _, anomaly := range capture.ValidatePacket(packet) {
			fmt.Printf("  \033[1;33mANOMALY:\033[0m %s\n", anomaly.Message)
		}
	}
}
