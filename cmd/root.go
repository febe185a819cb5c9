// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/nec"
)

// Environment variables
const (
	envProtocol  = "NECSCOPE_PROTOCOL"
	envTolerance = "NECSCOPE_TOLERANCE_USECS"
	envDatabase  = "NECSCOPE_DB"
	envPassword  = "NECSCOPE_PASSWORD"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Decoder flags
	protocolName   string
	toleranceUsecs uint32

	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "necscope",
	Short: "NEC Infrared Protocol Analyzer",
	Long: `necscope - A CLI tool for decoding NEC infrared remote frames.

The IR receiver line is sampled by a capture device and streamed as framed,
CRC-checked sample batches. necscope decodes those samples into NEC frames,
records them, and reports timing errors as they happen.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Configuration is also read from the environment, optionally loaded from a
.env file with --env-file:
  NECSCOPE_PROTOCOL         protocol preset (nec, nec-extended, nec32)
  NECSCOPE_TOLERANCE_USECS  timing tolerance in microseconds
  NECSCOPE_DB               recorder database for --db
  NECSCOPE_PASSWORD         WebSocket password

The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadEnvironment,
	SilenceUsage:      true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Decoder flags
	rootCmd.PersistentFlags().StringVar(&protocolName, "protocol", nec.DefaultProtocol, "Protocol preset ("+strings.Join(nec.ProtocolNames(), ", ")+")")
	rootCmd.PersistentFlags().Uint32Var(&toleranceUsecs, "tolerance", nec.DefaultTolerance, "Timing tolerance in microseconds")

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from a .env file")
}

// loadEnvironment applies the .env file and environment defaults to flags
// that were not set on the command line
func loadEnvironment(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	flags := cmd.Flags()
	if v := os.Getenv(envProtocol); v != "" && !flags.Changed("protocol") {
		protocolName = v
	}
	if v := os.Getenv(envTolerance); v != "" && !flags.Changed("tolerance") {
		tol, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envTolerance, v, err)
		}
		toleranceUsecs = uint32(tol)
	}
	return nil
}

// decoderConfig resolves the protocol and platform selected by flags
func decoderConfig() (nec.ProtocolConfig, nec.PlatformConfig, error) {
	protocol, err := nec.LookupProtocol(protocolName)
	if err != nil {
		return nec.ProtocolConfig{}, nec.PlatformConfig{}, err
	}

	platform := nec.DefaultPlatform()
	platform.ToleranceUsecs = toleranceUsecs

	if err := protocol.Validate(&platform); err != nil {
		return nec.ProtocolConfig{}, nec.PlatformConfig{}, err
	}
	return protocol, platform, nil
}

// databaseDSN returns the --db flag, falling back to NECSCOPE_DB
func databaseDSN(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(envDatabase)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
