// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// necscope - NEC Infrared Protocol Analyzer
//
// A CLI tool for decoding NEC infrared remote frames from a sampled IR
// receiver line and reporting timing errors in human-readable format.

package main

import (
	"github.com/tebeka/atexit"

	"github.com/Thermoquad/necscope/cmd"
)

// Recorders register their flush with atexit, so every exit goes through it
func main() {
	if err := cmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
