// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/necscope/pkg/recorder"
)

var (
	framesDB      string
	framesSession string
	framesLimit   int
	framesErrors  bool
	framesJSON    bool
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List frames stored by record or monitor",
	Long: `List decoded frames stored in a recorder database, newest first.

With --errors, decode errors are listed instead, followed by a count of
errors per kind.`,
	RunE: runFrames,
}

func init() {
	rootCmd.AddCommand(framesCmd)
	framesCmd.Flags().StringVar(&framesDB, "db", "", "Recorder database (file.sqlite3 or mysql://...)")
	framesCmd.Flags().StringVar(&framesSession, "session", "", "Only show rows from this session ID")
	framesCmd.Flags().IntVarP(&framesLimit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	framesCmd.Flags().BoolVar(&framesErrors, "errors", false, "List decode errors instead of frames")
	framesCmd.Flags().BoolVar(&framesJSON, "json", false, "Print rows as JSON")
}

func runFrames(cmd *cobra.Command, args []string) error {
	dsn := databaseDSN(framesDB)
	if dsn == "" {
		return fmt.Errorf("either --db or %s must be specified", envDatabase)
	}

	rec, err := recorder.Open(dsn)
	if err != nil {
		return err
	}
	defer rec.Close()

	filter := recorder.Filter{SessionID: framesSession, Limit: framesLimit}
	if framesErrors {
		return listErrors(rec, filter)
	}

	rows, err := rec.ListFrames(filter)
	if err != nil {
		return err
	}
	if framesJSON {
		return printJSON(rows)
	}

	for _, row := range rows {
		raw := "-"
		if row.HasRawCode {
			raw = fmt.Sprintf("0x%08X", row.RawCode)
		}
		fmt.Printf("%s  %-20s  %-12s  %-10s  %s\n",
			time.Unix(0, row.RecordedAt).Format("2006-01-02 15:04:05.000"),
			row.SessionID, row.Protocol, raw, row)
	}

	total, err := rec.CountFrames(recorder.Filter{SessionID: framesSession})
	if err != nil {
		return err
	}
	fmt.Printf("\n%d of %d frames shown\n", len(rows), total)
	return nil
}

func listErrors(rec *recorder.Recorder, filter recorder.Filter) error {
	rows, err := rec.ListErrors(filter)
	if err != nil {
		return err
	}
	if framesJSON {
		return printJSON(rows)
	}

	for _, row := range rows {
		fmt.Printf("%s  %-20s  %-24s  %s\n",
			time.Unix(0, row.RecordedAt).Format("2006-01-02 15:04:05.000"),
			row.SessionID, row.Kind, row.Message)
	}

	counts, err := rec.ErrorCounts(recorder.Filter{SessionID: filter.SessionID})
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	fmt.Println()
	for _, kind := range kinds {
		fmt.Printf("  %-24s %5d\n", kind+":", counts[kind])
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
