// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package recorder

import (
	"database/sql"
	"fmt"
	"strings"
)

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	SessionID string
	Protocol  string
	Limit     int
}

func (f Filter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Protocol != "" {
		clauses = append(clauses, "protocol = ?")
		args = append(args, f.Protocol)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f Filter) limit() string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}

// ListFrames returns recorded frames, newest first.
// Buffered rows are flushed first so they are included.
func (r *Recorder) ListFrames(f Filter) ([]FrameRow, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}

	names, _ := columns(FrameRow{})
	where, args := f.where()
	query := "SELECT " + strings.Join(names, ", ") + " FROM frames" + where +
		" ORDER BY recorded_at DESC, id DESC" + f.limit()

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	defer rows.Close()

	var frames []FrameRow
	for rows.Next() {
		var row FrameRow
		err := rows.Scan(&row.ID, &row.SessionID, &row.Protocol, &row.Address,
			&row.Command, &row.RawCode, &row.HasRawCode, &row.EndUsecs, &row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		frames = append(frames, row)
	}
	return frames, rows.Err()
}

// ListErrors returns recorded decode errors, newest first
func (r *Recorder) ListErrors(f Filter) ([]ErrorRow, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}

	names, _ := columns(ErrorRow{})
	where, args := f.where()
	query := "SELECT " + strings.Join(names, ", ") + " FROM decode_errors" + where +
		" ORDER BY recorded_at DESC, id DESC" + f.limit()

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decode errors: %w", err)
	}
	defer rows.Close()

	var errs []ErrorRow
	for rows.Next() {
		var row ErrorRow
		err := rows.Scan(&row.ID, &row.SessionID, &row.Protocol, &row.Kind, &row.Stage,
			&row.ElapsedUsecs, &row.Level, &row.Message, &row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to read decode error: %w", err)
		}
		errs = append(errs, row)
	}
	return errs, rows.Err()
}

// ErrorCounts returns the number of decode errors per kind
func (r *Recorder) ErrorCounts(f Filter) (map[string]uint64, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}

	where, args := f.where()
	rows, err := r.Query("SELECT kind, COUNT(*) FROM decode_errors"+where+" GROUP BY kind", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count decode errors: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var kind string
		var n uint64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// CountFrames returns the number of recorded frames
func (r *Recorder) CountFrames(f Filter) (uint64, error) {
	if err := r.Flush(); err != nil {
		return 0, err
	}

	where, args := f.where()
	var n uint64
	err := r.QueryRow("SELECT COUNT(*) FROM frames"+where, args...).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return n, nil
}
