// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	msgType := FormatMessageType(p.Type())

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, msgType, p.Type(), p.length)

	if err := p.ParseError(); err != nil {
		return result + fmt.Sprintf("  Parse error: %v\n", err)
	}
	return result + FormatBody(p)
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgSampleBatch:
		return "SAMPLE_BATCH"
	case MsgFrameReport:
		return "FRAME_REPORT"
	default:
		return "UNKNOWN"
	}
}

// FormatBody formats the message body based on message type
func FormatBody(p *Packet) string {
	switch p.Type() {
	case MsgPingRequest:
		return "  (no payload)\n"

	case MsgPingResponse:
		r, err := p.PingResponse()
		if err != nil {
			return fmt.Sprintf("  Invalid body: %v\n", err)
		}
		return fmt.Sprintf("  Uptime: %s\n", FormatUptime(r.UptimeMs))

	case MsgSampleBatch:
		b, err := p.SampleBatch()
		if err != nil {
			return fmt.Sprintf("  Invalid body: %v\n", err)
		}
		samples, err := b.Samples()
		if err != nil {
			return fmt.Sprintf("  Invalid body: %v\n", err)
		}
		var span uint64
		if len(samples) > 0 {
			span = samples[len(samples)-1].TimestampUsecs - b.StartUsecs
		}
		return fmt.Sprintf("  Start: %d us, Samples: %d, Span: %d us\n  Levels: %s\n",
			b.StartUsecs, len(samples), span, FormatLevels(samples))

	case MsgFrameReport:
		r, err := p.FrameReport()
		if err != nil {
			return fmt.Sprintf("  Invalid body: %v\n", err)
		}
		return fmt.Sprintf("  Protocol: %s, Address: 0x%X, Command: 0x%X, Raw: 0x%08X\n",
			r.Protocol, r.Address, r.Command, r.Raw)
	}

	if p.Body() == nil {
		return "  (nil payload)\n"
	}
	return fmt.Sprintf("  Payload: % X\n", []byte(p.Body()))
}

// FormatLevels renders sample levels as a strip, '^' for mark and '_' for space
func FormatLevels(samples []Sample) string {
	var sb strings.Builder
	sb.Grow(len(samples))
	for _, s := range samples {
		if s.Level {
			sb.WriteByte('^')
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// FormatUptime converts milliseconds to a human-readable duration
func FormatUptime(ms uint64) string {
	seconds := ms / 1000
	if seconds == 0 {
		return fmt.Sprintf("%d ms", ms)
	}

	const (
		secondsPerMinute = 60
		secondsPerHour   = 60 * secondsPerMinute
		secondsPerDay    = 24 * secondsPerHour
	)

	units := []struct {
		size uint64
		name string
	}{
		{secondsPerDay, "day"},
		{secondsPerHour, "hour"},
		{secondsPerMinute, "minute"},
		{1, "second"},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
