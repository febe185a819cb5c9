// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
	"github.com/Thermoquad/necscope/pkg/session"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// codeItem is one distinct address/command pair seen on the line
type codeItem struct {
	address  uint32
	command  uint32
	count    int
	lastSeen time.Time
}

// Implement list.Item interface
func (c codeItem) Title() string { return fmt.Sprintf("0x%X / 0x%X", c.address, c.command) }
func (c codeItem) Description() string {
	return fmt.Sprintf("%dx, last %s", c.count, c.lastSeen.Format("15:04:05"))
}
func (c codeItem) FilterValue() string { return fmt.Sprintf("%X %X", c.address, c.command) }

type codeKey struct {
	address uint32
	command uint32
}

// TUI model
type monitorModel struct {
	connInfo string
	protocol nec.ProtocolConfig
	stats    *session.Statistics

	codes    map[codeKey]*codeItem
	codeList list.Model

	eventLog      []eventLogEntry
	maxLogEntries int

	lastFrame      *nec.Frame
	deviceReports  int
	deviceMismatch int
	deviceUptime   uint64
	hasUptime      bool

	streamEnded bool
	width       int
	height      int
	quitting    bool
}

// Messages
type tickMsg time.Time
type eventMsg decodeEvent
type streamEndMsg struct {
	err error
}

func initialMonitorModel(connInfo string, protocol nec.ProtocolConfig, stats *session.Statistics) monitorModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	codeList := list.New([]list.Item{}, delegate, 30, 10)
	codeList.Title = "Codes"
	codeList.SetShowStatusBar(false)
	codeList.SetShowHelp(false)

	return monitorModel{
		connInfo:      connInfo,
		protocol:      protocol,
		stats:         stats,
		codes:         make(map[codeKey]*codeItem),
		codeList:      codeList,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.codeList.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.codes = make(map[codeKey]*codeItem)
			m.deviceReports = 0
			m.deviceMismatch = 0
			m.updateCodeList()
			m.addLogEntry("Statistics reset", false)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tickMsg:
		return m, tickCmd()

	case streamEndMsg:
		m.streamEnded = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Stream ended: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
		return m, nil

	case eventMsg:
		m.handleEvent(decodeEvent(msg))
		return m, nil
	}

	var cmd tea.Cmd
	m.codeList, cmd = m.codeList.Update(msg)
	return m, cmd
}

func (m *monitorModel) handleEvent(ev decodeEvent) {
	switch {
	case ev.frame != nil:
		m.lastFrame = ev.frame
		key := codeKey{ev.frame.Address, ev.frame.Command}
		item, ok := m.codes[key]
		if !ok {
			item = &codeItem{address: key.address, command: key.command}
			m.codes[key] = item
		}
		item.count++
		item.lastSeen = time.Now()
		m.updateCodeList()
		m.addLogEntry(ev.frame.String(), false)

	case ev.err != nil:
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.err), true)

	case ev.report != nil:
		m.deviceReports++
		if m.lastFrame == nil || m.lastFrame.Address != ev.report.Address || m.lastFrame.Command != ev.report.Command {
			m.deviceMismatch++
			m.addLogEntry(fmt.Sprintf("Device decoded addr: 0x%X, cmd: 0x%X, host did not",
				ev.report.Address, ev.report.Command), true)
		}
		m.lastFrame = nil

	case ev.uptime != nil:
		m.deviceUptime = *ev.uptime
		m.hasUptime = true
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// updateCodeList orders codes by how often they were seen
func (m *monitorModel) updateCodeList() {
	items := make([]codeItem, 0, len(m.codes))
	for _, c := range m.codes {
		items = append(items, *c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].lastSeen.After(items[j].lastSeen)
	})

	listItems := make([]list.Item, len(items))
	for i, c := range items {
		listItems[i] = c
	}
	m.codeList.SetItems(listItems)
}

func (m *monitorModel) updateListSize() {
	listHeight := m.height - 14
	if listHeight < 5 {
		listHeight = 5
	}
	m.codeList.SetSize(28, listHeight)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("NECSCOPE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Protocol: %s | 'r' reset, '/' filter, 'q' quit",
		m.connInfo, m.protocol.Name)))
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	attempts := snap.TotalFrames + snap.DecodeErrors
	var framePercent, errorPercent float64
	if attempts > 0 {
		framePercent = float64(snap.TotalFrames) * 100.0 / float64(attempts)
		errorPercent = float64(snap.DecodeErrors) * 100.0 / float64(attempts)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Samples:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.TotalSamples)),
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.TotalFrames, framePercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.DecodeErrors, errorPercent)),
	))

	if len(snap.ErrorsByKind) > 0 {
		kinds := make([]string, 0, len(snap.ErrorsByKind))
		for kind := range snap.ErrorsByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		parts := make([]string, 0, len(kinds))
		for _, kind := range kinds {
			parts = append(parts, fmt.Sprintf("%s: %d", headerStyle.Render(kind), snap.ErrorsByKind[kind]))
		}
		statsContent.WriteString(strings.Join(parts, ", "))
		statsContent.WriteString("\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", snap.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if snap.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
		}(),
	))

	if m.deviceReports > 0 || m.hasUptime {
		statsContent.WriteString("\n")
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Device Reports:"), statsValueStyle.Render(fmt.Sprintf("%d", m.deviceReports)),
			statsLabelStyle.Render("Missed:"), func() string {
				if m.deviceMismatch > 0 {
					return errorStyle.Render(fmt.Sprintf("%d", m.deviceMismatch))
				}
				return statsValueStyle.Render("0")
			}(),
		))
		if m.hasUptime {
			statsContent.WriteString(fmt.Sprintf("   %s %s",
				statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(capture.FormatUptime(m.deviceUptime))))
		}
	}

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	if m.streamEnded {
		s.WriteString(errorStyle.Render("Stream ended, press 'q' to quit"))
		s.WriteString("\n\n")
	}

	// Event log
	logHeight := m.height - 14 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	logContent.WriteString(statsLabelStyle.Render("Recent Events:"))
	logContent.WriteString("\n")

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					infoStyle.Render("✓ "+entry.message),
				))
			}
		}
	}

	logWidth := m.width - 36
	if logWidth < 30 {
		logWidth = 30
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(m.codeList.View()),
		boxStyle.Width(logWidth).Render(logContent.String()),
	))

	return s.String()
}
