// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rainbow/internal/poller"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Per-entry poll state
type entryState struct {
	entry     rainbow.CommandEntry
	responses int
	stalls    int
	payload   string
	lastData  time.Time
}

// TUI model
type watchModel struct {
	connInfo      string
	station       uint16
	interval      time.Duration
	stats         *rainbow.Statistics
	entries       []entryState
	index         map[rainbow.ResponseKey]int
	table         table.Model
	eventLog      []eventLogEntry
	maxLogEntries int
	lastCycle     *poller.CycleResult
	pollErr       error
	width         int
	height        int
	quitting      bool
}

// Messages
type watchTickMsg time.Time
type dataMsg struct {
	entry   rainbow.CommandEntry
	payload []byte
	ts      time.Time
}
type frameErrorMsg struct {
	raw []byte
	err error
	ts  time.Time
}
type cycleMsg struct {
	result poller.CycleResult
}
type pollDoneMsg struct {
	err error
}

var watchColumns = []table.Column{
	{Title: "Name", Width: 18},
	{Title: "Dev", Width: 4},
	{Title: "Cmd", Width: 4},
	{Title: "Data", Width: 28},
	{Title: "Age", Width: 8},
	{Title: "Resp", Width: 6},
	{Title: "Stalls", Width: 6},
}

func newWatchModel(connInfo string, pt *rainbow.Table, interval time.Duration, stats *rainbow.Statistics) watchModel {
	m := watchModel{
		connInfo:      connInfo,
		station:       pt.Station(),
		interval:      interval,
		stats:         stats,
		index:         make(map[rainbow.ResponseKey]int),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	for i, e := range pt.Entries() {
		m.entries = append(m.entries, entryState{entry: e})
		// later duplicates receive the responses
		m.index[e.Key()] = i
	}

	t := table.New(
		table.WithColumns(watchColumns),
		table.WithFocused(true),
		table.WithHeight(min(len(m.entries), 10)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)
	m.table = t
	m.refreshRows(time.Now())
	return m
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		watchTickCmd(),
		tea.EnterAltScreen,
	)
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchTickMsg:
		m.stats.CalculateRates()
		m.refreshRows(time.Time(msg))
		return m, watchTickCmd()

	case dataMsg:
		if i, ok := m.index[msg.entry.Key()]; ok {
			st := &m.entries[i]
			st.responses++
			st.payload = string(msg.payload)
			st.lastData = msg.ts
		}
		m.refreshRows(time.Now())

	case frameErrorMsg:
		m.addLogEntry(fmt.Sprintf("%s: %s", rainbow.ErrorKind(msg.err), rainbow.Sanitize(msg.raw)), true)

	case cycleMsg:
		res := msg.result
		m.lastCycle = &res
		if !res.Completed && res.Requests > 0 {
			if i, ok := m.index[res.StalledEntry.Key()]; ok {
				m.entries[i].stalls++
			}
			m.addLogEntry(fmt.Sprintf("Cycle stalled at %s", res.StalledEntry.Label()), true)
		}
		m.refreshRows(time.Now())

	case pollDoneMsg:
		m.pollErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Polling stopped: %v", msg.err), true)
		} else {
			m.addLogEntry("Polling stopped", false)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *watchModel) addLogEntry(message string, isError bool) {
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

func (m *watchModel) refreshRows(now time.Time) {
	rows := make([]table.Row, 0, len(m.entries))
	for _, st := range m.entries {
		age := "-"
		if !st.lastData.IsZero() {
			age = formatAge(now.Sub(st.lastData))
		}
		rows = append(rows, table.Row{
			st.entry.Label(),
			fmt.Sprintf("%03X", st.entry.Device),
			fmt.Sprintf("%03X", st.entry.Command),
			st.payload,
			age,
			fmt.Sprintf("%d", st.responses),
			fmt.Sprintf("%d", st.stalls),
		})
	}
	m.table.SetRows(rows)
}

// formatAge renders a duration as a short age such as "4s" or "3m12s".
func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func (m watchModel) View() string {
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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("RAINBOW - WATCH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Station %03X | Every %s | 'r' reset stats, 'q' quit",
		m.connInfo, m.station, m.interval)))
	s.WriteString("\n\n")

	// Cycle status
	switch {
	case m.pollErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Polling stopped: %v", m.pollErr)))
	case m.lastCycle == nil:
		s.WriteString(warningStyle.Render("⏳ Waiting for first cycle..."))
	case m.lastCycle.Completed:
		s.WriteString(statsValueStyle.Render("✓ Last cycle complete"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (%s)", m.lastCycle.Duration.Round(time.Millisecond))))
	default:
		s.WriteString(errorStyle.Render("✗ Last cycle stalled at " + m.lastCycle.StalledEntry.Label()))
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	totalErrors := snap.FrameErrors + snap.DispatchErrors
	var validPercent, errorPercent float64
	if snap.FramesReceived > 0 {
		validPercent = float64(snap.ValidResponses) * 100.0 / float64(snap.FramesReceived)
		errorPercent = float64(totalErrors) * 100.0 / float64(snap.FramesReceived)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.FramesReceived)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidResponses, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.RequestsSent)),
		statsLabelStyle.Render("Cycles:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.CyclesCompleted)),
		statsLabelStyle.Render("Stalled:"), func() string {
			if snap.CyclesStalled > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", snap.CyclesStalled))
			}
			return statsValueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Response Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f resp/s", snap.ResponseRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if snap.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Poll table
	s.WriteString(statsLabelStyle.Render("Poll Table:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18 - len(m.entries)
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(logContent.String()))

	return s.String()
}
