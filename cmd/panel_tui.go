// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/sbox"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	panelRefreshInterval = 250 * time.Millisecond
	minVoltage           = 0.0
	maxVoltage           = 500.0
	minCurrent           = -200.0
	maxCurrent           = 200.0
)

// Focus states
const (
	focusVoltage = iota
	focusCurrent
	focusFrames
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// frameItem is a transmitted frame in the toggle list
type frameItem struct {
	frame *sbox.PeriodicFrame
}

// Implement list.Item interface
func (f frameItem) Title() string {
	check := "[ ]"
	if f.frame.Enabled() {
		check = "[x]"
	}
	return fmt.Sprintf("%s 0x%03X - %s", check, f.frame.ID(), f.frame.Name())
}
func (f frameItem) Description() string {
	return fmt.Sprintf("%g Hz, %d bytes", f.frame.RateHz(), len(f.frame.Payload()))
}
func (f frameItem) FilterValue() string { return f.frame.Name() }

// panelModel is the Bubble Tea model for the operator panel
type panelModel struct {
	box     *sbox.SBox
	busInfo string

	// Live state, refreshed on every tick
	snapshot sbox.Snapshot

	// Controls
	voltageInput textinput.Model
	currentInput textinput.Model
	frameList    list.Model
	focusedField int

	// Events
	events        <-chan eventLogEntry
	eventLog      []eventLogEntry
	maxLogEntries int

	// UI state
	width       int
	height      int
	quitting    bool
	schedulerOK bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type panelTickMsg time.Time

type schedulerStoppedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialPanelModel(box *sbox.SBox, busInfo string, events <-chan eventLogEntry) panelModel {
	src := box.Source()

	vi := textinput.New()
	vi.Placeholder = "350"
	vi.CharLimit = 8
	vi.Width = 10
	vi.SetValue(strconv.FormatFloat(src.Voltage, 'f', -1, 64))
	vi.Focus()

	ci := textinput.New()
	ci.Placeholder = "0"
	ci.CharLimit = 8
	ci.Width = 10
	ci.SetValue(strconv.FormatFloat(src.Current, 'f', -1, 64))

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	frameList := list.New(frameItems(box), delegate, 40, 12)
	frameList.Title = "Enabled TX Messages"
	frameList.SetShowStatusBar(false)
	frameList.SetShowHelp(false)
	frameList.SetFilteringEnabled(false)

	return panelModel{
		box:           box,
		busInfo:       busInfo,
		snapshot:      box.Snapshot(),
		voltageInput:  vi,
		currentInput:  ci,
		frameList:     frameList,
		focusedField:  focusVoltage,
		events:        events,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		schedulerOK:   true,
	}
}

func frameItems(box *sbox.SBox) []list.Item {
	frames := box.Frames().Sorted()
	items := make([]list.Item, len(frames))
	for i, f := range frames {
		items[i] = frameItem{frame: f}
	}
	return items
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m panelModel) Init() tea.Cmd {
	return tea.Batch(panelTickCmd(), waitForEvent(m.events), textinput.Blink)
}

func panelTickCmd() tea.Cmd {
	return tea.Tick(panelRefreshInterval, func(t time.Time) tea.Msg {
		return panelTickMsg(t)
	})
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()
		return m, nil

	case panelTickMsg:
		m.snapshot = m.box.Snapshot()
		return m, panelTickCmd()

	case eventMsg:
		m.addLogEntry(eventLogEntry(msg))
		return m, waitForEvent(m.events)

	case schedulerStoppedMsg:
		m.schedulerOK = false
		if msg.err != nil {
			m.addLogEntry(eventLogEntry{timestamp: time.Now(), message: fmt.Sprintf("Simulator stopped: %v", msg.err), isError: true})
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m panelModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		// Typed into the voltage and current fields otherwise
		if m.focusedField == focusFrames {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter(), nil

	case " ", "space":
		if m.focusedField == focusFrames {
			return m.toggleSelectedFrame(), nil
		}
	}

	return m.updateFocused(msg)
}

func (m panelModel) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focusedField {
	case focusVoltage:
		m.voltageInput, cmd = m.voltageInput.Update(msg)
	case focusCurrent:
		m.currentInput, cmd = m.currentInput.Update(msg)
	case focusFrames:
		m.frameList, cmd = m.frameList.Update(msg)
	}
	return m, cmd
}

func (m panelModel) cycleFocus(delta int) panelModel {
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount

	m.voltageInput.Blur()
	m.currentInput.Blur()
	switch m.focusedField {
	case focusVoltage:
		m.voltageInput.Focus()
	case focusCurrent:
		m.currentInput.Focus()
	}
	return m
}

func (m panelModel) handleEnter() panelModel {
	switch m.focusedField {
	case focusVoltage:
		v, ok := m.parseInput(m.voltageInput, "Voltage", minVoltage, maxVoltage)
		if ok {
			m.box.SetVoltage(v)
		}
	case focusCurrent:
		a, ok := m.parseInput(m.currentInput, "Current", minCurrent, maxCurrent)
		if ok {
			m.box.SetCurrent(a)
		}
	case focusFrames:
		return m.toggleSelectedFrame()
	}
	m.snapshot = m.box.Snapshot()
	return m
}

// parseInput validates a numeric field, logging the problem on failure
func (m *panelModel) parseInput(in textinput.Model, label string, lo, hi float64) (float64, bool) {
	s := strings.TrimSpace(in.Value())
	if s == "" {
		s = in.Placeholder
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		m.addLogEntry(eventLogEntry{timestamp: time.Now(), message: fmt.Sprintf("Invalid %s value: %s", strings.ToLower(label), s), isError: true})
		return 0, false
	}
	if v < lo || v > hi {
		m.addLogEntry(eventLogEntry{timestamp: time.Now(), message: fmt.Sprintf("%s must be between %g and %g", label, lo, hi), isError: true})
		return 0, false
	}
	return v, true
}

func (m panelModel) toggleSelectedFrame() panelModel {
	item, ok := m.frameList.SelectedItem().(frameItem)
	if !ok {
		return m
	}
	if err := m.box.SetFrameEnabled(item.frame.ID(), !item.frame.Enabled()); err != nil {
		m.addLogEntry(eventLogEntry{timestamp: time.Now(), message: err.Error(), isError: true})
		return m
	}
	m.frameList.SetItems(frameItems(m.box))
	return m
}

func (m panelModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	offStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("SBOX SIMULATOR"))
	s.WriteString(" ")
	busStatus := m.busInfo
	if !m.schedulerOK {
		busStatus = errorStyle.Render("STOPPED")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Ctrl+C=quit Tab=switch Enter=apply Space=toggle", busStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderContactors(labelStyle, valueStyle, offStyle, warningStyle, boxStyle))
	s.WriteString("\n")

	// Left: source controls, right: frame toggles
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	controlStyle := boxStyle.Width(leftWidth)
	listStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusFrames {
		listStyle = focusedBoxStyle.Width(rightWidth)
	} else {
		controlStyle = focusedBoxStyle.Width(leftWidth)
	}
	controls := controlStyle.Render(m.renderSourceControls(labelStyle, valueStyle))
	frames := listStyle.Render(m.frameList.View())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, controls, " ", frames))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(labelStyle, headerStyle, warningStyle, errorStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m panelModel) renderContactors(labelStyle, valueStyle, offStyle, warningStyle, boxStyle lipgloss.Style) string {
	c := m.snapshot.Contactors

	onOff := func(closed bool) string {
		if closed {
			return valueStyle.Render("ON")
		}
		return offStyle.Render("OFF")
	}
	setup := offStyle.Render("NO")
	if c.SetupEnabled {
		setup = valueStyle.Render("YES")
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s\n%s %s  %s %s",
		labelStyle.Render("Contactor Setup:"), setup,
		labelStyle.Render("Positive:"), onOff(c.PosClosed),
		labelStyle.Render("Negative:"), onOff(c.NegClosed),
		labelStyle.Render("Pre-charge:"), onOff(c.PchClosed),
		labelStyle.Render("Output:"), valueStyle.Render(fmt.Sprintf("%.1f V", m.snapshot.OutputVoltage)),
		labelStyle.Render("Rx:"), valueStyle.Render(fmt.Sprintf("%d messages/sec", m.snapshot.MessagesPerSecond)),
	)
	if c.PrechargeActive() {
		content += "  " + warningStyle.Render(fmt.Sprintf("PRECHARGING %.1fs", time.Since(c.PrechargeStart).Seconds()))
	}

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m panelModel) renderSourceControls(labelStyle, valueStyle lipgloss.Style) string {
	var s strings.Builder
	src := m.snapshot.Source

	s.WriteString(labelStyle.Render("Voltage (V): "))
	s.WriteString(m.renderInput(m.voltageInput, m.focusedField == focusVoltage))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("  active %s\n\n", valueStyle.Render(fmt.Sprintf("%.1f V", src.Voltage))))

	s.WriteString(labelStyle.Render("Current (A): "))
	s.WriteString(m.renderInput(m.currentInput, m.focusedField == focusCurrent))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("  active %s", valueStyle.Render(fmt.Sprintf("%.1f A", src.Current))))

	return s.String()
}

func (m panelModel) renderInput(in textinput.Model, focused bool) string {
	if focused {
		return in.View()
	}
	// Show as plain text when not focused
	val := in.Value()
	if val == "" {
		val = in.Placeholder
	}
	return fmt.Sprintf("[%s]", val)
}

func (m panelModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	st := m.snapshot.Stats

	txErrors := valueStyle.Render("0")
	if st.TxErrors > 0 {
		txErrors = errorStyle.Render(fmt.Sprintf("%d", st.TxErrors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Tx:"), valueStyle.Render(fmt.Sprintf("%d", st.TxFrames)),
		labelStyle.Render("Tx errors:"), txErrors,
		labelStyle.Render("Rx:"), valueStyle.Render(fmt.Sprintf("%d", st.RxFrames)),
		labelStyle.Render("Control:"), valueStyle.Render(fmt.Sprintf("%d", st.ControlFrames)),
		labelStyle.Render("Setup:"), valueStyle.Render(fmt.Sprintf("%d", st.SetupFrames)),
		labelStyle.Render("Ignored/Unknown:"), valueStyle.Render(fmt.Sprintf("%d/%d", st.IgnoredCommands, st.UnknownCommands)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m panelModel) renderEventLog(labelStyle, headerStyle, warningStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 6
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *panelModel) addLogEntry(entry eventLogEntry) {
	m.eventLog = append(m.eventLog, entry)
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *panelModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 6 {
		listHeight = 6
	}
	listWidth := m.width - 30 - 10
	if listWidth < 28 {
		listWidth = 28
	}
	m.frameList.SetSize(listWidth, listHeight)
}
