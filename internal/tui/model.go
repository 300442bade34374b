package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/session"
)

// activityLines is how many recent activity entries stay on screen
const activityLines = 5

// Controller is the part of session.Controller the picker drives
type Controller interface {
	StartScan(ctx context.Context) error
	Devices() []device.DeviceInfo
	Scanning() bool
	Connect(ctx context.Context, id string) error
	Connected() device.Device
	AutoSelect() (session.Target, error)
	Target() (session.Target, bool)
	Send(ctx context.Context) (session.SendResult, error)
	LastSend() (session.SendResult, bool)
	Disconnect() error
	Close() error
	TakeAlert() *session.Alert
	Activity() []session.Event
	Updates() <-chan struct{}
}

// Model is the Bubbletea model of the device picker.
type Model struct {
	ctx  context.Context
	ctrl Controller

	cursor  int
	devices []device.DeviceInfo
	width   int

	scanning   bool
	connecting bool
	sending    bool
	quitting   bool

	connected device.Device
	target    *session.Target
	lastSend  *session.SendResult
	alert     *session.Alert
	activity  []session.Event

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// --- messages ---

// updateMsg signals the controller state changed
type updateMsg struct{}

// opDoneMsg carries the outcome of a controller operation run as a command
type opDoneMsg struct {
	op  session.Op
	err error
}

type closedMsg struct{}

// NewModel creates the picker over ctrl.
func NewModel(ctx context.Context, ctrl Controller) Model {
	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		keys:    DefaultKeyMap(),
		help:    h,
		spinner: s,
		styles:  DefaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	// Start with a scan so the list is not empty on launch
	return tea.Batch(m.startScanCmd(), m.waitForUpdate(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.refresh()
		return m, m.waitForUpdate()

	case opDoneMsg:
		switch msg.op {
		case session.OpConnect, session.OpSelect:
			m.connecting = false
		case session.OpSend:
			m.sending = false
		}
		m.refresh()
		if msg.err != nil && m.alert == nil {
			m.alert = session.AlertFromError(msg.op, msg.err)
		}
		return m, nil

	case closedMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.quitting {
			return m, nil
		}
		m.quitting = true
		return m, m.closeCmd()
	}

	// Any key dismisses an alert and is consumed by it
	if m.alert != nil {
		m.alert = nil
		return m, nil
	}

	if m.quitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.devices)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Scan):
		if m.scanning || m.connecting {
			return m, nil
		}
		m.scanning = true
		return m, m.startScanCmd()
	case key.Matches(msg, m.keys.Connect):
		if m.connecting || len(m.devices) == 0 {
			return m, nil
		}
		m.connecting = true
		m.scanning = false
		return m, m.connectCmd(m.devices[m.cursor].ID())
	case key.Matches(msg, m.keys.Send):
		if m.sending || m.connecting {
			return m, nil
		}
		m.sending = true
		return m, m.sendCmd()
	case key.Matches(msg, m.keys.Disconnect):
		if m.connected == nil || m.connecting {
			return m, nil
		}
		return m, m.disconnectCmd()
	}

	return m, nil
}

// refresh copies the controller state into the model
func (m *Model) refresh() {
	m.devices = m.ctrl.Devices()
	if m.cursor >= len(m.devices) {
		m.cursor = max(len(m.devices)-1, 0)
	}
	m.scanning = m.ctrl.Scanning()
	m.connected = m.ctrl.Connected()

	m.target = nil
	if t, ok := m.ctrl.Target(); ok {
		m.target = &t
	}
	m.lastSend = nil
	if r, ok := m.ctrl.LastSend(); ok {
		m.lastSend = &r
	}
	if a := m.ctrl.TakeAlert(); a != nil {
		m.alert = a
	}

	m.activity = append(m.activity, m.ctrl.Activity()...)
	if n := len(m.activity); n > activityLines {
		m.activity = m.activity[n-activityLines:]
	}
}

// --- commands ---

func (m Model) waitForUpdate() tea.Cmd {
	updates := m.ctrl.Updates()
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return updateMsg{}
	}
}

func (m Model) startScanCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: session.OpScan, err: ctrl.StartScan(ctx)}
	}
}

// connectCmd connects and picks the target in one step
func (m Model) connectCmd(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		if err := ctrl.Connect(ctx, id); err != nil {
			return opDoneMsg{op: session.OpConnect, err: err}
		}
		_, err := ctrl.AutoSelect()
		return opDoneMsg{op: session.OpSelect, err: err}
	}
}

func (m Model) sendCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.Send(ctx)
		return opDoneMsg{op: session.OpSend, err: err}
	}
}

func (m Model) disconnectCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return opDoneMsg{op: session.OpDisconnect, err: ctrl.Disconnect()}
	}
}

func (m Model) closeCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		_ = ctrl.Close()
		return closedMsg{}
	}
}

// --- view ---

func (m Model) View() string {
	if m.quitting {
		return m.styles.App.Render(m.styles.Muted.Render("Closing session..."))
	}

	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteString("\n\n")

	if m.alert != nil {
		b.WriteString(m.renderAlert())
		b.WriteString("\n")
	}

	b.WriteString(m.renderDevices())
	b.WriteString(m.renderStatus())

	if len(m.activity) > 0 {
		b.WriteString("\n\n")
		for _, ev := range m.activity {
			b.WriteString(m.styles.Muted.Render(ev.String()))
			b.WriteString("\n")
		}
	}

	helpView := m.styles.Help.Render(m.help.View(m.keys))
	return m.styles.App.Render(b.String() + "\n" + helpView)
}

func (m Model) renderTitleBar() string {
	parts := []string{m.styles.Title.Render("blesend")}

	switch {
	case m.connecting:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Connecting..."))
	case m.sending:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Sending..."))
	case m.scanning:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Scanning..."))
	case m.connected != nil:
		parts = append(parts, m.styles.Online.Render("●"), m.styles.Muted.Render(displayName(m.connected)))
	default:
		parts = append(parts, m.styles.Offline.Render("○ Not connected"))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderAlert() string {
	content := m.styles.BannerTitle.Render(m.alert.Title) + "\n" +
		m.alert.Message + "\n" +
		m.styles.Muted.Render("press any key to dismiss")
	return m.styles.Banner.Render(content)
}

func (m Model) renderDevices() string {
	if len(m.devices) == 0 {
		if m.scanning {
			return m.styles.Muted.Render("Looking for devices...") + "\n"
		}
		scanKey := m.keys.Scan.Help().Key
		return m.styles.Muted.Render(fmt.Sprintf("No devices. Press '%s' to scan.", scanKey)) + "\n"
	}

	var b strings.Builder
	for i, d := range m.devices {
		line := fmt.Sprintf("%-24s %-17s", truncate(displayName(d), 24), d.Address())
		signal := m.styles.Signal.Render(fmt.Sprintf("%4d dBm", d.RSSI()))
		if i == m.cursor {
			b.WriteString(m.styles.ItemSelected.Render("> " + line))
		} else {
			b.WriteString(m.styles.Item.Render("  " + line))
		}
		b.WriteString(" " + signal + "\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	rows := []string{m.renderField("Device", "-")}
	if m.connected != nil {
		rows[0] = m.renderField("Device", fmt.Sprintf("%s (%s)", displayName(m.connected), m.connected.Address()))
	}

	if m.target != nil {
		rows = append(rows, m.renderField("Target", m.target.String()))
	}

	if m.lastSend != nil {
		mode := "without response"
		if m.lastSend.WithResponse {
			mode = "with response"
		}
		rows = append(rows, m.renderField("Last send", m.styles.Success.Render(
			fmt.Sprintf("%d bytes %s in %v", m.lastSend.Bytes, mode, m.lastSend.Elapsed.Round(time.Millisecond)))))
	}

	return m.styles.StatusBar.Render(strings.Join(rows, "\n"))
}

func (m Model) renderField(label, value string) string {
	return m.styles.StatusKey.Render(label) + m.styles.StatusValue.Render(value)
}

func displayName(d device.DeviceInfo) string {
	if d.Name() != "" {
		return d.Name()
	}
	return "(unknown)"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
