// Package tui is the interactive terminal UI. The bubbletea program is the
// UI goroutine: session work posted to the host loop runs inside Update.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"procview/internal/app"
	"procview/internal/config"
	"procview/internal/events"
	"procview/internal/host"
	"procview/internal/metrics"
	"procview/internal/presenter"
	"procview/internal/registry"
	"procview/internal/session"
)

const durationStep = 250 * time.Millisecond

// Controller defines the subset of app.App behaviour the TUI needs.
type Controller interface {
	Status() (app.DaemonStatus, error)
	Providers(ctx context.Context, cfg config.Config, remote bool) ([]session.Provider, io.Closer, error)
}

// Options configures Run.
type Options struct {
	Config     config.Config
	ConfigPath string
	Remote     bool
	Logger     *slog.Logger
	// Clock drives highlight timers; nil is the wall clock.
	Clock host.Clock
}

// Model represents the Bubble Tea state.
type Model struct {
	controller Controller
	loop       *host.Loop
	session    *session.Session
	remote     bool

	tabs   []registry.Kind
	active int
	colls  map[registry.Kind]*listCollection

	hlDuration time.Duration
	hlEnabled  bool

	daemonStatus app.DaemonStatus
	statusMsg    string
	err          error

	width  int
	height int

	lastUpdated time.Time
}

// New builds the model, its collections and the session that drives them.
func New(ctrl Controller, loop *host.Loop, opts Options) (*Model, error) {
	m := &Model{
		controller: ctrl,
		loop:       loop,
		remote:     opts.Remote,
		tabs:       []registry.Kind{registry.KindProcess, registry.KindService},
		colls:      make(map[registry.Kind]*listCollection),
		hlDuration: opts.Config.Highlight.Duration,
		hlEnabled:  opts.Config.Highlight.Enabled,
		statusMsg:  "Collecting…",
	}
	collections := make(map[registry.Kind]presenter.Collection, len(m.tabs))
	for _, kind := range m.tabs {
		c := newListCollection(kind, rowDelegate{})
		m.colls[kind] = c
		collections[kind] = c
	}
	sess, err := session.New(session.Options{
		Poster:            loop,
		Clock:             opts.Clock,
		Logger:            opts.Logger,
		Collections:       collections,
		HighlightDuration: m.hlDuration,
		HighlightEnabled:  m.hlEnabled,
	})
	if err != nil {
		return nil, err
	}
	sess.OnEvents(func([]events.Event) { m.lastUpdated = time.Now() })
	m.session = sess
	return m, nil
}

// Session returns the session the model displays.
func (m *Model) Session() *session.Session { return m.session }

// Run spins up the Bubble Tea program, the providers and, when a config file
// is set, the live settings reload.
func Run(ctrl Controller, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, closer, err := ctrl.Providers(ctx, opts.Config, opts.Remote)
	if err != nil {
		return err
	}
	defer closer.Close()

	if addr := opts.Config.Metrics.Addr; addr != "" && !opts.Remote {
		srv := metrics.Serve(addr, log)
		defer srv.Close()
	}

	loop := host.NewLoop(nil)
	m, err := New(ctrl, loop, opts)
	if err != nil {
		return err
	}
	prog := tea.NewProgram(m, tea.WithAltScreen())
	// Send blocks until the program reads it, so never call it from a producer.
	loop.SetNotify(func() { go prog.Send(runTasksMsg{}) })

	done := make(chan error, 1)
	go func() {
		err := m.session.Run(ctx, providers...)
		done <- err
		prog.Send(sessionDoneMsg{err: err})
	}()

	if opts.ConfigPath != "" {
		err := config.Watch(ctx, opts.ConfigPath, log, func(c config.Config) {
			prog.Send(configMsg{cfg: c})
		})
		if err != nil {
			log.Warn("config watch disabled", "err", err)
		}
	}

	_, runErr := prog.Run()

	cancel()
	<-done
	// The program loop has exited, so this goroutine is the UI goroutine now.
	loop.Close()
	for _, c := range m.colls {
		c.teardown()
	}
	m.session.Close()
	return runErr
}

type runTasksMsg struct{}

type sessionDoneMsg struct{ err error }

type configMsg struct{ cfg config.Config }

type daemonStatusMsg struct {
	status app.DaemonStatus
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.remote {
		return checkDaemonStatusCmd(m.controller)
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 6; h > 0 {
			for _, c := range m.colls {
				c.list.SetSize(msg.Width, h)
			}
		}
		return m, nil

	case runTasksMsg:
		m.loop.RunPending()
		return m, nil

	case sessionDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.statusMsg = "Providers stopped."
		return m, nil

	case configMsg:
		h := msg.cfg.Highlight
		m.configure(h.Duration, h.Enabled)
		m.statusMsg = "Settings reloaded."
		return m, nil

	case daemonStatusMsg:
		m.daemonStatus = msg.status
		if msg.status.Running && msg.status.PID > 0 {
			m.statusMsg = fmt.Sprintf("Mirroring daemon (pid %d).", msg.status.PID)
		} else if msg.status.Running {
			m.statusMsg = "Mirroring daemon."
		} else {
			m.statusMsg = "Daemon is not running."
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.active = (m.active + 1) % len(m.tabs)
			return m, nil
		case "shift+tab":
			m.active = (m.active + len(m.tabs) - 1) % len(m.tabs)
			return m, nil
		case "h":
			m.configure(m.hlDuration, !m.hlEnabled)
			return m, nil
		case "+", "=":
			m.configure(m.hlDuration+durationStep, m.hlEnabled)
			return m, nil
		case "-":
			if m.hlDuration > durationStep {
				m.configure(m.hlDuration-durationStep, m.hlEnabled)
			}
			return m, nil
		case "t":
			m.tickCurrent()
			return m, nil
		}
	}

	c := m.activeCollection()
	var cmd tea.Cmd
	c.list, cmd = c.list.Update(msg)
	return m, cmd
}

// configure applies highlight settings to every collection. Transitions
// already queued keep their deadlines.
func (m *Model) configure(d time.Duration, enabled bool) {
	m.hlDuration = d
	m.hlEnabled = enabled
	m.session.Configure(d, enabled)
}

func (m *Model) tickCurrent() {
	kind := m.tabs[m.active]
	it := m.colls[kind].current()
	if it == nil {
		return
	}
	if sy, ok := m.session.Synchronizer(kind); ok {
		sy.Tick(it.Key)
	}
}

func (m *Model) activeCollection() *listCollection {
	return m.colls[m.tabs[m.active]]
}

var (
	styleTab       = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("244"))
	styleActiveTab = lipgloss.NewStyle().Padding(0, 2).Bold(true).Underline(true)
	styleErr       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	styleHelp      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleDetail    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	tabs := make([]string, 0, len(m.tabs))
	for i, kind := range m.tabs {
		label := fmt.Sprintf("%s (%d)", kind.Plural(), len(m.colls[kind].rows))
		if i == m.active {
			tabs = append(tabs, styleActiveTab.Render(label))
		} else {
			tabs = append(tabs, styleTab.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteByte('\n')

	if m.err != nil {
		b.WriteString(styleErr.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		b.WriteString(m.statusMsg)
	}
	b.WriteByte('\n')

	width := m.width
	if width <= 0 {
		width = 80
	}
	c := m.activeCollection()
	b.WriteString(headerLine(c.kind, width))
	b.WriteByte('\n')
	b.WriteString(c.list.View())
	b.WriteByte('\n')

	if it := c.current(); it != nil {
		b.WriteString(styleDetail.Render(detail(it)))
		b.WriteByte('\n')
	}

	hl := "off"
	if m.hlEnabled {
		hl = m.hlDuration.String()
	}
	help := fmt.Sprintf("q quit • tab switch • h highlight (%s) • +/- duration • t mark changed", hl)
	if !m.lastUpdated.IsZero() {
		help += fmt.Sprintf(" • last update %s", m.lastUpdated.Format(time.Kitchen))
	}
	b.WriteString(styleHelp.Render(help))
	return b.String()
}

func detail(it *presenter.Item) string {
	s := it.Snapshot
	lines := []string{
		fmt.Sprintf("%s  [%s]", valueOrDash(s.Name), it.State),
		fmt.Sprintf("key=%s pid=%d ppid=%d state=%s", s.Key, s.PID, s.PPID, valueOrDash(s.State)),
	}
	if s.Cmd != "" {
		lines = append(lines, "cmd="+s.Cmd)
	}
	if s.Description != "" {
		lines = append(lines, s.Description)
	}
	if !s.StartedAt.IsZero() {
		lines = append(lines, "started "+s.StartedAt.Local().Format(time.DateTime))
	}
	return strings.Join(lines, "\n")
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func checkDaemonStatusCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		status, err := ctrl.Status()
		if err != nil {
			return errMsg{err}
		}
		return daemonStatusMsg{status: status}
	}
}
