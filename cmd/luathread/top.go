package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/wippyai/luathread/pin"
	"github.com/wippyai/luathread/runtime"
)

const (
	refreshInterval = 250 * time.Millisecond
	outputLines     = 8
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func topCommand() *cli.Command {
	return &cli.Command{
		Name:      "top",
		Usage:     "Run a script while showing its live threads",
		ArgsUsage: "script.lua [args...]",
		Action:    topAction,
	}
}

func topAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: luathread top script.lua [args...]", 1)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return cli.Exit("top needs a terminal; use run instead", 1)
	}

	out := &tailBuffer{max: outputLines}
	s, err := newSession(c, out, out)
	if err != nil {
		return err
	}
	defer s.Close()

	m := newTopModel(c.Context, s, c.Args().First(), c.Args().Tail(), out)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	return nil
}

// tailBuffer keeps the last lines written to it.
type tailBuffer struct {
	mu      sync.Mutex
	lines   []string
	partial string
	max     int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts := strings.Split(b.partial+string(p), "\n")
	b.partial = parts[len(parts)-1]
	b.lines = append(b.lines, parts[:len(parts)-1]...)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

type (
	tickMsg       time.Time
	scriptDoneMsg struct{ err error }
	drainedMsg    struct{ err error }
)

type topModel struct {
	ctx      context.Context
	s        *session
	out      *tailBuffer
	path     string
	args     []string
	started  time.Time
	spinner  spinner.Model
	table    table.Model
	stats    runtime.Stats
	err      error
	finished bool
	drained  bool
}

func newTopModel(ctx context.Context, s *session, path string, args []string, out *tailBuffer) *topModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = valueStyle

	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "Thread", Width: 10},
			{Title: "Pinned for", Width: 14},
		}),
		table.WithHeight(10),
	)

	return &topModel{
		ctx:     ctx,
		s:       s,
		out:     out,
		path:    path,
		args:    args,
		started: time.Now(),
		spinner: sp,
		table:   tbl,
	}
}

func (m *topModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), m.runScript)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *topModel) runScript() tea.Msg {
	return scriptDoneMsg{err: m.s.execScript(m.path, m.args)}
}

func (m *topModel) drain() tea.Msg {
	return drainedMsg{err: m.s.drain(m.ctx)}
}

func (m *topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tickMsg:
		m.refresh()
		return m, tick()

	case scriptDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, m.drain

	case drainedMsg:
		m.drained = true
		if m.err == nil {
			m.err = msg.err
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *topModel) refresh() {
	m.stats = m.s.rt.Stats()

	var entries []pin.Entry
	m.s.rt.Pins().Each(func(e pin.Entry) bool {
		entries = append(entries, e)
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Token < entries[j].Token })

	now := time.Now()
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{
			strconv.FormatUint(uint64(e.Token), 10),
			now.Sub(e.PinnedAt).Truncate(time.Millisecond).String(),
		}
	}
	m.table.SetRows(rows)
}

func (m *topModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("luathread top"))
	b.WriteString(" ")
	b.WriteString(m.path)
	b.WriteString("\n\n")

	switch {
	case m.drained:
		b.WriteString(doneStyle.Render("all threads finished"))
	case m.finished:
		b.WriteString(m.spinner.View() + " script returned, waiting for threads")
	default:
		b.WriteString(m.spinner.View() + " running")
	}
	b.WriteString(fmt.Sprintf("  %s\n\n", time.Since(m.started).Truncate(time.Second)))

	st := m.stats
	for _, kv := range []struct {
		label string
		value uint64
	}{
		{"spawned", st.Spawned},
		{"running", st.Running()},
		{"joined", st.Joined},
		{"detached", st.Detached},
		{"failed", st.Failed},
	} {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", kv.label)))
		b.WriteString(valueStyle.Render(strconv.FormatUint(kv.value, 10)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	for _, line := range m.out.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit"))
	return b.String()
}
