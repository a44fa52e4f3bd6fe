package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/labbcat/internal/prefs"
	"github.com/five82/labbcat/internal/state"
)

// Options configures the watch view.
type Options struct {
	Context context.Context
	Store   *state.Store
	// Cancel asks the server to stop a task; nil disables the cancel key.
	Cancel     func(ctx context.Context, id string) error
	PollTick   time.Duration
	ThemeName  string
	PrefsPath  string
	PageLength int
}

// Model is the root state of the watch view.
type Model struct {
	ctx        context.Context
	store      *state.Store
	cancel     func(ctx context.Context, id string) error
	prefsPath  string
	pageLength int
	pollTick   time.Duration

	theme   Theme
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	bar     progress.Model
	width   int

	snapshot    state.Snapshot
	lastUpdated time.Time
	selected    int
	message     string
}

// New creates a watch view model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = themeOrder[0]
	}
	theme := GetTheme(themeName)

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx:        ctx,
		store:      opts.Store,
		cancel:     opts.Cancel,
		prefsPath:  prefsPath,
		pageLength: opts.PageLength,
		pollTick:   pollTick,
		theme:      theme,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:        newBar(theme, defaultBarWidth),
	}
}

const defaultBarWidth = 30

func newBar(t Theme, width int) progress.Model {
	bar := progress.New(progress.WithSolidFill(t.Accent), progress.WithoutPercentage())
	bar.Width = width
	return bar
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.bar.Width = min(max(msg.Width-60, 10), 60)
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		if n := len(m.snapshot.Tasks); m.selected >= n {
			m.selected = max(n-1, 0)
		}
		return m, nil

	case cancelResultMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("cancel %s failed: %v", msg.id, msg.err)
		} else {
			m.message = fmt.Sprintf("cancel requested for task %s", msg.id)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.bar = newBar(m.theme, m.bar.Width)
		if m.prefsPath != "" {
			_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, PageLength: m.pageLength})
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.snapshot.Tasks)-1 {
			m.selected++
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.cancel == nil || len(m.snapshot.Tasks) == 0 {
			return m, nil
		}
		task := m.snapshot.Tasks[m.selected]
		if !task.Running {
			m.message = fmt.Sprintf("task %s is not running", task.ID())
			return m, nil
		}
		m.message = fmt.Sprintf("cancelling task %s...", task.ID())
		return m, cancelCmd(m.ctx, m.cancel, task.ID())
	}

	return m, nil
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type cancelResultMsg struct {
	id  string
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func cancelCmd(ctx context.Context, cancel func(context.Context, string) error, id string) tea.Cmd {
	return func() tea.Msg {
		return cancelResultMsg{id: id, err: cancel(ctx, id)}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context ends.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}
