package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/gilt/pkg/manifest"
	"github.com/matzehuels/gilt/pkg/pipeline"
)

// Progress view styles
var (
	progressNameStyle = lipgloss.NewStyle().Foreground(colorWhite).Width(28)
	progressDimStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

// spinnerFrames are the braille frames of the progress spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

type (
	depStartMsg struct{ name string }
	depStageMsg struct{ name, stage string }
	depDoneMsg  struct {
		name     string
		duration time.Duration
		err      error
	}
	runDoneMsg struct{}
	tickMsg    struct{}
)

// =============================================================================
// progressHooks - pipeline events to bubbletea messages
// =============================================================================

// progressHooks forwards pipeline events to a running program.
type progressHooks struct {
	send func(tea.Msg)
}

func (h progressHooks) OnDependencyStart(_ context.Context, name string) {
	h.send(depStartMsg{name: name})
}

func (h progressHooks) OnDependencyComplete(_ context.Context, name string, d time.Duration, err error) {
	h.send(depDoneMsg{name: name, duration: d, err: err})
}

func (h progressHooks) OnMirrorComplete(_ context.Context, name, version string, _ time.Duration, err error) {
	if err == nil {
		h.send(depStageMsg{name: name, stage: "synced " + version})
	}
}

func (h progressHooks) OnOverlayComplete(_ context.Context, name string, _ time.Duration, err error) {
	if err == nil {
		h.send(depStageMsg{name: name, stage: "copied"})
	}
}

// =============================================================================
// ProgressModel - live view of a run
// =============================================================================

type rowState int

const (
	rowPending rowState = iota
	rowRunning
	rowDone
	rowFailed
)

// progressRow is one resolved name. Entries sharing a mirror share a row.
type progressRow struct {
	name     string
	state    rowState
	stage    string
	pending  int // Entries not yet completed
	duration time.Duration
}

// ProgressModel is the bubbletea model for overlay --progress.
type ProgressModel struct {
	rows     []*progressRow
	byName   map[string]*progressRow
	frame    int
	total    int
	finished int
	done     bool
	Aborted  bool
}

// NewProgressModel creates a progress model for deps.
func NewProgressModel(deps []manifest.Dependency) ProgressModel {
	m := ProgressModel{byName: make(map[string]*progressRow), total: len(deps)}
	for _, d := range deps {
		row, ok := m.byName[d.Name]
		if !ok {
			row = &progressRow{name: d.Name}
			m.byName[d.Name] = row
			m.rows = append(m.rows, row)
		}
		row.pending++
	}
	return m
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	case depStartMsg:
		if row := m.byName[msg.name]; row != nil && row.state != rowFailed {
			row.state = rowRunning
			row.stage = "locked"
		}
	case depStageMsg:
		if row := m.byName[msg.name]; row != nil && row.state == rowRunning {
			row.stage = msg.stage
		}
	case depDoneMsg:
		m.finished++
		if row := m.byName[msg.name]; row != nil {
			row.pending--
			row.duration += msg.duration
			switch {
			case msg.err != nil:
				row.state = rowFailed
				row.stage = "failed"
			case row.pending <= 0 && row.state != rowFailed:
				row.state = rowDone
				row.stage = ""
			}
		}
	case runDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Overlaying %d dependencies", m.total)))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		var icon, detail string
		switch row.state {
		case rowPending:
			icon = progressDimStyle.Render("·")
			detail = "waiting"
		case rowRunning:
			icon = styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)])
			detail = row.stage
		case rowDone:
			icon = styleIconSuccess.Render(iconSuccess)
			detail = row.duration.Round(time.Millisecond).String()
		case rowFailed:
			icon = styleIconError.Render(iconError)
			detail = row.stage
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", icon, progressNameStyle.Render(row.name), progressDimStyle.Render(detail)))
	}

	b.WriteString("\n")
	b.WriteString(progressDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.finished, m.total)))
	if !m.done {
		b.WriteString(progressDimStyle.Render("  q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func tick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// =============================================================================
// Running
// =============================================================================

// runWithProgress runs deps while a ProgressModel renders their state.
// Quitting the view cancels the run and waits for it to unwind.
func runWithProgress(parent context.Context, runner *pipeline.Runner, deps []manifest.Dependency) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(deps), tea.WithContext(ctx))
	runner.Hooks = progressHooks{send: p.Send}

	var (
		wg     sync.WaitGroup
		result *pipeline.Result
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		result = runner.Run(ctx, deps)
		p.Send(runDoneMsg{})
	}()

	final, err := p.Run()
	m, _ := final.(ProgressModel)
	if err != nil || m.Aborted {
		cancel()
	}
	wg.Wait()

	switch {
	case err != nil && parent.Err() == nil:
		return result, fmt.Errorf("progress view: %w", err)
	case m.Aborted:
		return result, context.Canceled
	}
	return result, nil
}
