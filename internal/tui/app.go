package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flowforge/eagerclean/pkg/cleanup"
)

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().Background(lipgloss.Color("#374151")).Foreground(fgColor).Padding(0, 1)

	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(mutedColor).Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

// App is the bubbletea model for eagerclean-watch: a polling dashboard
// over internal/httpstatus, in the mode-switching, tick-driven style of
// fentz26/neona's worker monitor panel.
type App struct {
	client *Client

	report    cleanup.Report
	processes []cleanup.ProcessSnapshot
	paths     []cleanup.PathSnapshot

	mode     string // "summary", "processes", "paths"
	viewport viewport.Model
	width    int
	height   int
	online   bool
	message  string
}

// New returns an App polling the status API at addr.
func New(addr string) *App {
	return &App{client: NewClient(addr), mode: "summary", viewport: viewport.New(80, 20)}
}

// Run starts the TUI.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchAll(), a.tickCmd())
}

type fetchedMsg struct {
	report    cleanup.Report
	processes []cleanup.ProcessSnapshot
	paths     []cleanup.PathSnapshot
	err       error
}

type tickMsg time.Time

func (a *App) fetchAll() tea.Cmd {
	return func() tea.Msg {
		report, err := a.client.Report()
		if err != nil {
			return fetchedMsg{err: err}
		}
		processes, err := a.client.Processes()
		if err != nil {
			return fetchedMsg{err: err}
		}
		paths, err := a.client.Paths()
		if err != nil {
			return fetchedMsg{err: err}
		}
		return fetchedMsg{report: report, processes: processes, paths: paths}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "tab":
			a.mode = nextMode(a.mode)
		case "p":
			a.mode = "processes"
		case "f":
			a.mode = "paths"
		case "s":
			a.mode = "summary"
		case "r":
			return a, a.fetchAll()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 6

	case fetchedMsg:
		if msg.err != nil {
			a.online = false
			a.message = "Error: " + msg.err.Error()
			return a, a.tickCmd()
		}
		a.online = true
		a.message = ""
		a.report = msg.report
		a.processes = msg.processes
		a.paths = msg.paths

	case tickMsg:
		return a, tea.Batch(a.fetchAll(), a.tickCmd())
	}
	return a, nil
}

func nextMode(mode string) string {
	switch mode {
	case "summary":
		return "processes"
	case "processes":
		return "paths"
	default:
		return "summary"
	}
}

func (a *App) View() string {
	var b strings.Builder

	status := lipgloss.NewStyle().Foreground(successColor).Bold(true).Render("● LIVE")
	if !a.online {
		status = lipgloss.NewStyle().Foreground(errorColor).Render("○ UNREACHABLE")
	}
	b.WriteString(titleStyle.Render("eagerclean watch") + "  " + status + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	switch a.mode {
	case "processes":
		b.WriteString(a.renderProcesses())
	case "paths":
		b.WriteString(a.renderPaths())
	default:
		b.WriteString(a.renderSummary())
	}

	if a.message != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(errorColor).Render(a.message) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(" s:summary | p:processes | f:paths | r:refresh | q:quit"))
	return b.String()
}

func (a *App) renderSummary() string {
	r := a.report
	rows := []string{
		fmt.Sprintf("processes   %d total, %d closed", r.Processes, r.ProcessesClosed),
		fmt.Sprintf("tasks       %d total, %s deleted, %d deletable", r.Tasks, countStyle(r.TasksDeleted), r.TasksDeletable),
		fmt.Sprintf("paths       %d total, %s deleted, %d deletable", r.Paths, countStyle(r.PathsDeleted), r.PathsDeletable),
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func countStyle(n int) string {
	return lipgloss.NewStyle().Foreground(successColor).Bold(true).Render(fmt.Sprintf("%d", n))
}

func (a *App) renderProcesses() string {
	if len(a.processes) == 0 {
		return "\n  no processes yet\n"
	}
	procs := make([]cleanup.ProcessSnapshot, len(a.processes))
	copy(procs, a.processes)
	sort.Slice(procs, func(i, j int) bool { return procs[i].Name < procs[j].Name })

	var b strings.Builder
	for _, p := range procs {
		closed := lipgloss.NewStyle().Foreground(warningColor).Render("open")
		if p.Closed {
			closed = lipgloss.NewStyle().Foreground(successColor).Render("closed")
		}
		b.WriteString(fmt.Sprintf("  %-20s %-8s consumers: %s\n", p.Name, closed, strings.Join(p.Consumers, ", ")))
	}
	return b.String()
}

func (a *App) renderPaths() string {
	if len(a.paths) == 0 {
		return "\n  no paths yet\n"
	}
	paths := make([]cleanup.PathSnapshot, len(a.paths))
	copy(paths, a.paths)
	sort.Slice(paths, func(i, j int) bool { return paths[i].Path < paths[j].Path })

	var b strings.Builder
	for _, p := range paths {
		state := lipgloss.NewStyle().Foreground(mutedColor).Render("pending")
		if p.Deleted {
			state = lipgloss.NewStyle().Foreground(errorColor).Render("deleted")
		} else if p.Deletable {
			state = lipgloss.NewStyle().Foreground(warningColor).Render("deletable")
		} else if p.Published {
			state = lipgloss.NewStyle().Foreground(successColor).Render("published")
		}
		b.WriteString(fmt.Sprintf("  %-40s %-12s from %s\n", p.Path, state, p.ProducerTask))
	}
	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
