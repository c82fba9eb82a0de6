package tui

import (
	"sort"
	"time"

	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/report"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateDetail
	ViewStateHistory
	ViewStateHelp
)

// Sort modes.
const (
	SortRisk = "risk"
	SortDate = "date"
)

// ProgressMsg carries extraction progress into the browser.
type ProgressMsg history.Progress

// DoneMsg ends the scanning phase.
type DoneMsg struct {
	Report *report.Report
	Err    error
}

type tickMsg time.Time

// severityCycle is the order the severity filter steps through. "" shows all.
var severityCycle = []patterns.Severity{"", patterns.Critical, patterns.High, patterns.Medium, patterns.Low}

type Model struct {
	spinner  spinner.Model
	progress progress.Model

	state    ViewState
	scanning bool
	quitting bool
	err      error
	width    int
	height   int
	Repo     string

	report *report.Report
	items  []report.Finding

	done     int
	total    int
	degraded int64

	startTime time.Time

	SortMode   string
	FilterMode patterns.Severity

	statusMsg string

	cursor        int
	historyCursor int

	tickCount int
}

// NewModel returns a browser that waits for progress and a DoneMsg.
func NewModel(repo string) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = special

	return Model{
		spinner:   s,
		progress:  progress.New(progress.WithGradient("#00FF99", "#00CCFF")),
		scanning:  true,
		state:     ViewStateList,
		startTime: time.Now(),
		Repo:      repo,
		SortMode:  SortRisk,
	}
}

// NewReportModel returns a browser over a finished report.
func NewReportModel(r *report.Report) Model {
	m := NewModel(r.Summary.Repository)
	m.scanning = false
	m.report = r
	m.refreshData()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
			return tickMsg(t)
		}),
	)
}

// Err returns the scan error delivered through DoneMsg, if any.
func (m Model) Err() error {
	return m.err
}

// Report returns the report being browsed.
func (m Model) Report() *report.Report {
	return m.report
}

// refreshData rebuilds the visible finding list from the report.
func (m *Model) refreshData() {
	m.items = m.items[:0]
	if m.report == nil {
		return
	}
	for _, f := range m.report.Findings {
		if m.FilterMode != "" && f.Severity != m.FilterMode {
			continue
		}
		m.items = append(m.items, f)
	}
	if m.SortMode == SortDate {
		sort.SliceStable(m.items, func(i, j int) bool {
			return m.items[i].Date.After(m.items[j].Date)
		})
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, msg.Width-20)

	case ProgressMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.degraded = msg.Degraded

	case DoneMsg:
		m.scanning = false
		m.err = msg.Err
		m.report = msg.Report
		m.refreshData()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.tickCount++
		return m, tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "?":
		if m.state == ViewStateHelp {
			m.state = ViewStateList
		} else {
			m.state = ViewStateHelp
		}
	case "esc", "b":
		m.state = ViewStateList
	case "up", "k":
		if m.state == ViewStateHistory {
			if m.historyCursor > 0 {
				m.historyCursor--
			}
		} else if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.state == ViewStateHistory {
			if m.historyCursor < len(m.historyLines())-1 {
				m.historyCursor++
			}
		} else if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", " ":
		switch m.state {
		case ViewStateList:
			if len(m.items) > 0 {
				m.state = ViewStateDetail
			}
		case ViewStateDetail:
			m.state = ViewStateList
		}
	case "h", "tab":
		if m.state == ViewStateHistory {
			m.state = ViewStateList
		} else {
			m.state = ViewStateHistory
		}
	case "s":
		if m.SortMode == SortRisk {
			m.SortMode = SortDate
		} else {
			m.SortMode = SortRisk
		}
		m.refreshData()
		m.statusMsg = "sorted by " + m.SortMode
	case "f":
		m.FilterMode = nextSeverity(m.FilterMode)
		m.cursor = 0
		m.refreshData()
		if m.FilterMode == "" {
			m.statusMsg = "showing all severities"
		} else {
			m.statusMsg = "showing " + string(m.FilterMode) + " only"
		}
	}
	return m, nil
}

func nextSeverity(cur patterns.Severity) patterns.Severity {
	for i, s := range severityCycle {
		if s == cur {
			return severityCycle[(i+1)%len(severityCycle)]
		}
	}
	return ""
}
