package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/report"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	tea "github.com/charmbracelet/bubbletea"
)

func finding(id, msg string, sev patterns.Severity, score float64, at time.Time) report.Finding {
	return report.Finding{
		VulnerabilityFinding: patterns.VulnerabilityFinding{
			CommitID:     id,
			Message:      msg,
			Author:       history.Identity{Name: "alice", Email: "alice@example.com"},
			Date:         at,
			FilesChanged: []string{"src/auth.go"},
			Matches: []patterns.PatternMatch{
				{Pattern: "Authentication Bypass", Matched: "auth bypass", Severity: sev, CWE: "CWE-287"},
			},
			RiskScore: score,
		},
		Severity:  sev,
		CommitURL: "https://github.com/acme/app/commit/" + id,
	}
}

func sampleReport() *report.Report {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &report.Report{
		Summary: report.Summary{
			Repository:   "/src/app",
			Host:         "GitHub",
			TotalCommits: 3,
			TotalFiles:   5,
			TotalAuthors: 2,
			Findings:     2,
		},
		Risk: risk.Assessment{Score: 8.5, Level: risk.LevelCritical},
		Findings: []report.Finding{
			finding("cccccccccccc", "CVE-2022-0001 auth bypass", patterns.Critical, 10, base.Add(2*time.Hour)),
			finding("aaaaaaaaaaaa", "fix buffer overflow", patterns.High, 7, base.Add(4*time.Hour)),
		},
		History: report.HistorySection{
			HighChurnFiles:  []string{"file1.txt"},
			StaleFiles:      []string{"file2.txt"},
			TopContributors: []report.Contributor{{Name: "alice", Email: "alice@example.com", Commits: 2, Files: 4}},
		},
	}
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestListRendering(t *testing.T) {
	m := NewReportModel(sampleReport())
	view := m.View()

	for _, want := range []string{"CVE-2022-0001 auth bypass", "fix buffer overflow", "CRITICAL", "ccccccccc", "FINDINGS:"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected list view to contain %q.\nGot:\n%s", want, view)
		}
	}
	if strings.Index(view, "CVE-2022-0001") > strings.Index(view, "buffer overflow") {
		t.Errorf("expected highest risk finding first")
	}
}

func TestDetailsView(t *testing.T) {
	m := NewReportModel(sampleReport())
	m = press(m, "enter")
	if m.state != ViewStateDetail {
		t.Fatalf("expected detail view, got %v", m.state)
	}
	view := m.View()
	for _, want := range []string{"cccccccccccc", "Authentication Bypass", "CWE-287", "src/auth.go", "https://github.com/acme/app/commit/cccccccccccc"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected details to contain %q.\nGot:\n%s", want, view)
		}
	}

	m = press(m, "esc")
	if m.state != ViewStateList {
		t.Errorf("expected list view after esc, got %v", m.state)
	}
}

func TestSortAndFilter(t *testing.T) {
	m := NewReportModel(sampleReport())

	m = press(m, "s")
	if m.SortMode != SortDate {
		t.Fatalf("expected date sort, got %s", m.SortMode)
	}
	if m.items[0].CommitID != "aaaaaaaaaaaa" {
		t.Errorf("expected newest commit first, got %s", m.items[0].CommitID)
	}

	m = press(m, "f")
	if m.FilterMode != patterns.Critical {
		t.Fatalf("expected critical filter, got %q", m.FilterMode)
	}
	if len(m.items) != 1 || m.items[0].CommitID != "cccccccccccc" {
		t.Errorf("expected only the critical finding, got %+v", m.items)
	}

	for i := 0; i < len(severityCycle)-1; i++ {
		m = press(m, "f")
	}
	if m.FilterMode != "" || len(m.items) != 2 {
		t.Errorf("expected filter to wrap to all, got %q with %d items", m.FilterMode, len(m.items))
	}
}

func TestCursorIsClamped(t *testing.T) {
	m := NewReportModel(sampleReport())
	for i := 0; i < 5; i++ {
		m = press(m, "down")
	}
	if m.cursor != 1 {
		t.Errorf("expected cursor clamped to 1, got %d", m.cursor)
	}
}

func TestHistoryView(t *testing.T) {
	m := NewReportModel(sampleReport())
	m = press(m, "h")
	view := m.View()
	for _, want := range []string{"REPOSITORY HISTORY", "High churn files (1)", "file1.txt", "alice <alice@example.com>: 2 commits"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected history view to contain %q.\nGot:\n%s", want, view)
		}
	}
}

func TestScanLifecycle(t *testing.T) {
	m := NewModel("/src/app")
	next, _ := m.Update(ProgressMsg(history.Progress{Done: 50, Total: 100}))
	m = next.(Model)
	if view := m.View(); !strings.Contains(view, "50/100 commits") {
		t.Errorf("expected progress in view.\nGot:\n%s", view)
	}

	next, _ = m.Update(DoneMsg{Report: sampleReport()})
	m = next.(Model)
	if m.scanning {
		t.Fatal("expected scanning to stop")
	}
	if len(m.items) != 2 {
		t.Errorf("expected 2 findings, got %d", len(m.items))
	}

	next, _ = m.Update(DoneMsg{Err: errors.New("boom")})
	m = next.(Model)
	if m.Err() == nil || !strings.Contains(m.View(), "boom") {
		t.Error("expected error to be shown")
	}
}

func TestEmptyReport(t *testing.T) {
	r := sampleReport()
	r.Findings = nil
	view := NewReportModel(r).View()
	if !strings.Contains(view, "No risky commits detected") {
		t.Errorf("expected clean message.\nGot:\n%s", view)
	}
}

func TestPrintExitSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintExitSummary(&buf, time.Now(), sampleReport())
	if !strings.Contains(buf.String(), "2 findings") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}
