package tui

import (
	"fmt"
	"strings"
)

// HistoryLine is one row of the history tree.
type HistoryLine struct {
	Text  string
	Level int
}

// historyLines flattens the repository history section into a tree.
func (m Model) historyLines() []HistoryLine {
	if m.report == nil {
		return nil
	}
	h := m.report.History
	sum := m.report.Summary

	lines := []HistoryLine{
		{Text: fmt.Sprintf("%s (%s)", sum.Repository, sum.Host)},
		{Level: 1, Text: fmt.Sprintf("%d commits, %d files, %d authors", sum.TotalCommits, sum.TotalFiles, sum.TotalAuthors)},
	}
	if sum.Sampled {
		lines = append(lines, HistoryLine{Level: 1, Text: "history sampled (most recent commits only)"})
	}
	if !h.FirstCommit.IsZero() {
		lines = append(lines, HistoryLine{Level: 1, Text: fmt.Sprintf("span %s .. %s",
			h.FirstCommit.UTC().Format("2006-01-02"), h.LastCommit.UTC().Format("2006-01-02"))})
	}

	section := func(title string, items []string) {
		lines = append(lines, HistoryLine{Text: fmt.Sprintf("%s (%d)", title, len(items))})
		for _, it := range items {
			lines = append(lines, HistoryLine{Level: 1, Text: it})
		}
	}

	var contributors []string
	for _, c := range h.TopContributors {
		contributors = append(contributors, fmt.Sprintf("%s <%s>: %d commits, %d files", c.Name, c.Email, c.Commits, c.Files))
	}
	section("Top contributors", contributors)
	section("High churn files", h.HighChurnFiles)
	section("Single author files", h.SingleAuthorFiles)
	section("Stale files", h.StaleFiles)
	section("Branches", h.Branches)
	return lines
}

func (m Model) viewHistory() string {
	lines := m.historyLines()
	if len(lines) == 0 {
		return "\n\n   " + subtle.Render("No history loaded.")
	}

	s := strings.Builder{}
	s.WriteString(dimStyle.Render("   REPOSITORY HISTORY") + "\n")
	s.WriteString(dimStyle.Render("   "+strings.Repeat("─", 60)) + "\n")

	start, end := m.calculateHistoryWindow(len(lines))
	for i := start; i < end; i++ {
		line := lines[i]
		text := line.Text
		if len(text) > 70 {
			text = text[:67] + "..."
		}
		if line.Level > 0 {
			text = strings.Repeat("  ", line.Level) + "├─ " + text
		} else {
			text = highlight.Render(text)
		}

		if i == m.historyCursor {
			s.WriteString(listSelectedStyle.Render("> "+text) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render("  "+text) + "\n")
		}
	}
	return s.String()
}

func (m Model) calculateHistoryWindow(total int) (int, int) {
	windowSize := m.height - 8
	if windowSize < 10 {
		windowSize = 10
	}
	start := m.historyCursor - windowSize/2
	if start < 0 {
		start = 0
	}
	end := start + windowSize
	if end > total {
		end = total
		start = max(0, end-windowSize)
	}
	return start, end
}
