package tui

import (
	"fmt"
	"strings"
)

func (m Model) viewList() string {
	s := strings.Builder{}

	if len(m.items) == 0 {
		if m.FilterMode != "" {
			return "\n\n   " + subtle.Render(fmt.Sprintf("No %s findings. Press f to change the filter.", m.FilterMode))
		}
		return "\n\n   " + iconSafe.Render() + subtle.Render("  No risky commits detected.")
	}

	start, end := m.calculateWindow(len(m.items))

	headerTxt := fmt.Sprintf("  %-10s | %-10s | %-5s | %-16s | %s", "COMMIT", "SEVERITY", "RISK", "AUTHOR", "SUMMARY")
	s.WriteString(dimStyle.Render(headerTxt) + "\n")

	filterStatus := fmt.Sprintf(" [SORT: %s]", m.SortMode)
	if m.FilterMode != "" {
		filterStatus += fmt.Sprintf(" [FILTER: %s]", m.FilterMode)
	}
	s.WriteString(warning.Render("  "+filterStatus) + "\n")

	for i := start; i < end; i++ {
		f := m.items[i]
		isSelected := i == m.cursor

		cursor := "  "
		if isSelected {
			cursor = "> "
		}

		summary := f.Summary()
		if len(summary) > 50 {
			summary = summary[:47] + "..."
		}
		author := f.Author.Name
		if len(author) > 16 {
			author = author[:13] + "..."
		}

		sev := fmt.Sprintf("%-10s", strings.ToUpper(string(f.Severity)))
		line := fmt.Sprintf("%-10s | %s | %5.1f | %-16s | %s",
			shortID(f.CommitID), severityStyle(f.Severity).Render(sev), f.RiskScore, author, summary)

		if isSelected {
			s.WriteString(listSelectedStyle.Render(cursor+line) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render(cursor+line) + "\n")
		}
	}

	if end < len(m.items) {
		s.WriteString(dimStyle.Render(fmt.Sprintf("   ... %d more", len(m.items)-end)) + "\n")
	}
	return s.String()
}

func (m Model) calculateWindow(total int) (int, int) {
	windowSize := m.height - 8 // HUD + footer
	if windowSize < 5 {
		windowSize = 5
	}

	start := m.cursor - (windowSize / 2)
	if start < 0 {
		start = 0
	}

	end := start + windowSize
	if end > total {
		end = total
		start = end - windowSize
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
