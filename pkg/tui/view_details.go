package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const maxDetailFiles = 10

func (m Model) viewDetails() string {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return "No Item Selected"
	}
	f := m.items[m.cursor]

	header := detailsHeaderStyle.Render(fmt.Sprintf("COMMIT : %s", f.CommitID))

	intel := lipgloss.JoinVertical(lipgloss.Left,
		severityStyle(f.Severity).Render(fmt.Sprintf("SEVERITY:   %s", strings.ToUpper(string(f.Severity)))),
		danger.Render(fmt.Sprintf("RISK SCORE: %.1f/10", f.RiskScore)),
		subtle.Render(fmt.Sprintf("AUTHOR:     %s <%s>", f.Author.Name, f.Author.Email)),
		subtle.Render(fmt.Sprintf("DATE:       %s", f.Date.UTC().Format("2006-01-02 15:04"))),
	)

	var matches []string
	for _, pm := range f.Matches {
		line := fmt.Sprintf("%-26s %-9s %q", pm.Pattern, pm.Severity, pm.Matched)
		if pm.CWE != "" {
			line += " " + pm.CWE
		}
		matches = append(matches, severityStyle(pm.Severity).Render(line))
	}

	files := f.FilesChanged
	more := ""
	if len(files) > maxDetailFiles {
		more = fmt.Sprintf("\n... %d more", len(files)-maxDetailFiles)
		files = files[:maxDetailFiles]
	}
	fileBlock := "(no file data)"
	if len(files) > 0 {
		fileBlock = strings.Join(files, "\n") + more
	}

	var links []string
	if f.CommitURL != "" {
		links = append(links, "Commit: "+f.CommitURL)
	}
	if f.DiffURL != "" {
		links = append(links, "Diff:   "+f.DiffURL)
	}
	for _, is := range f.Issues {
		if is.URL != "" {
			links = append(links, fmt.Sprintf("Issue #%s: %s", is.Number, is.URL))
		} else {
			links = append(links, "Issue #"+is.Number)
		}
	}
	if len(f.References) > 0 {
		links = append(links, "References: "+strings.Join(f.References, ", "))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		intel,
		"",
		highlight.Render("MESSAGE:"),
		strings.TrimSpace(f.Message),
		"",
		highlight.Render("MATCHES:"),
		strings.Join(matches, "\n"),
		"",
		highlight.Render("FILES:"),
		dimStyle.Render(fileBlock),
		"",
		subtle.Render(strings.Join(links, "\n")),
	)

	return detailsBoxStyle.Render(content)
}
