package tui

import (
	"fmt"
	"strings"

	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	"github.com/DrSkyle/commitraider/pkg/version"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return "\n   " + iconCritical.Render() + " " + danger.Render(m.err.Error()) + "\n\n   " + helpStyle("q: quit") + "\n"
	}

	var body, help string
	switch m.state {
	case ViewStateDetail:
		body = m.viewDetails()
		help = "enter/esc: back • q: quit"
	case ViewStateHistory:
		body = m.viewHistory()
		help = "↑/↓: move • h: findings • q: quit"
	case ViewStateHelp:
		body = m.viewHelp()
		help = "?: close help • q: quit"
	default:
		body = m.viewList()
		help = "↑/↓: move • enter: details • s: sort • f: filter • h: history • ?: help • q: quit"
	}

	s := strings.Builder{}
	s.WriteString(m.viewHUD())
	s.WriteString("\n")
	if m.scanning {
		s.WriteString(m.viewScanning())
	} else {
		s.WriteString(body)
	}
	s.WriteString("\n")
	if m.statusMsg != "" {
		s.WriteString(warning.Render("  "+m.statusMsg) + "\n")
	}
	s.WriteString(helpStyle("  " + help))
	return s.String()
}

func (m Model) viewScanning() string {
	line := fmt.Sprintf("\n   %s Walking history of %s", m.spinner.View(), m.Repo)
	if m.total == 0 {
		return line + "\n"
	}
	pct := float64(m.done) / float64(m.total)
	line += fmt.Sprintf(" (%d/%d commits)\n\n   %s", m.done, m.total, m.progress.ViewAs(pct))
	if m.degraded > 0 {
		line += "\n   " + iconWarn.Render() + subtle.Render(fmt.Sprintf(" %d commits without file data", m.degraded))
	}
	return line + "\n"
}

func (m Model) viewHUD() string {
	status := "DONE"
	statusColor := special
	if m.scanning {
		status = "SCANNING" + strings.Repeat(".", m.tickCount%4)
		statusColor = warning
	}

	segTitle := highlight.Render(fmt.Sprintf("%s %s", strings.ToUpper(version.AppName), version.Current))
	segStatus := statusColor.Render(fmt.Sprintf("[ STATUS: %-11s ]", status))

	findings := "-"
	riskLevel := "-"
	riskColor := subtle
	if m.report != nil {
		findings = fmt.Sprintf("%d", m.report.Summary.Findings)
		riskLevel = fmt.Sprintf("%.1f %s", m.report.Risk.Score, m.report.Risk.Level)
		riskColor = levelStyle(m.report.Risk.Level)
	}
	segFindings := hudLabelStyle.Render("FINDINGS:") + hudValueStyle.Render(findings)
	segRisk := hudLabelStyle.Render("RISK:") + riskColor.Render(riskLevel)

	left := lipgloss.JoinHorizontal(lipgloss.Center, segTitle, "  ", segStatus)
	right := lipgloss.JoinHorizontal(lipgloss.Center, segFindings, "  |  ", segRisk)

	width := m.width - 4
	spacer := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	content := lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		lipgloss.NewStyle().Width(spacer).Render(""),
		right,
	)

	if m.width > 2 {
		return hudStyle.Width(m.width - 2).Render(content)
	}
	return hudStyle.Render(content)
}

func (m Model) viewHelp() string {
	rows := [][2]string{
		{"↑/k ↓/j", "move the cursor"},
		{"enter", "open or close finding details"},
		{"s", "toggle sort between risk score and date"},
		{"f", "cycle the severity filter"},
		{"h / tab", "repository history view"},
		{"esc / b", "back to the findings list"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("KEYS") + "\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %-10s %s\n", highlight.Render(r[0]), subtle.Render(r[1])))
	}
	return b.String()
}

func levelStyle(l risk.Level) lipgloss.Style {
	switch l {
	case risk.LevelCritical:
		return danger
	case risk.LevelHigh:
		return lipgloss.NewStyle().Foreground(colorDanger)
	case risk.LevelMedium:
		return warning
	}
	return special
}
