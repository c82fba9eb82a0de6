package commands

import (
	"fmt"
	"strings"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type profileModel struct {
	choices  []string
	counts   map[string]int
	cursor   int
	selected string
}

func initialProfileModel() profileModel {
	m := profileModel{
		choices: patterns.ProfileNames(),
		counts:  map[string]int{},
	}
	catalog := patterns.DefaultCatalog()
	for i, name := range m.choices {
		if sel, err := patterns.Select(name, catalog); err == nil {
			m.counts[name] = len(sel)
		}
		if name == config.DefaultPatternProfile {
			m.cursor = i
		}
	}
	return m
}

func (m profileModel) Init() tea.Cmd {
	return nil
}

func (m profileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.selected = m.choices[m.cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m profileModel) View() string {
	s := strings.Builder{}
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("? Which pattern profile do you want to scan with?"))
	s.WriteString("\n\n")

	for i, choice := range m.choices {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}
		s.WriteString(fmt.Sprintf("%s %-14s %2d patterns\n", cursor, choice, m.counts[choice]))
	}

	s.WriteString("\n(Press [enter] to confirm, [q] to keep the default)\n")
	return s.String()
}

// Choice returns the confirmed profile, or the default when none was picked.
func (m profileModel) Choice() string {
	if m.selected == "" {
		return config.DefaultPatternProfile
	}
	return m.selected
}

// PromptForProfile asks for a pattern profile interactively.
func PromptForProfile() (string, error) {
	p := tea.NewProgram(initialProfileModel())
	m, err := p.Run()
	if err != nil {
		return "", err
	}

	if pm, ok := m.(profileModel); ok {
		return pm.Choice(), nil
	}
	return config.DefaultPatternProfile, nil
}
