package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var patternsProfile string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the security pattern catalog",
	Long: `Lists the patterns a profile selects, with severity, category and CWE.

Example:
  commitraider patterns
  commitraider patterns --profile all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, err := patterns.Select(patternsProfile, patterns.DefaultCatalog())
		if err != nil {
			return err
		}
		printPatterns(cmd.OutOrStdout(), patternsProfile, selected)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.Flags().StringVar(&patternsProfile, "profile", config.DefaultPatternProfile,
		"Pattern profile ("+strings.Join(patterns.ProfileNames(), "|")+")")
	_ = patternsCmd.RegisterFlagCompletionFunc("profile", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return patterns.ProfileNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

func printPatterns(w io.Writer, profile string, selected []patterns.Pattern) {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, title.Render(fmt.Sprintf("PROFILE %s (%d patterns)", profile, len(selected))))
	fmt.Fprintf(w, "  %-26s %-9s %-30s %s\n", "NAME", "SEVERITY", "CATEGORY", "CWE")
	for _, p := range selected {
		fmt.Fprintf(w, "  %-26s %-9s %-30s %s\n", p.Name, p.Severity, p.Category, p.CWE)
		if p.Description != "" {
			fmt.Fprintln(w, dim.Render("      "+p.Description))
		}
	}
}
