package commands

import (
	"context"
	"fmt"

	"github.com/DrSkyle/commitraider/pkg/engine/report"
	"github.com/DrSkyle/commitraider/pkg/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var showHeadless bool

var showCmd = &cobra.Command{
	Use:   "show REPORT",
	Short: "Browse a saved JSON report",
	Long: `Opens a report written by scan (local path or s3://bucket/key) in the
findings browser, or prints its summary with --headless.

Example:
  commitraider show report_commit_raider.json
  commitraider show --headless s3://audits/app/report`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rep, err := report.Load(ctx, args[0])
		if err != nil {
			return err
		}

		if showHeadless || !interactive() {
			printSummary(cmd.OutOrStdout(), rep)
			return nil
		}
		program := tea.NewProgram(tui.NewReportModel(rep), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err = program.Run()
		return err
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports [DIR|s3://bucket/prefix]",
	Short: "List saved reports",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		target := "."
		if len(args) == 1 {
			target = args[0]
		}

		found, err := report.List(ctx, target)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintf(out, "No reports under %s\n", target)
			return nil
		}
		for _, loc := range found {
			fmt.Fprintln(out, loc)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(reportsCmd)
	showCmd.Flags().BoolVar(&showHeadless, "headless", false, "Print the summary instead of opening the browser")
}
