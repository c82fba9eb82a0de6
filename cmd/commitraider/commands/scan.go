package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/DrSkyle/commitraider/pkg/engine"
	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/notifier"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/report"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	"github.com/DrSkyle/commitraider/pkg/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// exitPolicy is the exit code for blocking policy violations under --strict.
const exitPolicy = 2

type scanOptions struct {
	repo         string
	output       string
	format       string
	cveOnly      bool
	fullStats    bool
	rulesFile    string
	strict       bool
	codeSignals  string
	slackWebhook string
	slackChannel string
	headless     bool
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a repository's history (TUI)",
	Long: `Walks the commit history of a git repository, matches commit messages
against the security pattern catalog and writes a risk report.

Use --headless for CI/CD pipelines.

Example:
  commitraider scan --repo .
  commitraider scan --headless --repo ./app --profile crypto --output s3://audits/app`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := scanOpts
		if !opts.headless && !interactive() {
			fmt.Fprintln(cmd.ErrOrStderr(), "[INFO] No terminal detected, running headless.")
			opts.headless = true
		}
		if !opts.headless && !profileConfigured(cmd) {
			if choice, err := PromptForProfile(); err == nil {
				viper.Set("scan.pattern_profile", choice)
			}
		}
		return runScan(cmd, opts)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	f := scanCmd.Flags()
	f.StringVar(&scanOpts.repo, "repo", ".", "Path to the git repository")
	f.StringVarP(&scanOpts.output, "output", "o", report.DefaultOutputName, "Report path or s3://bucket/key")
	f.StringVar(&scanOpts.format, "format", string(report.FormatJSON), "Report format (json|csv)")
	f.BoolVar(&scanOpts.cveOnly, "cve-only", false, "Only report commits referencing a CVE")
	f.BoolVar(&scanOpts.fullStats, "stats", false, "Include full history statistics in the report")
	f.StringVar(&scanOpts.rulesFile, "rules", "", "CEL policy rules file (YAML)")
	f.BoolVar(&scanOpts.strict, "strict", false, "Exit non-zero on blocking policy violations")
	f.StringVar(&scanOpts.codeSignals, "code-signals", "", "JSON file with complexity and dependency signals")
	f.StringVar(&scanOpts.slackWebhook, "slack-webhook", "", "Slack Webhook URL for Reporting")
	f.StringVar(&scanOpts.slackChannel, "slack-channel", "", "Override Slack Channel")
	f.BoolVar(&scanOpts.headless, "headless", false, "Run without TUI (for CI/CD)")

	f.String("profile", "", "Pattern profile ("+strings.Join(patterns.ProfileNames(), "|")+")")
	f.Int("stale-days", 0, "Days without change before a file is stale")
	f.Int("max-commits", 0, "Process at most N recent commits (0: no cap)")
	f.Int("max-workers", 0, "Concurrent changed-file probes")
	f.Int("threads", 0, "Pattern matching workers (0: auto)")

	bind := map[string]string{
		"profile":     "scan.pattern_profile",
		"stale-days":  "scan.stale_threshold_days",
		"max-commits": "scan.commit_cap",
		"max-workers": "scan.concurrency_limit",
		"threads":     "scan.pattern_workers",
	}
	for flag, key := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	_ = scanCmd.RegisterFlagCompletionFunc("profile", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return patterns.ProfileNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = scanCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(report.FormatJSON), string(report.FormatCSV)}, cobra.ShellCompDirectiveNoFileComp
	})
}

// profileConfigured reports whether a profile was chosen by flag, config file or environment.
func profileConfigured(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("profile") ||
		viper.InConfig("scan.pattern_profile") ||
		os.Getenv(EnvPrefix+"_SCAN_PATTERN_PROFILE") != ""
}

// interactive reports whether stdout is attached to a terminal.
func interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newLogger(w io.Writer, asJSON bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := engine.RedactingHandlerOptions(level)
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runScan(cmd *cobra.Command, opts scanOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	scanCfg, weights, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	// The terminal browser owns the screen; logs would corrupt it.
	logOut := cmd.ErrOrStderr()
	if !opts.headless {
		logOut = io.Discard
	}
	scanID := uuid.NewString()
	logger := newLogger(logOut, jsonLogs).With("scan_id", scanID)

	cfg := engine.Config{
		Scan:         scanCfg,
		Weights:      weights,
		RulesFile:    opts.rulesFile,
		Headless:     opts.headless,
		Verbose:      verbose,
		JsonLogs:     jsonLogs,
		StrictMode:   opts.strict,
		ScanID:       scanID,
		OtelEndpoint: otelEndpoint,
		Logger:       logger,
	}
	engineOpts := []engine.Option{engine.WithConfig(cfg)}
	if opts.codeSignals != "" {
		engineOpts = append(engineOpts, engine.WithCodeSignals(risk.FileSource{Path: opts.codeSignals}))
	}

	start := time.Now()
	var (
		res    *engine.Result
		runErr error
		rep    *report.Report
	)
	build := func() {
		if res != nil {
			rep = report.Build(report.Input{
				Stats:      res.Stats,
				Findings:   res.Findings,
				Assessment: res.Assessment,
				Violations: res.Violations,
			}, report.Options{
				CVEOnly:        opts.cveOnly,
				IncludeHistory: opts.fullStats,
				GeneratedAt:    time.Now(),
				ScanID:         scanID,
			})
		}
	}

	if opts.headless {
		eng, err := engine.New(ctx, engineOpts...)
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())
		res, runErr = eng.Run(ctx, opts.repo)
		build()
	} else {
		scanCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		program := tea.NewProgram(tui.NewModel(opts.repo), tea.WithAltScreen(), tea.WithContext(scanCtx))
		engineOpts = append(engineOpts, engine.WithProgress(func(p history.Progress) {
			program.Send(tui.ProgressMsg(p))
		}))
		eng, err := engine.New(ctx, engineOpts...)
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())

		done := make(chan struct{})
		go func() {
			defer close(done)
			res, runErr = eng.Run(scanCtx, opts.repo)
			build()
			program.Send(tui.DoneMsg{Report: rep, Err: runErr})
		}()

		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Warn("Terminal UI failed", "error", err)
		}
		cancel()
		<-done
		tui.PrintExitSummary(cmd.OutOrStdout(), start, rep)
	}

	if rep == nil {
		return runErr
	}

	loc, err := report.Save(ctx, rep, opts.output, format)
	if err != nil {
		return err
	}

	if opts.headless {
		printSummary(cmd.OutOrStdout(), rep)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n[SUCCESS] Report written: %s\n", loc)

	if opts.slackWebhook != "" {
		slack := notifier.NewSlackClient(opts.slackWebhook, opts.slackChannel)
		if err := slack.SendScanSummary(ctx, rep.Summary, rep.Findings); err != nil {
			logger.Warn("Slack notification failed", "error", err)
		}
	}

	if errors.Is(runErr, engine.ErrPolicyViolation) {
		return &exitError{code: exitPolicy, err: runErr}
	}
	return runErr
}

func printSummary(w io.Writer, r *report.Report) {
	s := r.Summary
	fmt.Fprintf(w, "\n[ Scan Complete ] %s (%s)\n", s.Repository, s.Host)
	fmt.Fprintln(w, "-------------------------------------------------------------")
	fmt.Fprintf(w, "Commits: %d   Files: %d   Authors: %d\n", s.TotalCommits, s.TotalFiles, s.TotalAuthors)
	if s.Sampled {
		fmt.Fprintln(w, "[WARN] Large history: only the most recent commits were processed.")
	}
	fmt.Fprintf(w, "Findings: %d   CVEs: %d   Risk: %.1f/10 (%s)\n", s.Findings, s.CVEs, s.RiskScore, s.RiskLevel)
	for _, sev := range []patterns.Severity{patterns.Critical, patterns.High, patterns.Medium, patterns.Low, patterns.Info} {
		if n := s.BySeverity[string(sev)]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", sev, n)
		}
	}
	if s.Violations > 0 {
		fmt.Fprintf(w, "Policy violations: %d (%d blocking)\n", s.Violations, s.Blocking)
	}
	fmt.Fprintln(w, "-------------------------------------------------------------")

	top := r.Findings
	if len(top) > 5 {
		top = top[:5]
	}
	for _, f := range top {
		fmt.Fprintf(w, " > %.7s %-8s %4.1f  %s\n", f.CommitID, f.Severity, f.RiskScore, f.Summary())
	}
}
