package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. COMMITRAIDER_SCAN_BATCH_SIZE.
const EnvPrefix = "COMMITRAIDER"

var (
	cfgFile      string
	verbose      bool
	jsonLogs     bool
	otelEndpoint string
)

var rootCmd = &cobra.Command{
	Use:   "commitraider",
	Short: "Git history security risk scanner",
	Long: `CommitRaider - Git History Risk Analysis

Walks commit history, flags security-relevant commits and scores repository risk.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Run: nil (Forces help output).
	Run: nil,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ce *exitError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.commitraider.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs on stderr")
	rootCmd.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint for traces")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})

	registerDefaults(viper.GetViper())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".commitraider.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	bindEnv(viper.GetViper())
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "[WARN] Could not read config %s: %v\n", cfgFile, err)
	}
}

// bindEnv maps nested keys onto COMMITRAIDER_ variables.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// registerDefaults seeds v with the stock scan settings and risk weights so
// that file and environment overrides resolve against known keys.
func registerDefaults(v *viper.Viper) {
	s := config.DefaultScanConfig()
	v.SetDefault("scan.pattern_profile", s.PatternProfile)
	v.SetDefault("scan.stale_threshold_days", s.StaleThresholdDays)
	v.SetDefault("scan.commit_cap", s.CommitCap)
	v.SetDefault("scan.concurrency_limit", s.ConcurrencyLimit)
	v.SetDefault("scan.batch_size", s.BatchSize)
	v.SetDefault("scan.probe_timeout_seconds", s.ProbeTimeoutSeconds)
	v.SetDefault("scan.max_files_per_commit", s.MaxFilesPerCommit)
	v.SetDefault("scan.large_repo_threshold", s.LargeRepoThreshold)
	v.SetDefault("scan.pattern_workers", s.PatternWorkers)

	w := config.DefaultRiskWeights()
	v.SetDefault("risk.single_author_weight", w.SingleAuthorWeight)
	v.SetDefault("risk.stale_file_weight", w.StaleFileWeight)
	v.SetDefault("risk.churn_weight", w.ChurnWeight)
	v.SetDefault("risk.complexity_weight", w.ComplexityWeight)
	v.SetDefault("risk.outdated_dependency_step", w.OutdatedDependencyStep)
	v.SetDefault("risk.outdated_dependency_cap", w.OutdatedDependencyCap)
	v.SetDefault("risk.vulnerable_dependency_weight", w.VulnerableDependencyWeight)
	v.SetDefault("risk.history_cap", w.HistoryCap)
	v.SetDefault("risk.code_cap", w.CodeCap)
	v.SetDefault("risk.vulnerability_cap", w.VulnerabilityCap)
}

// settings is the merged configuration tree.
type settings struct {
	Scan config.ScanConfig  `mapstructure:"scan"`
	Risk config.RiskWeights `mapstructure:"risk"`
}

// loadSettings resolves the merged scan settings and risk weights from v.
func loadSettings(v *viper.Viper) (config.ScanConfig, config.RiskWeights, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return s.Scan, s.Risk, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	if err := s.Scan.Validate(); err != nil {
		return s.Scan, s.Risk, err
	}
	if err := s.Risk.Validate(); err != nil {
		return s.Scan, s.Risk, err
	}
	return s.Scan, s.Risk, nil
}

func renderHelp(w io.Writer, cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s %s", strings.ToUpper(version.AppName), version.Current)))
	fmt.Fprintln(w, "Git history security risk scanner.")

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w, "")
	}

	if cmd == rootCmd {
		fmt.Fprintln(w, titleStyle.Render("EXAMPLES"))
		fmt.Fprintln(w, "  commitraider scan --repo .                         # Interactive browser")
		fmt.Fprintln(w, "  commitraider scan --headless --profile crypto ...  # CI/CD Mode (No TUI)")
		fmt.Fprintln(w, "  commitraider patterns --profile web")
		fmt.Fprintln(w, "  commitraider show report_commit_raider.json       # Reopen a saved report")
		fmt.Fprintln(w, "")
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(output))
	})
	fmt.Fprintln(w, "")
}
