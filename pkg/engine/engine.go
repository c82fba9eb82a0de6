package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/policy"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	"github.com/DrSkyle/commitraider/pkg/gitrepo"
	"github.com/DrSkyle/commitraider/pkg/telemetry"
	"github.com/DrSkyle/commitraider/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPolicyViolation indicates a blocking policy rule matched during a strict scan.
var ErrPolicyViolation = errors.New("blocking policy violation")

// ErrScanPanicked is returned when a scan stage panics.
var ErrScanPanicked = errors.New("scan aborted by panic")

// Config holds engine settings.
type Config struct {
	Scan    config.ScanConfig
	Weights config.RiskWeights

	RulesFile string
	Headless  bool
	Verbose   bool
	JsonLogs  bool

	// StrictMode fails the scan on blocking policy violations.
	StrictMode bool

	// ScanID tags traces of this run.
	ScanID string

	// Telemetry config.
	OtelEndpoint  string // "http://localhost:4318" or via env
	SkipTelemetry bool   // Set true if embedding in an app that already has OTEL

	Logger *slog.Logger
}

// DefaultConfig returns the stock engine settings.
func DefaultConfig() Config {
	return Config{
		Scan:    config.DefaultScanConfig(),
		Weights: config.DefaultRiskWeights(),
	}
}

// Result is everything a scan produced.
type Result struct {
	Stats      *history.RepositoryStats
	Findings   []patterns.VulnerabilityFinding
	Assessment risk.Assessment
	Violations []policy.Violation
}

// Engine is the runtime core.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	config Config

	probe       gitrepo.ChangedFileProbe
	patterns    *patterns.Engine
	policy      *policy.CELEngine
	model       *risk.Model
	codeSignals risk.CodeSignalSource
	metrics     *telemetry.Instruments
	progress    func(history.Progress)
	now         func() time.Time

	shutdown func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine. Configuration, pattern and rule errors abort here.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("commitraider/engine"),
		config: DefaultConfig(),
		probe:  gitrepo.NewGitProbe(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.config.Scan.Validate(); err != nil {
		return nil, err
	}
	if err := e.config.Weights.Validate(); err != nil {
		return nil, err
	}

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, telemetry.Options{
			Endpoint: e.config.OtelEndpoint,
			ScanID:   e.config.ScanID,
			Profile:  e.config.Scan.PatternProfile,
		})
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}
	// Instruments resolve against the global provider, so they are built after Init.
	metrics, err := telemetry.NewInstruments()
	if err != nil {
		e.Logger.Warn("Metrics unavailable", "error", err)
	}
	e.metrics = metrics

	pe, err := patterns.New(e.config.Scan.PatternProfile,
		patterns.WithWorkers(e.config.Scan.PatternWorkers),
		patterns.WithLogger(e.Logger),
	)
	if err != nil {
		return nil, err
	}
	e.patterns = pe
	e.model = risk.NewModel(e.config.Weights)

	if e.config.RulesFile != "" {
		rules, err := policy.LoadRules(e.config.RulesFile)
		if err != nil {
			return nil, err
		}
		cel, err := policy.NewCELEngine()
		if err != nil {
			return nil, err
		}
		cel.Logger = e.Logger
		if err := cel.Compile(rules); err != nil {
			return nil, fmt.Errorf("compile rules %s: %w", e.config.RulesFile, err)
		}
		e.policy = cel
	}

	return e, nil
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithConcurrency sets the probe permit count.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.config.Scan.ConcurrencyLimit = n
		}
	}
}

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// WithProbe replaces the git subprocess probe.
func WithProbe(p gitrepo.ChangedFileProbe) Option {
	return func(e *Engine) {
		e.probe = p
	}
}

// WithCodeSignals feeds source-level signals into the risk model.
func WithCodeSignals(src risk.CodeSignalSource) Option {
	return func(e *Engine) {
		e.codeSignals = src
	}
}

// WithProgress registers a callback invoked after every history batch.
func WithProgress(fn func(history.Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithClock overrides the reference time used for staleness.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Patterns returns the compiled pattern engine.
func (e *Engine) Patterns() *patterns.Engine {
	return e.patterns
}

// Run scans the repository at repoPath.
func (e *Engine) Run(ctx context.Context, repoPath string) (res *Result, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.recoverPanic(ctx, r)
			res, err = nil, fmt.Errorf("%w: %v", ErrScanPanicked, r)
		}
	}()

	if !e.config.Headless && !e.config.JsonLogs {
		fmt.Fprintf(os.Stderr, "%s %s [%s]\n", version.AppName, version.Current, version.License)
	}

	e.Logger.Info("Starting CommitRaider scan",
		"repo", repoPath,
		"profile", e.patterns.Profile(),
		"concurrency", e.config.Scan.ConcurrencyLimit,
	)

	repo, err := gitrepo.Open(repoPath)
	if err != nil {
		span.SetStatus(codes.Error, "open repository")
		return nil, err
	}

	historyOpts := []history.Option{
		history.WithLogger(e.Logger),
		history.WithInstruments(e.metrics),
	}
	if e.progress != nil {
		historyOpts = append(historyOpts, history.WithProgress(e.progress))
	}
	stats, err := history.Analyze(ctx, repo, e.probe, e.config.Scan, e.now(), historyOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history extraction")
		return nil, err
	}

	findings, err := e.patterns.Scan(ctx, stats.Commits)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordFindings(ctx, e.patterns.Profile(), len(findings))

	var signals risk.CodeSignals
	if e.codeSignals != nil {
		signals, err = e.codeSignals.CodeSignals(ctx, repo.Path())
		if err != nil {
			e.Logger.Warn("Code signals unavailable, scoring history only", "error", err)
			signals = risk.CodeSignals{}
		}
	}
	assessment := e.model.Assess(stats, signals, findings)

	violations := []policy.Violation{}
	if e.policy != nil {
		violations, err = e.policy.Check(ctx, findings)
		if err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("scan.commits", stats.TotalCommits),
		attribute.Bool("scan.sampled", stats.Sampled),
		attribute.Int("scan.findings", len(findings)),
		attribute.Float64("scan.risk_score", assessment.Score),
	)
	e.Logger.Info("Scan complete",
		"commits", stats.TotalCommits,
		"files", len(stats.Files),
		"findings", len(findings),
		"risk_score", assessment.Score,
		"risk_level", string(assessment.Level),
	)

	res = &Result{
		Stats:      stats,
		Findings:   findings,
		Assessment: assessment,
		Violations: violations,
	}

	if policy.HasBlocking(violations) {
		span.SetAttributes(attribute.Bool("scan.blocked", true))
		if e.config.StrictMode {
			e.Logger.Error("Strict Mode: failing due to blocking policy violations", "violations", len(violations))
			return res, ErrPolicyViolation
		}
		e.Logger.Warn("Blocking policy violations found (StrictMode=false)", "violations", len(violations))
	}

	return res, nil
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

// recoverPanic records a recovered panic on its own span.
func (e *Engine) recoverPanic(ctx context.Context, r any) {
	tr := otel.Tracer("commitraider/engine")
	_, span := tr.Start(ctx, "CriticalPanic")

	stack := debug.Stack()

	span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
	span.SetStatus(codes.Error, "CRITICAL FAILURE")
	span.SetAttributes(
		attribute.String("crash.stack", string(stack)),
		attribute.String("crash.reason", fmt.Sprintf("%v", r)),
	)
	span.End()

	e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "access_key": true, "token": true, "webhook": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"refresh_token": true, "certificate": true, "signature": true,
		"credential": true, "ssh_key": true, "connection_string": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}

// RedactingHandlerOptions returns handler options that scrub sensitive keys.
func RedactingHandlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: redactSensitiveData}
}
