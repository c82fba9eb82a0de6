package patterns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DrSkyle/commitraider/pkg/engine/history"
)

// ErrInvalidPattern is returned when a catalog regex does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// MaxRiskScore caps every finding's score.
const MaxRiskScore = 10.0

// SourceCommitMessage is the only text patterns are evaluated against.
const SourceCommitMessage = "commit_message"

// PatternMatch is one pattern hit within a commit message.
type PatternMatch struct {
	Pattern  string   `json:"pattern"`
	Matched  string   `json:"matched"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	CWE      string   `json:"cwe,omitempty"`
	Source   string   `json:"source"`
	// Context is the message line containing the match.
	Context    string   `json:"context"`
	References []string `json:"references,omitempty"`
}

// VulnerabilityFinding is a commit with at least one pattern match.
type VulnerabilityFinding struct {
	CommitID     string           `json:"commit_id"`
	Message      string           `json:"message"`
	Author       history.Identity `json:"author"`
	Date         time.Time        `json:"date"`
	FilesChanged []string         `json:"files_changed"`
	Matches      []PatternMatch   `json:"matches"`
	RiskScore    float64          `json:"risk_score"`
	References   []string         `json:"references"`
}

// Summary returns the first line of the commit message.
func (f VulnerabilityFinding) Summary() string {
	line, _, _ := strings.Cut(strings.TrimSpace(f.Message), "\n")
	return line
}

// MaxSeverity returns the most serious severity among the matches.
func (f VulnerabilityFinding) MaxSeverity() Severity {
	best := Severity("")
	for _, m := range f.Matches {
		if m.Severity.Weight() > best.Weight() {
			best = m.Severity
		}
	}
	return best
}

type compiledPattern struct {
	Pattern
	re *regexp.Regexp
}

// Engine evaluates a compiled pattern set against commits.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	profile  string
	patterns []compiledPattern
	workers  int
	Logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds parallel commit evaluation. Non-positive means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.Logger = l
	}
}

// New compiles the default catalog for a profile.
func New(profile string, opts ...Option) (*Engine, error) {
	return NewWithCatalog(profile, DefaultCatalog(), opts...)
}

// NewWithCatalog compiles the profile's subset of catalog. Every pattern is
// compiled up front; any failure aborts construction.
func NewWithCatalog(profile string, catalog []Pattern, opts ...Option) (*Engine, error) {
	selected, err := Select(profile, catalog)
	if err != nil {
		return nil, err
	}

	e := &Engine{profile: profile, Logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}

	for _, p := range selected {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p.Name, err)
		}
		e.patterns = append(e.patterns, compiledPattern{Pattern: p, re: re})
	}

	e.Logger.Debug("Compiled patterns", "profile", profile, "count", len(e.patterns))
	return e, nil
}

// Profile returns the profile the engine was built for.
func (e *Engine) Profile() string {
	return e.profile
}

// Patterns returns the active patterns.
func (e *Engine) Patterns() []Pattern {
	out := make([]Pattern, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = p.Pattern
	}
	return out
}

// Match evaluates every active pattern against message.
// A pattern that fails during evaluation counts as not matching.
func (e *Engine) Match(message string) []PatternMatch {
	var matches []PatternMatch
	for _, p := range e.patterns {
		if m, ok := e.evaluate(p, message); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func (e *Engine) evaluate(p compiledPattern, message string) (m PatternMatch, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Debug("Pattern evaluation failed", "pattern", p.Name, "panic", r)
			m, ok = PatternMatch{}, false
		}
	}()

	loc := p.re.FindStringSubmatchIndex(message)
	if loc == nil {
		return PatternMatch{}, false
	}

	m = PatternMatch{
		Pattern:  p.Name,
		Matched:  message[loc[0]:loc[1]],
		Severity: p.Severity,
		Category: p.Category,
		CWE:      p.CWE,
		Source:   SourceCommitMessage,
		Context:  lineAround(message, loc[0]),
	}
	if p.ExtractsReferences {
		m.References = extractReferences(p.re, message)
	}
	return m, true
}

// Analyze evaluates one commit. It reports false when nothing matched.
func (e *Engine) Analyze(c history.CommitRecord) (VulnerabilityFinding, bool) {
	matches := e.Match(c.Message)
	if len(matches) == 0 {
		return VulnerabilityFinding{}, false
	}

	refs := []string{}
	seen := map[string]struct{}{}
	for _, m := range matches {
		for _, r := range m.References {
			if _, dup := seen[r]; !dup {
				seen[r] = struct{}{}
				refs = append(refs, r)
			}
		}
	}

	return VulnerabilityFinding{
		CommitID:     c.ID,
		Message:      c.Message,
		Author:       c.Author,
		Date:         c.AuthoredAt,
		FilesChanged: c.FilesChanged,
		Matches:      matches,
		RiskScore:    Score(matches, len(c.FilesChanged)),
		References:   refs,
	}, true
}

// Scan evaluates every commit in parallel and returns findings in commit order.
func (e *Engine) Scan(ctx context.Context, commits []history.CommitRecord) ([]VulnerabilityFinding, error) {
	slots := make([]*VulnerabilityFinding, len(commits))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range commits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if f, ok := e.Analyze(commits[i]); ok {
				slots[i] = &f
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pattern scan: %w", err)
	}

	findings := []VulnerabilityFinding{}
	for _, f := range slots {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings, nil
}

// Score computes min(10, Σweights × sqrt(filesChanged) × m), where m is 2
// when a CVE reference matched and 1 otherwise.
func Score(matches []PatternMatch, filesChanged int) float64 {
	base := 0.0
	multiplier := 1.0
	for _, m := range matches {
		base += m.Severity.Weight()
		if len(m.References) > 0 {
			multiplier = 2.0
		}
	}
	return math.Min(MaxRiskScore, base*math.Sqrt(float64(filesChanged))*multiplier)
}

func extractReferences(re *regexp.Regexp, message string) []string {
	var refs []string
	for _, sub := range re.FindAllStringSubmatch(message, -1) {
		if len(sub) < 2 {
			continue
		}
		if ref := normalizeCVE(sub[1]); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// normalizeCVE turns "2021-1234", "2021 1234" or "20211234" into "CVE-2021-1234".
func normalizeCVE(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) < 8 {
		return ""
	}
	return "CVE-" + digits[:4] + "-" + digits[4:]
}

func lineAround(message string, at int) string {
	start := strings.LastIndexByte(message[:at], '\n') + 1
	end := strings.IndexByte(message[at:], '\n')
	if end < 0 {
		return strings.TrimSpace(message[start:])
	}
	return strings.TrimSpace(message[start : at+end])
}
