package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/engine"
	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	"github.com/DrSkyle/commitraider/pkg/gitrepo"
	"github.com/DrSkyle/commitraider/pkg/gitrepo/gitrepotest"
)

var (
	alice = gitrepotest.Author{Name: "alice", Email: "alice@example.com"}
	bob   = gitrepotest.Author{Name: "bob", Email: "bob@example.com"}
)

type tableProbe map[string][]string

func (p tableProbe) ChangedFiles(_ context.Context, req gitrepo.ProbeRequest) ([]gitrepo.FileChange, error) {
	var out []gitrepo.FileChange
	for _, f := range p[req.CommitID] {
		out = append(out, gitrepo.FileChange{Path: f, Added: 1})
	}
	return out, nil
}

type signalFunc func() (risk.CodeSignals, error)

func (f signalFunc) CodeSignals(context.Context, string) (risk.CodeSignals, error) {
	return f()
}

type scenario struct {
	dir   string
	probe tableProbe
	a, b  string
	c     string
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	fx := gitrepotest.New(t)
	a := fx.Commit("fix buffer overflow", alice, map[string]string{"file1.txt": "a"})
	b := fx.Commit("routine update", bob, map[string]string{"file2.txt": "b"})
	c := fx.Commit("CVE-2022-0001 auth bypass", alice, map[string]string{
		"file1.txt": "c", "file3.txt": "c", "file4.txt": "c", "file5.txt": "c",
	})
	return scenario{
		dir: fx.Dir,
		a:   a, b: b, c: c,
		probe: tableProbe{
			a: {"file1.txt"},
			b: {"file2.txt"},
			c: {"file1.txt", "file3.txt", "file4.txt", "file5.txt"},
		},
	}
}

func testConfig(profile string) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Scan.PatternProfile = profile
	cfg.Headless = true
	cfg.SkipTelemetry = true
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func newEngine(t *testing.T, cfg engine.Config, opts ...engine.Option) *engine.Engine {
	t.Helper()
	all := append([]engine.Option{
		engine.WithConfig(cfg),
		engine.WithClock(func() time.Time { return gitrepotest.Epoch.Add(48 * time.Hour) }),
	}, opts...)
	eng, err := engine.New(context.Background(), all...)
	require.NoError(t, err)
	return eng
}

func TestRunScenario(t *testing.T) {
	sc := newScenario(t)
	eng := newEngine(t, testConfig("all"), engine.WithProbe(sc.probe))

	res, err := eng.Run(context.Background(), sc.dir)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.TotalCommits)
	assert.Equal(t, 2, res.Stats.Files["file1.txt"].TotalChanges)

	require.Len(t, res.Findings, 2)
	byID := map[string]patterns.VulnerabilityFinding{}
	for _, f := range res.Findings {
		byID[f.CommitID] = f
	}
	assert.Contains(t, byID, sc.a)
	assert.NotContains(t, byID, sc.b)
	require.Contains(t, byID, sc.c)
	assert.Equal(t, 10.0, byID[sc.c].RiskScore)
	assert.Equal(t, []string{"CVE-2022-0001"}, byID[sc.c].References)

	assert.GreaterOrEqual(t, res.Assessment.Score, 0.0)
	assert.LessOrEqual(t, res.Assessment.Score, risk.MaxScore)
	assert.Empty(t, res.Violations)
}

func TestRunIsDeterministic(t *testing.T) {
	sc := newScenario(t)
	eng := newEngine(t, testConfig("all"), engine.WithProbe(sc.probe))

	first, err := eng.Run(context.Background(), sc.dir)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), sc.dir)
	require.NoError(t, err)

	assert.Equal(t, first.Findings, second.Findings)
	assert.Equal(t, first.Assessment, second.Assessment)
	assert.Equal(t, first.Stats.HighChurnFiles, second.Stats.HighChurnFiles)
}

func TestNewRejectsBadSettings(t *testing.T) {
	t.Run("unknown profile", func(t *testing.T) {
		_, err := engine.New(context.Background(), engine.WithConfig(testConfig("nonsense")))
		assert.ErrorIs(t, err, patterns.ErrUnknownProfile)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig("vuln")
		cfg.Scan.BatchSize = 0
		_, err := engine.New(context.Background(), engine.WithConfig(cfg))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("negative risk weight", func(t *testing.T) {
		cfg := testConfig("vuln")
		cfg.Weights.SingleAuthorWeight = -20
		_, err := engine.New(context.Background(), engine.WithConfig(cfg))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("missing rules file", func(t *testing.T) {
		cfg := testConfig("vuln")
		cfg.RulesFile = filepath.Join(t.TempDir(), "absent.yaml")
		_, err := engine.New(context.Background(), engine.WithConfig(cfg))
		assert.Error(t, err)
	})

	t.Run("rule does not compile", func(t *testing.T) {
		cfg := testConfig("vuln")
		cfg.RulesFile = writeRules(t, "rules:\n  - id: broken\n    condition: \"risk_score >\"\n")
		_, err := engine.New(context.Background(), engine.WithConfig(cfg))
		assert.Error(t, err)
	})
}

func TestRunNotARepository(t *testing.T) {
	eng := newEngine(t, testConfig("vuln"))
	_, err := eng.Run(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, gitrepo.ErrNotARepository)
}

func TestRunStrictPolicy(t *testing.T) {
	rules := writeRules(t, `rules:
  - id: max-risk
    description: Commit scored at the ceiling
    condition: "risk_score >= 10.0"
    action: block
  - id: cve-mentioned
    condition: "size(references) > 0"
    action: warn
`)

	t.Run("strict fails", func(t *testing.T) {
		sc := newScenario(t)
		cfg := testConfig("all")
		cfg.RulesFile = rules
		cfg.StrictMode = true
		eng := newEngine(t, cfg, engine.WithProbe(sc.probe))

		res, err := eng.Run(context.Background(), sc.dir)
		assert.ErrorIs(t, err, engine.ErrPolicyViolation)
		require.NotNil(t, res)
		require.Len(t, res.Violations, 2)
		for _, v := range res.Violations {
			assert.Equal(t, sc.c, v.CommitID)
		}
	})

	t.Run("lenient reports", func(t *testing.T) {
		sc := newScenario(t)
		cfg := testConfig("all")
		cfg.RulesFile = rules
		eng := newEngine(t, cfg, engine.WithProbe(sc.probe))

		res, err := eng.Run(context.Background(), sc.dir)
		require.NoError(t, err)
		assert.Len(t, res.Violations, 2)
	})
}

func TestRunCodeSignals(t *testing.T) {
	sc := newScenario(t)

	base := newEngine(t, testConfig("all"), engine.WithProbe(sc.probe))
	plain, err := base.Run(context.Background(), sc.dir)
	require.NoError(t, err)

	withCode := newEngine(t, testConfig("all"), engine.WithProbe(sc.probe),
		engine.WithCodeSignals(signalFunc(func() (risk.CodeSignals, error) {
			return risk.CodeSignals{TotalFiles: 10, HighComplexityFiles: 5, OutdatedDependencies: 3}, nil
		})))
	scored, err := withCode.Run(context.Background(), sc.dir)
	require.NoError(t, err)
	assert.Greater(t, scored.Assessment.Code, plain.Assessment.Code)

	failing := newEngine(t, testConfig("all"), engine.WithProbe(sc.probe),
		engine.WithCodeSignals(signalFunc(func() (risk.CodeSignals, error) {
			return risk.CodeSignals{}, errors.New("analyzer offline")
		})))
	degraded, err := failing.Run(context.Background(), sc.dir)
	require.NoError(t, err)
	assert.Equal(t, plain.Assessment, degraded.Assessment)
}

func TestRunRecoversPanic(t *testing.T) {
	sc := newScenario(t)
	eng := newEngine(t, testConfig("all"), engine.WithProbe(sc.probe),
		engine.WithCodeSignals(signalFunc(func() (risk.CodeSignals, error) {
			panic("analyzer exploded")
		})))

	res, err := eng.Run(context.Background(), sc.dir)
	assert.ErrorIs(t, err, engine.ErrScanPanicked)
	assert.Nil(t, res)
}

func TestRunReportsProgress(t *testing.T) {
	sc := newScenario(t)
	cfg := testConfig("all")
	cfg.Scan.BatchSize = 1

	var updates []history.Progress
	eng := newEngine(t, cfg, engine.WithProbe(sc.probe),
		engine.WithProgress(func(p history.Progress) { updates = append(updates, p) }))

	_, err := eng.Run(context.Background(), sc.dir)
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, 3, updates[2].Done)
	assert.Equal(t, 3, updates[2].Total)
}

func TestWithConcurrency(t *testing.T) {
	eng := newEngine(t, testConfig("vuln"), engine.WithConcurrency(7))
	assert.Equal(t, 7, eng.Config().Scan.ConcurrencyLimit)
	assert.Equal(t, "vuln", eng.Patterns().Profile())
}

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
