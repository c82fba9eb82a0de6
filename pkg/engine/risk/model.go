// Package risk combines history statistics, code signals and pattern
// findings into one repository risk score.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
)

// MaxScore is the ceiling of the combined score.
const MaxScore = 10.0

// Level is a coarse label for a combined score.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// LevelFor maps a score onto a level.
func LevelFor(score float64) Level {
	switch {
	case score >= 8:
		return LevelCritical
	case score >= 6:
		return LevelHigh
	case score >= 3:
		return LevelMedium
	default:
		return LevelLow
	}
}

// CodeSignals are the source-level inputs produced outside the history scan
// (complexity scoring, dependency audits). The zero value contributes nothing.
type CodeSignals struct {
	TotalFiles             int `json:"total_files"`
	HighComplexityFiles    int `json:"high_complexity_files"`
	OutdatedDependencies   int `json:"outdated_dependencies"`
	VulnerableDependencies int `json:"vulnerable_dependencies"`
}

// CodeSignalSource supplies CodeSignals for a repository.
type CodeSignalSource interface {
	CodeSignals(ctx context.Context, repoPath string) (CodeSignals, error)
}

// FileSource reads CodeSignals from a JSON document written by another tool.
type FileSource struct {
	Path string
}

// CodeSignals implements CodeSignalSource.
func (f FileSource) CodeSignals(_ context.Context, _ string) (CodeSignals, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return CodeSignals{}, fmt.Errorf("read code signals: %w", err)
	}
	var s CodeSignals
	if err := json.Unmarshal(data, &s); err != nil {
		return CodeSignals{}, fmt.Errorf("parse code signals %s: %w", f.Path, err)
	}
	return s, nil
}

// Assessment is the combined score with its parts.
type Assessment struct {
	Score         float64 `json:"score"`
	Level         Level   `json:"level"`
	History       float64 `json:"history"`
	Code          float64 `json:"code"`
	Vulnerability float64 `json:"vulnerability"`
}

// Model is the combined risk model.
type Model struct {
	Weights config.RiskWeights
}

// NewModel builds a model from the given weights.
func NewModel(w config.RiskWeights) *Model {
	return &Model{Weights: w}
}

// Assess scores a repository. stats may be nil.
func (m *Model) Assess(stats *history.RepositoryStats, code CodeSignals, findings []patterns.VulnerabilityFinding) Assessment {
	h := m.HistoryScore(stats)
	c := m.CodeScore(code)
	v := m.VulnerabilityScore(findings)
	total := math.Max(0, math.Min(MaxScore, h+c+v))
	return Assessment{
		Score:         total,
		Level:         LevelFor(total),
		History:       h,
		Code:          c,
		Vulnerability: v,
	}
}

// HistoryScore weighs the share of single-author, stale and high-churn files.
func (m *Model) HistoryScore(stats *history.RepositoryStats) float64 {
	if stats == nil || stats.TotalFiles == 0 {
		return 0
	}
	total := float64(stats.TotalFiles)
	w := m.Weights
	score := ratio(len(stats.SingleAuthorFiles), total)*w.SingleAuthorWeight +
		ratio(len(stats.StaleFiles), total)*w.StaleFileWeight +
		ratio(len(stats.HighChurnFiles), total)*w.ChurnWeight
	return math.Min(w.HistoryCap, score)
}

// CodeScore weighs complexity and dependency hygiene.
func (m *Model) CodeScore(s CodeSignals) float64 {
	w := m.Weights
	score := 0.0
	if s.TotalFiles > 0 {
		score += ratio(s.HighComplexityFiles, float64(s.TotalFiles)) * w.ComplexityWeight
	}
	score += math.Min(float64(s.OutdatedDependencies)*w.OutdatedDependencyStep, w.OutdatedDependencyCap)
	score += float64(s.VulnerableDependencies) * w.VulnerableDependencyWeight
	return math.Min(w.CodeCap, score)
}

// VulnerabilityScore sums findings at a tenth of their score each.
func (m *Model) VulnerabilityScore(findings []patterns.VulnerabilityFinding) float64 {
	sum := 0.0
	for _, f := range findings {
		sum += f.RiskScore / patterns.MaxRiskScore
	}
	return math.Min(m.Weights.VulnerabilityCap, sum)
}

func ratio(n int, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / total
}
