package config

import (
	"fmt"
	"strings"
)

// RiskWeights parameterises the combined repository risk model.
type RiskWeights struct {
	// SingleAuthorWeight scales the share of files owned by one author.
	SingleAuthorWeight float64 `mapstructure:"single_author_weight"`
	// StaleFileWeight scales the share of stale files.
	StaleFileWeight float64 `mapstructure:"stale_file_weight"`
	// ChurnWeight scales the share of high-churn files.
	ChurnWeight float64 `mapstructure:"churn_weight"`
	// ComplexityWeight scales the share of high-complexity files.
	ComplexityWeight float64 `mapstructure:"complexity_weight"`
	// OutdatedDependencyStep is added per outdated dependency, up to OutdatedDependencyCap.
	OutdatedDependencyStep float64 `mapstructure:"outdated_dependency_step"`
	OutdatedDependencyCap  float64 `mapstructure:"outdated_dependency_cap"`
	// VulnerableDependencyWeight is added per vulnerable dependency.
	VulnerableDependencyWeight float64 `mapstructure:"vulnerable_dependency_weight"`

	HistoryCap       float64 `mapstructure:"history_cap"`
	CodeCap          float64 `mapstructure:"code_cap"`
	VulnerabilityCap float64 `mapstructure:"vulnerability_cap"`
}

// DefaultRiskWeights returns the stock risk model parameters.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		SingleAuthorWeight:         2.0,
		StaleFileWeight:            1.5,
		ChurnWeight:                1.0,
		ComplexityWeight:           2.0,
		OutdatedDependencyStep:     0.1,
		OutdatedDependencyCap:      1.0,
		VulnerableDependencyWeight: 0.5,
		HistoryCap:                 4.5,
		CodeCap:                    3.0,
		VulnerabilityCap:           5.0,
	}
}

// Validate rejects negative weights and non-positive caps.
func (w RiskWeights) Validate() error {
	var problems []string
	weights := []struct {
		name  string
		value float64
	}{
		{"single_author_weight", w.SingleAuthorWeight},
		{"stale_file_weight", w.StaleFileWeight},
		{"churn_weight", w.ChurnWeight},
		{"complexity_weight", w.ComplexityWeight},
		{"outdated_dependency_step", w.OutdatedDependencyStep},
		{"vulnerable_dependency_weight", w.VulnerableDependencyWeight},
	}
	for _, p := range weights {
		if p.value < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative, got %g", p.name, p.value))
		}
	}
	caps := []struct {
		name  string
		value float64
	}{
		{"outdated_dependency_cap", w.OutdatedDependencyCap},
		{"history_cap", w.HistoryCap},
		{"code_cap", w.CodeCap},
		{"vulnerability_cap", w.VulnerabilityCap},
	}
	for _, p := range caps {
		if p.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %g", p.name, p.value))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
