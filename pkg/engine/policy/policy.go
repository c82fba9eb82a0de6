package policy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
)

// RuleFile is the on-disk layout of a rules document.
type RuleFile struct {
	Rules []DynamicRule `yaml:"rules"`
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) ([]DynamicRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return rf.Rules, nil
}

// Violation records a rule matching a finding.
type Violation struct {
	RuleID      string  `json:"rule_id"`
	Description string  `json:"description,omitempty"`
	Action      string  `json:"action"`
	CommitID    string  `json:"commit_id"`
	RiskScore   float64 `json:"risk_score"`
}

// Blocking reports whether the violation should fail a strict scan.
func (v Violation) Blocking() bool {
	return v.Action == ActionBlock
}

// Check evaluates every finding against the compiled rules.
func (e *CELEngine) Check(ctx context.Context, findings []patterns.VulnerabilityFinding) ([]Violation, error) {
	violations := []Violation{}
	for _, f := range findings {
		matched, err := e.Evaluate(ctx, ContextFor(f))
		if err != nil {
			return violations, err
		}
		for _, r := range matched {
			violations = append(violations, Violation{
				RuleID:      r.ID,
				Description: r.Description,
				Action:      r.Action,
				CommitID:    f.CommitID,
				RiskScore:   f.RiskScore,
			})
		}
	}
	return violations, nil
}

// HasBlocking reports whether any violation blocks.
func HasBlocking(violations []Violation) bool {
	for _, v := range violations {
		if v.Blocking() {
			return true
		}
	}
	return false
}
