package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
)

// Rule actions.
const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

// DynamicRule represents a user-defined policy rule loaded from YAML.
type DynamicRule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description"`
	Condition   string `json:"condition" yaml:"condition"` // CEL expression: "risk_score >= 8.0 && 'critical' in severities"
	Action      string `json:"action" yaml:"action"`       // "block" or "warn"
	Priority    int    `json:"priority,omitempty" yaml:"priority"`
}

// EvaluationContext is the data a rule sees for one finding.
type EvaluationContext struct {
	Commit       string
	Author       string
	Email        string
	Message      string
	RiskScore    float64
	FilesChanged int
	Severities   []string
	Categories   []string
	References   []string
	Files        []string
}

// ContextFor flattens a finding into rule variables.
func ContextFor(f patterns.VulnerabilityFinding) EvaluationContext {
	ec := EvaluationContext{
		Commit:       f.CommitID,
		Author:       f.Author.Name,
		Email:        f.Author.Email,
		Message:      f.Message,
		RiskScore:    f.RiskScore,
		FilesChanged: len(f.FilesChanged),
		Severities:   []string{},
		Categories:   []string{},
		References:   append([]string{}, f.References...),
		Files:        append([]string{}, f.FilesChanged...),
	}
	for _, m := range f.Matches {
		ec.Severities = append(ec.Severities, string(m.Severity))
		ec.Categories = append(ec.Categories, string(m.Category))
	}
	return ec
}

func (c EvaluationContext) vars() map[string]interface{} {
	return map[string]interface{}{
		"commit":        c.Commit,
		"author":        c.Author,
		"email":         c.Email,
		"message":       c.Message,
		"risk_score":    c.RiskScore,
		"files_changed": int64(c.FilesChanged),
		"severities":    c.Severities,
		"categories":    c.Categories,
		"references":    c.References,
		"files":         c.Files,
	}
}

type compiledRule struct {
	rule DynamicRule
	prg  cel.Program
}

// CELEngine manages the compilation and execution of dynamic rules.
type CELEngine struct {
	env    *cel.Env
	rules  []compiledRule
	Logger *slog.Logger
}

// NewCELEngine initializes the CEL environment with the finding variables.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("commit", decls.String),
			decls.NewVar("author", decls.String),
			decls.NewVar("email", decls.String),
			decls.NewVar("message", decls.String),
			decls.NewVar("risk_score", decls.Double),
			decls.NewVar("files_changed", decls.Int),
			decls.NewVar("severities", decls.NewListType(decls.String)),
			decls.NewVar("categories", decls.NewListType(decls.String)),
			decls.NewVar("references", decls.NewListType(decls.String)),
			decls.NewVar("files", decls.NewListType(decls.String)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	return &CELEngine{env: env, Logger: slog.Default()}, nil
}

// Compile compiles rules into executable programs. Rules are kept ordered
// by priority (highest first), then by ID.
func (e *CELEngine) Compile(rules []DynamicRule) error {
	for _, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("rule with condition %q has no id", r.Condition)
		}
		switch r.Action {
		case ActionBlock, ActionWarn:
		case "":
			r.Action = ActionWarn
		default:
			return fmt.Errorf("rule %s: unknown action %q", r.ID, r.Action)
		}

		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return fmt.Errorf("rule %s must evaluate to bool, got %s", r.ID, ast.OutputType())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}

		e.rules = append(e.rules, compiledRule{rule: r, prg: prg})
	}

	sort.SliceStable(e.rules, func(i, j int) bool {
		if e.rules[i].rule.Priority != e.rules[j].rule.Priority {
			return e.rules[i].rule.Priority > e.rules[j].rule.Priority
		}
		return e.rules[i].rule.ID < e.rules[j].rule.ID
	})
	return nil
}

// Len returns the number of compiled rules.
func (e *CELEngine) Len() int {
	return len(e.rules)
}

// Evaluate returns the rules that match data, in priority order.
// A rule that fails at runtime is logged and treated as not matching.
func (e *CELEngine) Evaluate(ctx context.Context, data EvaluationContext) ([]DynamicRule, error) {
	var matches []DynamicRule
	vars := data.vars()

	for _, cr := range e.rules {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		out, _, err := cr.prg.ContextEval(ctx, vars)
		if err != nil {
			e.Logger.Warn("Rule evaluation failed", "rule_id", cr.rule.ID, "commit", data.Commit, "error", err)
			continue
		}

		if match, ok := out.Value().(bool); ok && match {
			matches = append(matches, cr.rule)
		}
	}

	return matches, nil
}
