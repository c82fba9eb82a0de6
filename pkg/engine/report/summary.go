package report

import (
	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/policy"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
)

// Summary is the headline view of a scan, shared by the report, the
// terminal output and notifications.
type Summary struct {
	Repository   string         `json:"repository"`
	Host         string         `json:"host"`
	TotalCommits int            `json:"total_commits"`
	TotalFiles   int            `json:"total_files"`
	TotalAuthors int            `json:"total_authors"`
	Sampled      bool           `json:"sampled"`
	Findings     int            `json:"findings"`
	BySeverity   map[string]int `json:"by_severity"`
	CVEs         int            `json:"cves"`
	RiskScore    float64        `json:"risk_score"`
	RiskLevel    risk.Level     `json:"risk_level"`
	Violations   int            `json:"violations"`
	Blocking     int            `json:"blocking"`
}

// Summarize computes the summary for already decorated findings.
func Summarize(stats *history.RepositoryStats, findings []Finding, a risk.Assessment, violations []policy.Violation) Summary {
	s := Summary{
		Repository:   stats.Path,
		Host:         stats.Host.DisplayName(),
		TotalCommits: stats.TotalCommits,
		TotalFiles:   stats.TotalFiles,
		TotalAuthors: stats.TotalAuthors,
		Sampled:      stats.Sampled,
		Findings:     len(findings),
		BySeverity:   map[string]int{},
		RiskScore:    a.Score,
		RiskLevel:    a.Level,
		Violations:   len(violations),
	}

	cves := map[string]struct{}{}
	for _, f := range findings {
		s.BySeverity[string(f.Severity)]++
		for _, ref := range f.References {
			cves[ref] = struct{}{}
		}
	}
	s.CVEs = len(cves)

	for _, v := range violations {
		if v.Blocking() {
			s.Blocking++
		}
	}
	return s
}
