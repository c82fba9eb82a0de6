// Package report turns scan results into JSON or CSV artifacts.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/policy"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	"github.com/DrSkyle/commitraider/pkg/gitrepo"
	"github.com/DrSkyle/commitraider/pkg/storage"
	"github.com/DrSkyle/commitraider/pkg/version"
	"github.com/google/uuid"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// DefaultOutputName is the report file name when none is given.
const DefaultOutputName = "report_commit_raider"

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unsupported report format %q (want json or csv)", s)
}

// OutputName appends the format's extension when name has none.
func OutputName(name string, f Format) string {
	if name == "" {
		name = DefaultOutputName
	}
	if path.Ext(name) == "" {
		name += "." + string(f)
	}
	return name
}

// Input is everything a report is built from.
type Input struct {
	Stats      *history.RepositoryStats
	Findings   []patterns.VulnerabilityFinding
	Assessment risk.Assessment
	Violations []policy.Violation
}

// Options controls report content.
type Options struct {
	// CVEOnly keeps only findings that reference a CVE.
	CVEOnly bool
	// IncludeHistory embeds the full repository statistics.
	IncludeHistory bool
	// TopContributors bounds the contributor list. Zero means 10.
	TopContributors int
	GeneratedAt     time.Time
	// ScanID correlates the report with the run's logs. Empty mints a fresh one.
	ScanID string
}

// IssueLink is an issue referenced from a commit message.
type IssueLink struct {
	Number string `json:"number"`
	URL    string `json:"url,omitempty"`
}

// FileLink points at a changed file as of the finding's commit.
type FileLink struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Finding is a finding with links into the hosting service.
type Finding struct {
	patterns.VulnerabilityFinding
	Severity  patterns.Severity `json:"severity"`
	CommitURL string            `json:"commit_url,omitempty"`
	DiffURL   string            `json:"diff_url,omitempty"`
	FileLinks []FileLink        `json:"file_links,omitempty"`
	Issues    []IssueLink       `json:"issues,omitempty"`
}

// Contributor is one entry of the top contributor list.
type Contributor struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Commits int    `json:"commits"`
	Files   int    `json:"files"`
}

// HistorySection summarises repository history.
type HistorySection struct {
	FirstCommit       time.Time                `json:"first_commit"`
	LastCommit        time.Time                `json:"last_commit"`
	Branches          []string                 `json:"branches"`
	SingleAuthorFiles []string                 `json:"single_author_files"`
	StaleFiles        []string                 `json:"stale_files"`
	HighChurnFiles    []string                 `json:"high_churn_files"`
	TopContributors   []Contributor            `json:"top_contributors"`
	Stats             *history.RepositoryStats `json:"stats,omitempty"`
}

// Report is the serialized scan result.
type Report struct {
	Tool        string             `json:"tool"`
	Version     string             `json:"version"`
	ScanID      string             `json:"scan_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Summary     Summary            `json:"summary"`
	Risk        risk.Assessment    `json:"risk"`
	Findings    []Finding          `json:"findings"`
	Violations  []policy.Violation `json:"violations"`
	History     HistorySection     `json:"history"`
}

// Build assembles a report. Findings are ordered by risk score, then date
// (newest first), then commit id.
func Build(in Input, opts Options) *Report {
	stats := in.Stats
	if stats == nil {
		stats = &history.RepositoryStats{}
	}
	linker := gitrepo.NewLinker(stats.RemoteURL)

	findings := []Finding{}
	for _, f := range in.Findings {
		if opts.CVEOnly && len(f.References) == 0 {
			continue
		}
		findings = append(findings, decorate(f, linker))
	}
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CommitID < b.CommitID
	})

	violations := in.Violations
	if violations == nil {
		violations = []policy.Violation{}
	}

	top := opts.TopContributors
	if top <= 0 {
		top = 10
	}
	contributors := []Contributor{}
	for _, a := range stats.TopContributors(top) {
		contributors = append(contributors, Contributor{Name: a.Name, Email: a.Email, Commits: a.Commits, Files: len(a.FilesTouched)})
	}

	scanID := opts.ScanID
	if scanID == "" {
		scanID = uuid.NewString()
	}

	r := &Report{
		Tool:        version.AppName,
		Version:     version.Current,
		ScanID:      scanID,
		GeneratedAt: opts.GeneratedAt.UTC(),
		Risk:        in.Assessment,
		Findings:    findings,
		Violations:  violations,
		History: HistorySection{
			FirstCommit:       stats.FirstCommit,
			LastCommit:        stats.LastCommit,
			Branches:          nonNil(stats.Branches),
			SingleAuthorFiles: nonNil(stats.SingleAuthorFiles),
			StaleFiles:        nonNil(stats.StaleFiles),
			HighChurnFiles:    nonNil(stats.HighChurnFiles),
			TopContributors:   contributors,
		},
	}
	if opts.IncludeHistory {
		r.History.Stats = stats
	}
	r.Summary = Summarize(stats, findings, in.Assessment, violations)
	return r
}

func decorate(f patterns.VulnerabilityFinding, linker gitrepo.Linker) Finding {
	out := Finding{
		VulnerabilityFinding: f,
		Severity:             f.MaxSeverity(),
		CommitURL:            linker.CommitURL(f.CommitID),
		DiffURL:              linker.DiffURL(f.CommitID),
	}
	for _, path := range f.FilesChanged {
		if url := linker.FileURL(path, f.CommitID); url != "" {
			out.FileLinks = append(out.FileLinks, FileLink{Path: path, URL: url})
		}
	}
	for _, n := range gitrepo.IssueReferences(f.Message) {
		out.Issues = append(out.Issues, IssueLink{Number: n, URL: linker.IssueURL(n)})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Render encodes the report. CSV output holds one row per finding.
func Render(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(r, "", "  ")
	case FormatCSV:
		return renderCSV(r.Findings)
	}
	return nil, fmt.Errorf("unsupported report format %q", f)
}

func renderCSV(findings []Finding) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"CommitID",
		"Date",
		"Author",
		"Severity",
		"RiskScore",
		"Patterns",
		"References",
		"FilesChanged",
		"Summary",
		"CommitURL",
		"FileLinks",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, f := range findings {
		names := make([]string, len(f.Matches))
		for i, m := range f.Matches {
			names[i] = m.Pattern
		}
		links := make([]string, len(f.FileLinks))
		for i, l := range f.FileLinks {
			links[i] = l.URL
		}
		record := []string{
			f.CommitID,
			f.Date.UTC().Format(time.RFC3339),
			fmt.Sprintf("%s <%s>", f.Author.Name, f.Author.Email),
			string(f.Severity),
			fmt.Sprintf("%.2f", f.RiskScore),
			strings.Join(names, ";"),
			strings.Join(f.References, ";"),
			fmt.Sprintf("%d", len(f.FilesChanged)),
			f.Summary(),
			f.CommitURL,
			strings.Join(links, ";"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// Save renders the report and writes it to target, a local path or an
// s3://bucket/key URL. It returns the location written.
func Save(ctx context.Context, r *Report, target string, f Format) (string, error) {
	data, err := Render(r, f)
	if err != nil {
		return "", err
	}

	target = OutputName(target, f)
	store, key, err := storage.Open(ctx, target)
	if err != nil {
		return "", err
	}
	if err := store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return target, nil
}
