package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/commitraider/pkg/engine/history"
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/policy"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
	"github.com/DrSkyle/commitraider/pkg/gitrepo"
	"github.com/DrSkyle/commitraider/pkg/storage"
)

var (
	alice = history.Identity{Name: "alice", Email: "alice@example.com"}
	bob   = history.Identity{Name: "bob", Email: "bob@example.com"}
)

func fixtureInput() Input {
	stats := &history.RepositoryStats{
		Path:              "/src/app",
		TotalCommits:      12,
		TotalFiles:        7,
		TotalAuthors:      2,
		RemoteURL:         "git@github.com:acme/app.git",
		Host:              gitrepo.HostGitHub,
		Branches:          []string{"main"},
		SingleAuthorFiles: []string{"a.c"},
		HighChurnFiles:    []string{"a.c"},
		Authors: map[string]*history.AuthorStats{
			alice.Key(): {Identity: alice, Commits: 8, FilesTouched: []string{"a.c", "m.go"}},
			bob.Key():   {Identity: bob, Commits: 4, FilesTouched: []string{"x"}},
		},
	}
	findings := []patterns.VulnerabilityFinding{
		{
			CommitID:     "c1",
			Message:      "fix buffer overflow in parser\n\nFixes #42",
			Author:       alice,
			Date:         time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
			FilesChanged: []string{"a.c"},
			Matches:      []patterns.PatternMatch{{Pattern: "Buffer Overflow", Severity: patterns.Critical, Category: patterns.MemorySafety}},
			RiskScore:    9,
			References:   []string{},
		},
		{
			CommitID:     "c2",
			Message:      "CVE-2022-0001 auth bypass",
			Author:       bob,
			Date:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			FilesChanged: []string{"x", "y", "z", "w"},
			Matches: []patterns.PatternMatch{
				{Pattern: "Authentication Bypass", Severity: patterns.Critical, Category: patterns.AuthenticationAuthorization},
				{Pattern: "CVE Reference", Severity: patterns.Info, Category: patterns.Generic, References: []string{"CVE-2022-0001"}},
			},
			RiskScore:  10,
			References: []string{"CVE-2022-0001"},
		},
		{
			CommitID:     "c3",
			Message:      "plug memory leak",
			Author:       alice,
			Date:         time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			FilesChanged: []string{"m.go"},
			Matches:      []patterns.PatternMatch{{Pattern: "Memory Leak", Severity: patterns.Medium, Category: patterns.MemorySafety}},
			RiskScore:    5,
			References:   []string{},
		},
	}
	return Input{
		Stats:      stats,
		Findings:   findings,
		Assessment: risk.Assessment{Score: 4.2, Level: risk.LevelMedium, History: 2.2, Vulnerability: 2.0},
		Violations: []policy.Violation{{RuleID: "critical", Action: policy.ActionBlock, CommitID: "c2", RiskScore: 10}},
	}
}

func TestRenderCSVGolden(t *testing.T) {
	r := Build(fixtureInput(), Options{GeneratedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)})

	data, err := Render(r, FormatCSV)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "findings_csv", data)
}

func TestBuildOrdersAndLinks(t *testing.T) {
	r := Build(fixtureInput(), Options{})

	require.Len(t, r.Findings, 3)
	assert.Equal(t, []string{"c2", "c1", "c3"}, []string{r.Findings[0].CommitID, r.Findings[1].CommitID, r.Findings[2].CommitID})
	assert.Equal(t, "https://github.com/acme/app/commit/c2", r.Findings[0].CommitURL)
	assert.Equal(t, "https://github.com/acme/app/commit/c2.diff", r.Findings[0].DiffURL)
	assert.Equal(t, patterns.Critical, r.Findings[0].Severity)
	assert.Equal(t, []IssueLink{{Number: "42", URL: "https://github.com/acme/app/issues/42"}}, r.Findings[1].Issues)
	assert.Equal(t, []FileLink{{Path: "a.c", URL: "https://github.com/acme/app/blob/c1/a.c"}}, r.Findings[1].FileLinks)
	require.Len(t, r.Findings[0].FileLinks, 4)

	require.Len(t, r.History.TopContributors, 2)
	assert.Equal(t, Contributor{Name: "alice", Email: "alice@example.com", Commits: 8, Files: 2}, r.History.TopContributors[0])
	assert.Nil(t, r.History.Stats)

	assert.Equal(t, 3, r.Summary.Findings)
	assert.Equal(t, map[string]int{"critical": 2, "medium": 1}, r.Summary.BySeverity)
	assert.Equal(t, 1, r.Summary.CVEs)
	assert.Equal(t, 1, r.Summary.Blocking)
	assert.Equal(t, "GitHub", r.Summary.Host)
}

func TestBuildCVEOnly(t *testing.T) {
	r := Build(fixtureInput(), Options{CVEOnly: true, IncludeHistory: true})

	require.Len(t, r.Findings, 1)
	assert.Equal(t, "c2", r.Findings[0].CommitID)
	assert.NotNil(t, r.History.Stats)
}

func TestRenderJSON(t *testing.T) {
	r := Build(fixtureInput(), Options{GeneratedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), ScanID: "scan-1"})

	data, err := Render(r, FormatJSON)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "CommitRaider", doc["tool"])
	assert.Equal(t, "2024-04-01T00:00:00Z", doc["generated_at"])
	assert.Equal(t, "scan-1", doc["scan_id"])
	assert.Contains(t, doc, "risk")
	assert.Contains(t, doc, "history")

	findings := doc["findings"].([]interface{})
	first := findings[0].(map[string]interface{})
	assert.Equal(t, "c2", first["commit_id"])
	assert.Equal(t, 10.0, first["risk_score"])
	assert.Equal(t, []interface{}{"CVE-2022-0001"}, first["references"])

	links := first["file_links"].([]interface{})
	require.Len(t, links, 4)
	assert.Equal(t, map[string]interface{}{"path": "x", "url": "https://github.com/acme/app/blob/c2/x"}, links[0])
}

func TestBuildLocalRepositoryHasNoFileLinks(t *testing.T) {
	in := fixtureInput()
	in.Stats.RemoteURL = ""
	in.Stats.Host = gitrepo.HostLocal

	r := Build(in, Options{})
	for _, f := range r.Findings {
		assert.Empty(t, f.FileLinks, f.CommitID)
		assert.Empty(t, f.CommitURL, f.CommitID)
	}

	data, err := Render(r, FormatJSON)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "file_links")
}

func TestBuildEmpty(t *testing.T) {
	r := Build(Input{}, Options{})
	_, err := uuid.Parse(r.ScanID)
	require.NoError(t, err)
	data, err := Render(r, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"findings": []`)
	assert.Contains(t, string(data), `"violations": []`)
}

func TestParseFormatAndOutputName(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("html")
	assert.Error(t, err)

	assert.Equal(t, "report_commit_raider.json", OutputName("", FormatJSON))
	assert.Equal(t, "out/scan.csv", OutputName("out/scan", FormatCSV))
	assert.Equal(t, "scan.txt", OutputName("scan.txt", FormatCSV))
	assert.Equal(t, "s3://b/r.json", OutputName("s3://b/r", FormatJSON))
}

func TestSaveLocal(t *testing.T) {
	target := filepath.Join(t.TempDir(), "scan")
	written, err := Save(context.Background(), Build(fixtureInput(), Options{}), target, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, target+".json", written)

	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestLoadSavedReport(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "scan")
	original := Build(fixtureInput(), Options{ScanID: "scan-7", GeneratedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)})
	_, err := Save(ctx, original, target, FormatJSON)
	require.NoError(t, err)

	loaded, err := Load(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "scan-7", loaded.ScanID)
	assert.Equal(t, original.Summary, loaded.Summary)
	require.Len(t, loaded.Findings, 3)
	assert.Equal(t, "c2", loaded.Findings[0].CommitID)
	assert.Equal(t, original.Findings[0].FileLinks, loaded.Findings[0].FileLinks)

	_, err = Load(ctx, filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = Load(ctx, target+".csv")
	assert.Error(t, err)
}

func TestListReports(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := Build(fixtureInput(), Options{})
	_, err := Save(ctx, r, filepath.Join(dir, "app", "scan"), FormatJSON)
	require.NoError(t, err)
	_, err = Save(ctx, r, filepath.Join(dir, "app", "scan"), FormatCSV)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	got, err := List(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "app", "scan.csv"),
		filepath.Join(dir, "app", "scan.json"),
	}, got)

	got, err = List(ctx, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
