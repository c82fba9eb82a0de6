// Package history extracts commit history from a repository and folds it
// into per-file and per-author statistics.
package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/DrSkyle/commitraider/pkg/gitrepo"
)

// Identity is an author or committer. Two identities are the same author
// only when both name and email match.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Key returns the map key for the identity, "name <email>".
func (i Identity) Key() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

// CommitRecord is one extracted commit. It is not modified after extraction.
type CommitRecord struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	Author      Identity  `json:"author"`
	Committer   Identity  `json:"committer"`
	AuthoredAt  time.Time `json:"authored_at"`
	CommittedAt time.Time `json:"committed_at"`
	// FilesChanged is ordered, deduplicated and capped at the configured maximum.
	FilesChanged []string `json:"files_changed"`
	Insertions   int      `json:"insertions"`
	Deletions    int      `json:"deletions"`
	Branch       string   `json:"branch,omitempty"`
}

// FileHistory is the accumulated history of one path.
type FileHistory struct {
	Path    string   `json:"path"`
	Commits []string `json:"commits"`
	// Authors holds distinct author names, sorted.
	Authors     []string  `json:"authors"`
	FirstCommit time.Time `json:"first_commit"`
	LastCommit  time.Time `json:"last_commit"`
	// TotalChanges equals the number of distinct commits folded in.
	TotalChanges int `json:"total_changes"`
}

// AuthorStats is the accumulated activity of one identity.
type AuthorStats struct {
	Identity
	Commits int `json:"commits"`
	// FilesTouched holds distinct paths, sorted.
	FilesTouched []string  `json:"files_touched"`
	FirstCommit  time.Time `json:"first_commit"`
	LastCommit   time.Time `json:"last_commit"`
	LinesAdded   int       `json:"lines_added"`
	LinesRemoved int       `json:"lines_removed"`
}

// RepositoryStats is the aggregate produced by a history scan.
type RepositoryStats struct {
	Path         string `json:"path"`
	TotalCommits int    `json:"total_commits"`
	TotalFiles   int    `json:"total_files"`
	TotalAuthors int    `json:"total_authors"`
	// TotalReachable counts every commit reachable from the head, processed or not.
	TotalReachable int  `json:"total_reachable"`
	Sampled        bool `json:"sampled"`

	FirstCommit time.Time        `json:"first_commit"`
	LastCommit  time.Time        `json:"last_commit"`
	Branches    []string         `json:"branches"`
	RemoteURL   string           `json:"remote_url,omitempty"`
	Host        gitrepo.HostType `json:"host"`

	Commits []CommitRecord          `json:"commits"`
	Files   map[string]*FileHistory `json:"files"`
	Authors map[string]*AuthorStats `json:"authors"`

	SingleAuthorFiles []string `json:"single_author_files"`
	StaleFiles        []string `json:"stale_files"`
	HighChurnFiles    []string `json:"high_churn_files"`
}

// TopContributors returns up to n authors ordered by commit count, then key.
func (s *RepositoryStats) TopContributors(n int) []*AuthorStats {
	authors := make([]*AuthorStats, 0, len(s.Authors))
	for _, a := range s.Authors {
		authors = append(authors, a)
	}
	sort.Slice(authors, func(i, j int) bool {
		if authors[i].Commits != authors[j].Commits {
			return authors[i].Commits > authors[j].Commits
		}
		return authors[i].Key() < authors[j].Key()
	})
	if n >= 0 && len(authors) > n {
		authors = authors[:n]
	}
	return authors
}

// insertSorted adds s to a sorted slice unless already present.
func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
