package history

import (
	"math"
	"sort"
	"time"
)

// Aggregator folds commit records into RepositoryStats.
// It has a single writer: the goroutine running the extractor.
type Aggregator struct {
	stats *RepositoryStats
	seen  map[string]struct{}
}

// NewAggregator starts an empty aggregate for the repository at path.
func NewAggregator(path string) *Aggregator {
	return &Aggregator{
		stats: &RepositoryStats{
			Path:    path,
			Files:   make(map[string]*FileHistory),
			Authors: make(map[string]*AuthorStats),
		},
		seen: make(map[string]struct{}),
	}
}

// Stats returns the aggregate being built.
func (a *Aggregator) Stats() *RepositoryStats {
	return a.stats
}

// Add folds one commit. A commit id already folded is ignored.
func (a *Aggregator) Add(c CommitRecord) {
	if _, dup := a.seen[c.ID]; dup {
		return
	}
	a.seen[c.ID] = struct{}{}

	s := a.stats
	s.Commits = append(s.Commits, c)
	s.TotalCommits = len(s.Commits)

	when := c.AuthoredAt
	if s.FirstCommit.IsZero() || when.Before(s.FirstCommit) {
		s.FirstCommit = when
	}
	if when.After(s.LastCommit) {
		s.LastCommit = when
	}

	key := c.Author.Key()
	author, ok := s.Authors[key]
	if !ok {
		author = &AuthorStats{Identity: c.Author, FirstCommit: when, LastCommit: when}
		s.Authors[key] = author
	}
	author.Commits++
	author.LinesAdded += c.Insertions
	author.LinesRemoved += c.Deletions
	extendBounds(&author.FirstCommit, &author.LastCommit, when)

	for _, path := range c.FilesChanged {
		author.FilesTouched = insertSorted(author.FilesTouched, path)

		fh, ok := s.Files[path]
		if !ok {
			fh = &FileHistory{Path: path, FirstCommit: when, LastCommit: when}
			s.Files[path] = fh
		}
		fh.Commits = append(fh.Commits, c.ID)
		fh.Authors = insertSorted(fh.Authors, c.Author.Name)
		fh.TotalChanges++
		extendBounds(&fh.FirstCommit, &fh.LastCommit, when)
	}

	s.TotalFiles = len(s.Files)
	s.TotalAuthors = len(s.Authors)
}

// Finalize recomputes the derived lists and returns the aggregate.
func (a *Aggregator) Finalize(now time.Time, staleAfter time.Duration) *RepositoryStats {
	a.stats.Refresh(now, staleAfter)
	return a.stats
}

func extendBounds(first, last *time.Time, when time.Time) {
	if when.Before(*first) {
		*first = when
	}
	if when.After(*last) {
		*last = when
	}
}

// Derived holds the lists computed from a FileHistory map.
type Derived struct {
	SingleAuthor []string
	Stale        []string
	HighChurn    []string
}

// Derive computes the single-author, stale and high-churn lists.
// It is a pure function of its inputs.
//
// High churn keeps the top ceil(10%) of files by total changes, at least one
// when any file exists, with ties broken by path.
func Derive(files map[string]*FileHistory, now time.Time, staleAfter time.Duration) Derived {
	d := Derived{
		SingleAuthor: []string{},
		Stale:        []string{},
		HighChurn:    []string{},
	}
	if len(files) == 0 {
		return d
	}

	cutoff := now.Add(-staleAfter)
	ranked := make([]*FileHistory, 0, len(files))
	for _, fh := range files {
		ranked = append(ranked, fh)
		if len(fh.Authors) == 1 {
			d.SingleAuthor = append(d.SingleAuthor, fh.Path)
		}
		if fh.LastCommit.Before(cutoff) {
			d.Stale = append(d.Stale, fh.Path)
		}
	}
	sort.Strings(d.SingleAuthor)
	sort.Strings(d.Stale)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalChanges != ranked[j].TotalChanges {
			return ranked[i].TotalChanges > ranked[j].TotalChanges
		}
		return ranked[i].Path < ranked[j].Path
	})
	n := int(math.Ceil(float64(len(ranked)) / 10))
	if n < 1 {
		n = 1
	}
	for _, fh := range ranked[:n] {
		d.HighChurn = append(d.HighChurn, fh.Path)
	}
	return d
}

// Refresh recomputes counters and derived lists from the current maps.
// Calling it repeatedly with the same arguments yields the same result.
func (s *RepositoryStats) Refresh(now time.Time, staleAfter time.Duration) {
	s.TotalCommits = len(s.Commits)
	s.TotalFiles = len(s.Files)
	s.TotalAuthors = len(s.Authors)

	d := Derive(s.Files, now, staleAfter)
	s.SingleAuthorFiles = d.SingleAuthor
	s.StaleFiles = d.Stale
	s.HighChurnFiles = d.HighChurn
}
