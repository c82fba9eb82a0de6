// Package gitrepo wraps the native repository handle and the out-of-process
// changed-file probe used by the history extractor.
package gitrepo

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrNotARepository is returned when the path holds no git repository.
	ErrNotARepository = errors.New("not a git repository")
	// ErrNoHead is returned when neither HEAD nor a default branch resolves.
	ErrNoHead = errors.New("repository has no resolvable head")
)

// Signature identifies an author or committer at a point in time.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitMeta is the metadata read for one commit during the sequential phase.
type CommitMeta struct {
	ID        string
	Message   string
	Author    Signature
	Committer Signature
	// ParentID is the first parent, empty for root commits.
	ParentID string
}

// Head is the resolved starting point of a history walk.
type Head struct {
	ID     string
	Branch string
}

// Repository is an open repository handle.
// It is not safe for concurrent use; one goroutine owns it for a whole scan.
type Repository struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path, searching parent directories for .git.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotARepository, path, err)
	}

	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &Repository{path: root, repo: repo}, nil
}

// Path returns the working tree root (or the given path for bare repositories).
func (r *Repository) Path() string {
	return r.path
}

// Head resolves HEAD, falling back to the default branch when HEAD is unborn.
func (r *Repository) Head() (Head, error) {
	if ref, err := r.repo.Head(); err == nil {
		h := Head{ID: ref.Hash().String()}
		if ref.Name().IsBranch() {
			h.Branch = ref.Name().Short()
		}
		return h, nil
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName("main"),
		plumbing.NewBranchReferenceName("master"),
		plumbing.NewRemoteHEADReferenceName("origin"),
	}
	for _, name := range candidates {
		ref, err := r.repo.Reference(name, true)
		if err != nil {
			continue
		}
		h := Head{ID: ref.Hash().String()}
		if ref.Name().IsBranch() {
			h.Branch = ref.Name().Short()
		}
		return h, nil
	}
	return Head{}, ErrNoHead
}

// CommitIDs walks history from the given commit in committer-time descending
// order. It returns at most limit ids (all when limit <= 0) together with the
// total number of reachable commits.
func (r *Repository) CommitIDs(from string, limit int) ([]string, int, error) {
	iter, err := r.repo.Log(&git.LogOptions{
		From:  plumbing.NewHash(from),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk history from %s: %w", from, err)
	}
	defer iter.Close()

	var ids []string
	total := 0
	err = iter.ForEach(func(c *object.Commit) error {
		total++
		if limit <= 0 || len(ids) < limit {
			ids = append(ids, c.Hash.String())
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk history from %s: %w", from, err)
	}
	return ids, total, nil
}

// ReadCommit reads the metadata of one commit.
func (r *Repository) ReadCommit(id string) (CommitMeta, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(id))
	if err != nil {
		return CommitMeta{}, fmt.Errorf("read commit %s: %w", id, err)
	}

	meta := CommitMeta{
		ID:      c.Hash.String(),
		Message: c.Message,
		Author: Signature{
			Name:  c.Author.Name,
			Email: c.Author.Email,
			When:  c.Author.When.UTC(),
		},
		Committer: Signature{
			Name:  c.Committer.Name,
			Email: c.Committer.Email,
			When:  c.Committer.When.UTC(),
		},
	}
	if len(c.ParentHashes) > 0 {
		meta.ParentID = c.ParentHashes[0].String()
	}
	return meta, nil
}

// Branches lists local branch names, sorted.
func (r *Repository) Branches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// RemoteURL returns the first URL of "origin", or of any other remote when
// origin is missing. It returns "" when the repository has no remotes.
func (r *Repository) RemoteURL() (string, error) {
	if remote, err := r.repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			return urls[0], nil
		}
	}

	remotes, err := r.repo.Remotes()
	if err != nil {
		return "", fmt.Errorf("list remotes: %w", err)
	}
	sort.Slice(remotes, func(i, j int) bool {
		return remotes[i].Config().Name < remotes[j].Config().Name
	})
	for _, remote := range remotes {
		if urls := remote.Config().URLs; len(urls) > 0 {
			return urls[0], nil
		}
	}
	return "", nil
}
