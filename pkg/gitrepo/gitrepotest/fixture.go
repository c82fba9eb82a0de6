// Package gitrepotest builds throwaway repositories for tests.
package gitrepotest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Epoch is the timestamp of the first fixture commit unless overridden.
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Repo is a repository under construction in t.TempDir().
type Repo struct {
	t    testing.TB
	Dir  string
	repo *git.Repository
	wt   *git.Worktree
	next time.Time
}

// Author is a commit identity.
type Author struct {
	Name  string
	Email string
}

// New initializes an empty repository.
func New(t testing.TB) *Repo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	return &Repo{t: t, Dir: dir, repo: repo, wt: wt, next: Epoch}
}

// AddRemote registers a remote with a single URL.
func (r *Repo) AddRemote(name, url string) {
	r.t.Helper()
	_, err := r.repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}})
	if err != nil {
		r.t.Fatalf("create remote %s: %v", name, err)
	}
}

// Commit writes files and commits them one hour after the previous commit.
func (r *Repo) Commit(msg string, author Author, files map[string]string) string {
	r.t.Helper()
	id := r.CommitAt(msg, author, r.next, files)
	return id
}

// CommitAt writes files and commits them with an explicit timestamp.
func (r *Repo) CommitAt(msg string, author Author, when time.Time, files map[string]string) string {
	r.t.Helper()
	for path, content := range files {
		full := filepath.Join(r.Dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			r.t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			r.t.Fatalf("write %s: %v", path, err)
		}
		if _, err := r.wt.Add(filepath.ToSlash(path)); err != nil {
			r.t.Fatalf("add %s: %v", path, err)
		}
	}
	sig := &object.Signature{Name: author.Name, Email: author.Email, When: when}
	hash, err := r.wt.Commit(msg, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: len(files) == 0,
	})
	if err != nil {
		r.t.Fatalf("commit %q: %v", msg, err)
	}
	r.next = when.Add(time.Hour)
	return hash.String()
}
