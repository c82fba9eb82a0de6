package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/DrSkyle/commitraider/pkg/sys/intern"
)

// FileChange is one path touched by a commit with its line counts.
// Binary files report zero counts.
type FileChange struct {
	Path    string
	Added   int
	Removed int
}

// ProbeRequest identifies the commit whose changed files are wanted.
type ProbeRequest struct {
	RepoPath string
	CommitID string
	// ParentID is empty for root commits.
	ParentID string
}

// ChangedFileProbe answers "which files did this commit touch".
// Implementations must be safe for concurrent use and honour ctx cancellation.
type ChangedFileProbe interface {
	ChangedFiles(ctx context.Context, req ProbeRequest) ([]FileChange, error)
}

// GitProbe runs `git diff-tree` in a subprocess.
type GitProbe struct {
	// Binary is the git executable, "git" when empty.
	Binary string
}

// NewGitProbe returns a probe using the git binary on PATH.
func NewGitProbe() *GitProbe {
	return &GitProbe{Binary: "git"}
}

// ChangedFiles diffs the commit against its first parent. Root commits are
// diffed against the empty tree, which lists their full tree.
func (p *GitProbe) ChangedFiles(ctx context.Context, req ProbeRequest) ([]FileChange, error) {
	args := []string{"-C", req.RepoPath, "diff-tree", "--no-commit-id", "--no-renames", "--numstat", "-z", "-r"}
	if req.ParentID == "" {
		args = append(args, "--root", req.CommitID)
	} else {
		args = append(args, req.ParentID, req.CommitID)
	}

	bin := p.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("diff-tree %s: %w", req.CommitID, ctx.Err())
		}
		return nil, fmt.Errorf("diff-tree %s: %w: %s", req.CommitID, err, strings.TrimSpace(stderr.String()))
	}
	return ParseNumstat(out), nil
}

// ParseNumstat parses NUL-terminated `--numstat -z` output.
// Duplicate paths are dropped, keeping the first occurrence.
func ParseNumstat(out []byte) []FileChange {
	var changes []FileChange
	seen := make(map[string]struct{})
	for _, record := range strings.Split(string(out), "\x00") {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, "\t", 3)
		if len(fields) != 3 || fields[2] == "" {
			continue
		}
		path := intern.String(fields[2])
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		changes = append(changes, FileChange{
			Path:    path,
			Added:   lineCount(fields[0]),
			Removed: lineCount(fields[1]),
		})
	}
	return changes
}

func lineCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
