package gitrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectHost(t *testing.T) {
	tests := []struct {
		url  string
		want HostType
	}{
		{"", HostLocal},
		{"https://github.com/acme/tool.git", HostGitHub},
		{"git@gitlab.com:acme/tool.git", HostGitLab},
		{"https://gitlab.internal.example/acme/tool", HostGitLab},
		{"https://bitbucket.org/acme/tool", HostBitbucket},
		{"https://git.example.com/acme/tool", HostOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectHost(tt.url), tt.url)
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://github.com/acme/tool", BaseURL("git@github.com:acme/tool.git"))
	assert.Equal(t, "https://github.com/acme/tool", BaseURL("ssh://git@github.com/acme/tool.git"))
	assert.Equal(t, "https://github.com/acme/tool", BaseURL("https://github.com/acme/tool.git"))
	assert.Equal(t, "https://github.com/acme/tool", BaseURL("https://github.com/acme/tool/"))
}

func TestLinkerPerHost(t *testing.T) {
	gh := NewLinker("git@github.com:acme/tool.git")
	assert.Equal(t, "https://github.com/acme/tool/commit/abc", gh.CommitURL("abc"))
	assert.Equal(t, "https://github.com/acme/tool/commit/abc.diff", gh.DiffURL("abc"))
	assert.Equal(t, "https://github.com/acme/tool/blob/main/src/x.go", gh.FileURL("src/x.go", ""))
	assert.Equal(t, "https://github.com/acme/tool/issues/12", gh.IssueURL("12"))

	gl := NewLinker("https://gitlab.com/acme/tool.git")
	assert.Equal(t, "https://gitlab.com/acme/tool/-/commit/abc", gl.CommitURL("abc"))
	assert.Equal(t, "https://gitlab.com/acme/tool/-/blob/abc/a.go", gl.FileURL("a.go", "abc"))
	assert.Equal(t, "https://gitlab.com/acme/tool/-/issues/7", gl.IssueURL("7"))

	bb := NewLinker("https://bitbucket.org/acme/tool")
	assert.Equal(t, "https://bitbucket.org/acme/tool/commits/abc/raw", bb.DiffURL("abc"))
	assert.Equal(t, "https://bitbucket.org/acme/tool/src/main/a.go", bb.FileURL("a.go", ""))

	local := NewLinker("")
	assert.Empty(t, local.CommitURL("abc"))
	assert.Equal(t, "Local Repository", local.Host().DisplayName())
}

func TestIssueReferences(t *testing.T) {
	refs := IssueReferences("Fixes #12, closes 40 and see issue 12; resolves #7")
	assert.Equal(t, []string{"12", "7", "40"}, refs)
	assert.Empty(t, IssueReferences("no references here"))
}
