package gitrepo

import (
	"fmt"
	"regexp"
	"strings"
)

// HostType classifies where a repository is hosted.
type HostType string

const (
	HostGitHub    HostType = "github"
	HostGitLab    HostType = "gitlab"
	HostBitbucket HostType = "bitbucket"
	HostOther     HostType = "other"
	HostLocal     HostType = "local"
)

// DisplayName is the human label used in reports.
func (h HostType) DisplayName() string {
	switch h {
	case HostGitHub:
		return "GitHub"
	case HostGitLab:
		return "GitLab"
	case HostBitbucket:
		return "Bitbucket"
	case HostOther:
		return "Git Repository"
	default:
		return "Local Repository"
	}
}

// DetectHost infers the host type from a remote URL.
func DetectHost(remoteURL string) HostType {
	if remoteURL == "" {
		return HostLocal
	}
	u := strings.ToLower(remoteURL)
	switch {
	case strings.Contains(u, "github.com"):
		return HostGitHub
	case strings.Contains(u, "gitlab.com"), strings.Contains(u, "gitlab."):
		return HostGitLab
	case strings.Contains(u, "bitbucket.org"):
		return HostBitbucket
	default:
		return HostOther
	}
}

var scpLikeURL = regexp.MustCompile(`^(?:ssh://)?git@([^:/]+)[:/](.+)$`)

// Linker builds web links into a hosted repository.
// A Linker for a local or unrecognised remote returns empty strings.
type Linker struct {
	base string
	host HostType
}

// NewLinker derives the browsable base URL from a remote URL.
func NewLinker(remoteURL string) Linker {
	host := DetectHost(remoteURL)
	if host == HostLocal || host == HostOther {
		return Linker{host: host}
	}
	return Linker{base: BaseURL(remoteURL), host: host}
}

// BaseURL converts SSH remotes to HTTPS and strips the .git suffix.
func BaseURL(remoteURL string) string {
	url := strings.TrimSpace(remoteURL)
	if m := scpLikeURL.FindStringSubmatch(url); m != nil {
		url = fmt.Sprintf("https://%s/%s", m[1], m[2])
	}
	url = strings.TrimSuffix(url, "/")
	return strings.TrimSuffix(url, ".git")
}

// Host returns the detected host type.
func (l Linker) Host() HostType {
	return l.host
}

// CommitURL links to the commit page.
func (l Linker) CommitURL(id string) string {
	switch l.host {
	case HostGitHub:
		return l.base + "/commit/" + id
	case HostGitLab:
		return l.base + "/-/commit/" + id
	case HostBitbucket:
		return l.base + "/commits/" + id
	}
	return ""
}

// FileURL links to path at ref, or at main when ref is empty.
func (l Linker) FileURL(path, ref string) string {
	if ref == "" {
		ref = "main"
	}
	switch l.host {
	case HostGitHub:
		return fmt.Sprintf("%s/blob/%s/%s", l.base, ref, path)
	case HostGitLab:
		return fmt.Sprintf("%s/-/blob/%s/%s", l.base, ref, path)
	case HostBitbucket:
		return fmt.Sprintf("%s/src/%s/%s", l.base, ref, path)
	}
	return ""
}

// DiffURL links to the raw diff of a commit.
func (l Linker) DiffURL(id string) string {
	switch l.host {
	case HostGitHub:
		return l.base + "/commit/" + id + ".diff"
	case HostGitLab:
		return l.base + "/-/commit/" + id + ".diff"
	case HostBitbucket:
		return l.base + "/commits/" + id + "/raw"
	}
	return ""
}

// IssueURL links to an issue number.
func (l Linker) IssueURL(number string) string {
	switch l.host {
	case HostGitHub, HostBitbucket:
		return l.base + "/issues/" + number
	case HostGitLab:
		return l.base + "/-/issues/" + number
	}
	return ""
}

var issuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`(?i)\bissue\s+#?(\d+)`),
	regexp.MustCompile(`(?i)\bfix(?:es)?\s+#?(\d+)`),
	regexp.MustCompile(`(?i)\bclose[sd]?\s+#?(\d+)`),
	regexp.MustCompile(`(?i)\bresolve[sd]?\s+#?(\d+)`),
}

// IssueReferences extracts issue numbers mentioned in text, in first-seen order.
func IssueReferences(text string) []string {
	var refs []string
	seen := make(map[string]struct{})
	for _, re := range issuePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			refs = append(refs, m[1])
		}
	}
	return refs
}
