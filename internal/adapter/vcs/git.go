package vcs

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// GitProvider implements port.VCSProvider using the git CLI.
type GitProvider struct {
	binary string
}

// NewGitProvider creates a new Git VCS provider.
func NewGitProvider() *GitProvider {
	return &GitProvider{binary: "git"}
}

// Clone makes a shallow clone of url into dest.
func (g *GitProvider) Clone(ctx context.Context, repoURL string, dest string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, "clone", "--depth=1", repoURL, dest)
	cmd.Stderr = &stderr
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	slog.Info("cloning repository", "url", Redact(repoURL))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return &port.FetchError{URL: Redact(repoURL), Stderr: redactSecret(msg, repoURL)}
	}
	return nil
}

// WithToken embeds an access token in an https URL as its user info.
// Other URLs are returned unchanged.
func WithToken(repoURL, token string) string {
	if token == "" || !strings.HasPrefix(repoURL, "https://") {
		return repoURL
	}
	return "https://" + token + "@" + strings.TrimPrefix(repoURL, "https://")
}

// Redact removes credentials from a URL for logging.
func Redact(repoURL string) string {
	u, err := url.Parse(repoURL)
	if err != nil || u.User == nil {
		return repoURL
	}
	u.User = url.User("***")
	return u.String()
}

// redactSecret hides the credential of repoURL wherever it appears in msg.
func redactSecret(msg, repoURL string) string {
	u, err := url.Parse(repoURL)
	if err != nil || u.User == nil {
		return msg
	}
	if secret := u.User.String(); secret != "" {
		msg = strings.ReplaceAll(msg, secret, "***")
	}
	return msg
}

// IsRemote reports whether s names a remote git repository rather than a local path.
func IsRemote(s string) bool {
	switch {
	case strings.HasPrefix(s, "https://github.com"), strings.HasPrefix(s, "git@github.com"):
		return true
	case strings.HasPrefix(s, "git@"), strings.HasPrefix(s, "ssh://"):
		return true
	case strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://"):
		return strings.HasSuffix(s, ".git") ||
			strings.Contains(s, "gitlab.com/") ||
			strings.Contains(s, "bitbucket.org/")
	}
	return false
}

// RepoName derives a project name from a remote URL: the last path element without ".git".
func RepoName(repoURL string) string {
	name := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "repository"
	}
	return name
}

var _ port.VCSProvider = (*GitProvider)(nil)
