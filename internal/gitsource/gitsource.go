// Package gitsource keeps local clones of git repositories holding card files.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// IsURL reports whether src looks like a git remote rather than a local path.
func IsURL(src string) bool {
	return strings.HasSuffix(src, ".git") ||
		strings.HasPrefix(src, "git@") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "file://")
}

// LocalPath maps a remote URL to a directory under baseDir, e.g.
// https://github.com/a/b.git -> baseDir/github.com/a/b.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") && parsed.Host != "" {
		return filepath.Join(baseDir, parsed.Host, strings.TrimSuffix(parsed.Path, ".git")), nil
	}
	if err == nil && parsed.Scheme == "file" {
		return filepath.Join(baseDir, "local", strings.TrimSuffix(parsed.Path, ".git")), nil
	}
	if filepath.IsAbs(repoURL) {
		return filepath.Join(baseDir, "local", strings.TrimSuffix(repoURL, ".git")), nil
	}

	// scp-like syntax: git@host:owner/repo.git
	if userHost, repoPath, ok := strings.Cut(repoURL, ":"); ok && strings.Contains(userHost, "@") {
		_, host, _ := strings.Cut(userHost, "@")
		if host != "" && repoPath != "" {
			return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}

// Sync clones repoURL into localPath, or pulls if a clone is already there.
// progress may be nil. A nil logger logs to the default logger.
func Sync(ctx context.Context, repoURL, localPath string, progress io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default().With("component", "gitsource")
	}

	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("cloning repository", "url", repoURL, "path", localPath)
		if _, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Progress: progress,
		}); err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	logger.Info("pulling repository", "path", localPath)
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
	}
	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Progress:   progress,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
	}
	return nil
}
