package gitx

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const gitTimeout = 3 * time.Second

// DiffStats summarizes uncommitted changes in a working tree.
type DiffStats struct {
	FilesChanged int `json:"filesChanged"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
}

func git(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Branch returns the checked-out branch name, or "" for a detached HEAD or
// a directory that is not a repository.
func Branch(dir string) string {
	out, err := git(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || out == "HEAD" {
		return ""
	}
	return out
}

// RemoteURL returns the origin remote normalized to a browsable https URL,
// or "" when there is none.
func RemoteURL(dir string) string {
	out, err := git(dir, "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return NormalizeRemote(out)
}

// NormalizeRemote converts ssh-style remotes (git@host:owner/repo.git) to
// https and strips the .git suffix.
func NormalizeRemote(remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return ""
	}

	if strings.HasPrefix(remote, "git@") {
		rest := strings.TrimPrefix(remote, "git@")
		if i := strings.Index(rest, ":"); i > 0 {
			remote = "https://" + rest[:i] + "/" + rest[i+1:]
		}
	}
	remote = strings.TrimSuffix(remote, ".git")

	if strings.HasPrefix(remote, "https://") || strings.HasPrefix(remote, "http://") {
		return remote
	}
	return ""
}

// Diff computes diff stats for uncommitted changes against HEAD.
func Diff(dir string) DiffStats {
	out, err := git(dir, "diff", "--shortstat", "HEAD")
	if err != nil {
		return DiffStats{}
	}
	return ParseShortStat(out)
}

// ParseShortStat parses git's shortstat line, e.g.
// " 3 files changed, 42 insertions(+), 7 deletions(-)". Any of the three
// clauses may be absent.
func ParseShortStat(line string) DiffStats {
	var stats DiffStats
	for _, part := range strings.Split(line, ",") {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(fields[1], "file"):
			stats.FilesChanged = n
		case strings.HasPrefix(fields[1], "insertion"):
			stats.Additions = n
		case strings.HasPrefix(fields[1], "deletion"):
			stats.Deletions = n
		}
	}
	return stats
}
