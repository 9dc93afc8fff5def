package gitctx

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Options controls which paths are collected.
type Options struct {
	// Dir is the working directory git runs in. Empty means the current
	// directory. Returned paths are joined with Dir.
	Dir     string
	Include []string
	Exclude []string
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(dir string) (string, error) {
	root, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(root), nil
}

// ChangedFiles returns files that differ from HEAD plus untracked files that
// are not ignored. In a repository without commits every staged file counts
// as changed. Paths are limited to the working directory's subtree.
func ChangedFiles(opts Options) ([]string, error) {
	if _, err := RepoRoot(opts.Dir); err != nil {
		return nil, err
	}

	changed, err := gitOutput(opts.Dir, "diff", "--name-only", "--relative", "HEAD")
	if err != nil {
		// No HEAD yet: everything in the index is new.
		changed, err = gitOutput(opts.Dir, "ls-files", "--cached")
		if err != nil {
			return nil, fmt.Errorf("git diff --name-only HEAD: %w", err)
		}
	}
	untracked, err := gitOutput(opts.Dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("git ls-files --others: %w", err)
	}
	return collect(opts, changed, untracked), nil
}

// TrackedFiles returns every file git tracks under the working directory.
func TrackedFiles(opts Options) ([]string, error) {
	out, err := gitOutput(opts.Dir, "ls-files")
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	return collect(opts, out), nil
}

// collect splits git output into paths, applies the include and exclude
// filters, dedupes and sorts.
func collect(opts Options, outputs ...string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, out := range outputs {
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			if len(opts.Include) > 0 && !MatchesAny(line, opts.Include) {
				continue
			}
			if len(opts.Exclude) > 0 && MatchesAny(line, opts.Exclude) {
				continue
			}
			files = append(files, line)
		}
	}
	sort.Strings(files)
	if opts.Dir != "" {
		for i, f := range files {
			files[i] = filepath.Join(opts.Dir, filepath.FromSlash(f))
		}
	}
	return files
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
