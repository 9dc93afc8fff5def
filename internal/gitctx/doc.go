// Package gitctx collects context file paths from a git repository.
//
// [ChangedFiles] lists files modified relative to HEAD plus untracked files;
// [TrackedFiles] lists every tracked file. Both shell out to git and filter
// the result by include/exclude glob patterns. The paths feed the context
// signature computed by package keys.
package gitctx
