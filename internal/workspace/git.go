// Package workspace provides an optional git-backed audit trail over
// the canvas workspace root, adapted from a per-workspace git manager
// into a single-root commit log: every settled sync batch can be
// checkpointed as one commit, giving a reviewable history of what the
// filesystem side looked like over time independent of the sqlite
// event log in internal/history.
package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// AuditTrail wraps a git repository rooted at the canvas workspace
// directory. Methods do not accept a nil receiver; callers that don't
// want git involvement simply don't construct one. internal/sync does
// not use an AuditTrail, and no caller invokes Checkpoint, so commits
// are never made automatically.
type AuditTrail struct {
	root string
}

// Open initializes (or opens an existing) git repository at root. It
// is safe to call repeatedly; PlainInit on an already-initialized
// directory is treated as "already open."
func Open(root string) (*AuditTrail, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if _, err := git.PlainOpen(absRoot); err != nil {
		if _, err := git.PlainInit(absRoot, false); err != nil {
			return nil, fmt.Errorf("workspace: init git repo: %w", err)
		}
		slog.Info("workspace: initialized audit trail repository", "component", "workspace", "root", absRoot)
	}
	return &AuditTrail{root: absRoot}, nil
}

// Checkpoint stages every change under root and commits it with
// message, attributed to the given author. An empty commit (no
// staged changes) is not an error; it is simply skipped and "" is
// returned.
func (a *AuditTrail) Checkpoint(message, author string) (string, error) {
	repo, err := git.PlainOpen(a.root)
	if err != nil {
		return "", fmt.Errorf("workspace: open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("workspace: worktree: %w", err)
	}
	if err := wt.AddGlob("."); err != nil {
		return "", fmt.Errorf("workspace: stage changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("workspace: status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: "canvas-sync@localhost", When: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("workspace: commit: %w", err)
	}
	slog.Debug("workspace: checkpoint committed", "component", "workspace", "commit", hash.String())
	return hash.String(), nil
}

// History returns up to limit commits, most recent first.
func (a *AuditTrail) History(limit int) ([]object.Commit, error) {
	repo, err := git.PlainOpen(a.root)
	if err != nil {
		return nil, fmt.Errorf("workspace: open repo: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("workspace: log: %w", err)
	}
	defer iter.Close()

	var commits []object.Commit
	for len(commits) < limit {
		c, err := iter.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		commits = append(commits, *c)
	}
	return commits, nil
}

// ReadFileAtCommit returns relPath's content as of commitHash.
func (a *AuditTrail) ReadFileAtCommit(relPath, commitHash string) (string, error) {
	repo, err := git.PlainOpen(a.root)
	if err != nil {
		return "", fmt.Errorf("workspace: open repo: %w", err)
	}
	c, err := repo.CommitObject(plumbing.NewHash(commitHash))
	if err != nil {
		return "", fmt.Errorf("workspace: resolve commit: %w", err)
	}
	tree, err := c.Tree()
	if err != nil {
		return "", fmt.Errorf("workspace: commit tree: %w", err)
	}
	f, err := tree.File(relPath)
	if err != nil {
		return "", fmt.Errorf("workspace: file not found at commit: %w", err)
	}
	r, err := f.Reader()
	if err != nil {
		return "", fmt.Errorf("workspace: open file reader: %w", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("workspace: read file at commit: %w", err)
	}
	return string(b), nil
}

// HeadCommit returns the current HEAD hash, or "" if the repository
// has no commits yet.
func (a *AuditTrail) HeadCommit() (string, error) {
	repo, err := git.PlainOpen(a.root)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", nil
	}
	return ref.Hash().String(), nil
}

// EnsureIgnore appends each given pattern to root's .gitignore unless
// a line for it is already present. cmd/canvas-sync passes the
// sentinel file and the history database path.
func EnsureIgnore(root string, patterns ...string) error {
	path := filepath.Join(root, ".gitignore")
	existing, _ := os.ReadFile(path)
	content := string(existing)
	for _, p := range patterns {
		if !containsLine(content, p) {
			content += p + "\n"
		}
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func containsLine(content, line string) bool {
	for _, l := range splitLines(content) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
