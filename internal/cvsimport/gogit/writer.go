// Package gogit adapts go-git/v5 into a local, in-process export sink:
// the same commit-per-changeset contract the exporter drives against the
// `git fast-import` pipe, useful for tests and small repositories where
// shelling out is unnecessary.
package gogit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FileOp is one per-file action within a changeset commit.
type FileOp struct {
	Path    string
	Deleted bool
	Exec    bool // true selects mode 0755, false 0644
	Content []byte
}

// Sink commits changesets directly into a go-git-backed repository,
// implementing the same "one commit per changeset, in order" contract as
// the fast-import byte stream the exec sink emits.
type Sink struct {
	path       string
	ref        string
	repo       *git.Repository
	worktree   *git.Worktree
	lastCommit plumbing.Hash
}

// NewSink returns a Sink that will operate on the repository at path.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Open initializes (or opens) the target repository and points HEAD at
// ref, creating it lazily on the first commit the way fast-import does.
func (s *Sink) Open(ref string) error {
	if ref == "" {
		ref = "refs/cvs/HEAD"
	}
	s.ref = ref

	repo, err := git.PlainOpen(s.path)
	if err != nil {
		if err := os.MkdirAll(s.path, 0755); err != nil {
			return fmt.Errorf("gogit: create repository dir: %w", err)
		}
		repo, err = git.PlainInit(s.path, false)
		if err != nil {
			return fmt.Errorf("gogit: init repository: %w", err)
		}
	}
	s.repo = repo

	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.ReferenceName(ref))
	if err := repo.Storer.SetReference(head); err != nil {
		return fmt.Errorf("gogit: point HEAD at %s: %w", ref, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("gogit: get worktree: %w", err)
	}
	s.worktree = worktree

	if existing, err := repo.Reference(plumbing.ReferenceName(ref), true); err == nil {
		s.lastCommit = existing.Hash()
	}

	return nil
}

// Commit applies ops to the worktree and creates a commit authored and
// committed by (name, email) at timestamp, returning the resulting commit
// hash as the sink's opaque mark.
func (s *Sink) Commit(name, email string, timestamp time.Time, log string, ops []FileOp) (string, error) {
	if s.repo == nil || s.worktree == nil {
		return "", fmt.Errorf("gogit: sink not opened")
	}

	for _, op := range ops {
		fullPath := filepath.Join(s.path, op.Path)

		if op.Deleted {
			if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
				return "", fmt.Errorf("gogit: remove %s: %w", op.Path, err)
			}
			if _, err := s.worktree.Remove(op.Path); err != nil {
				// Not tracked yet (e.g. delete arriving before any add was
				// ever committed for this path); nothing further to do.
				continue
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return "", fmt.Errorf("gogit: create directory for %s: %w", op.Path, err)
		}
		perm := os.FileMode(0644)
		if op.Exec {
			perm = 0755
		}
		if err := os.WriteFile(fullPath, op.Content, perm); err != nil {
			return "", fmt.Errorf("gogit: write %s: %w", op.Path, err)
		}
		if _, err := s.worktree.Add(op.Path); err != nil {
			return "", fmt.Errorf("gogit: stage %s: %w", op.Path, err)
		}
	}

	sig := &object.Signature{Name: name, Email: email, When: timestamp}
	hash, err := s.worktree.Commit(log, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            sig,
		Committer:         sig,
	})
	if err != nil {
		return "", fmt.Errorf("gogit: commit: %w", err)
	}

	s.lastCommit = hash
	return hash.String(), nil
}

// Close is a no-op; go-git has no persistent handle to release beyond the
// filesystem writes already made.
func (s *Sink) Close() error {
	return nil
}
