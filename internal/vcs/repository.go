package vcs

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotRepository is returned by Open when the directory exists but is not
// a git working tree.
var ErrNotRepository = errors.New("not a git repository")

// PullMode selects how upstream changes are integrated into a local branch.
type PullMode string

const (
	PullFastForward PullMode = "ff-only"
	PullRebase      PullMode = "rebase"
	PullMerge       PullMode = "merge"
)

// Status summarises uncommitted state in a working tree.
type Status struct {
	Modified  bool
	Untracked []string
}

// Dirty reports whether the working tree has modifications or untracked files.
func (s Status) Dirty() bool {
	return s.Modified || len(s.Untracked) > 0
}

// Repository is the set of version-control operations the engines need from
// one dependency repository.
type Repository interface {
	// Dir returns the working tree root.
	Dir() string

	HasTag(name string) (bool, error)
	// TagCommit returns the commit a tag points at, peeling annotated tags.
	TagCommit(name string) (string, error)

	// HasBranch reports whether name is a local branch or a branch of any
	// remote.
	HasBranch(name string) (bool, error)
	// BranchCommit returns the tip of the local branch, falling back to the
	// first remote carrying it.
	BranchCommit(name string) (string, error)
	// RemoteBranchCommits maps remote name to the tip of name on that remote.
	RemoteBranchCommits(name string) (map[string]string, error)

	// FindCommits returns the distinct full hashes, across local and remote
	// history, that start with prefix (case-insensitive). A prefix that is
	// not hexadecimal matches nothing.
	FindCommits(prefix string) ([]string, error)
	// ResolveRevision resolves any revision expression to a full hash.
	ResolveRevision(rev string) (string, error)

	Head() (string, error)
	// CurrentBranch returns the checked out branch; false when HEAD is
	// detached.
	CurrentBranch() (string, bool, error)

	Status(ctx context.Context) (Status, error)
	// Fetch fetches all remotes including tags.
	Fetch(ctx context.Context, force bool) error
	CheckoutDetached(ctx context.Context, rev string) error
	CheckoutBranch(ctx context.Context, name string) error
	Pull(ctx context.Context, mode PullMode) error
	StashPush(ctx context.Context, message string) error
	StashPop(ctx context.Context) error
}

// Workspace opens and creates dependency repositories.
type Workspace interface {
	Open(dir string) (Repository, error)
	Clone(ctx context.Context, url, dir string) (Repository, error)
	// CopyIdentity copies user.name, user.email and core.autocrlf from the
	// repository at from into the one at to, where to does not set them
	// itself. It returns a note for every value from does not define.
	CopyIdentity(ctx context.Context, from, to string) ([]string, error)
	// Siblings lists the git working trees next to root, root included.
	Siblings(root string) ([]string, error)
}

// RepoError is an error tied to an operation on one repository.
type RepoError struct {
	Repo      string
	Operation string
	Err       error
	Hint      string
}

func (e *RepoError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %s", e.Repo, e.Operation, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *RepoError) Unwrap() error {
	return e.Err
}
