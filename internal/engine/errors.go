package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bianoble/dep-sync/internal/manifest"
)

// ErrUnresolved marks every failure to turn a commit-ish into a commit.
var ErrUnresolved = errors.New("commit-ish could not be resolved")

// AmbiguousRefError is returned when a hexsha prefix matches more than one
// commit.
type AmbiguousRefError struct {
	Repo       string
	Ref        string
	Candidates []string
}

func (e *AmbiguousRefError) Error() string {
	return fmt.Sprintf("hexsha prefix %s is ambiguous in %s: matches %s", e.Ref, e.Repo, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousRefError) Unwrap() error { return ErrUnresolved }

// ResolutionError is returned when freeze cannot resolve a commit-ish at all.
type ResolutionError struct {
	Repo string
	Ref  string
	Err  error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("commit-ish %s not found in %s", e.Ref, e.Repo)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnresolved}
	}
	return []error{ErrUnresolved, e.Err}
}

// MismatchError is returned when a repository is not at the expected commit
// after checkout, or before freeze. An empty Expected means the commit-ish
// never resolved.
type MismatchError struct {
	Repo     string
	Ref      string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("commit-ish %s not found in %s even after fetching, HEAD is %s", e.Ref, e.Repo, e.Actual)
	}
	return fmt.Sprintf("%s is not at the requested commit: expected hexsha %s (%s), found %s", e.Repo, e.Expected, e.Ref, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	if e.Expected == "" {
		return ErrUnresolved
	}
	return nil
}

// PolicyError is returned by freeze for a branch reference without the
// allow-branches override.
type PolicyError struct {
	Repo   string
	Branch string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s is a branch in %s; branches are not stable references, use --allow-branches to freeze it anyway", e.Branch, e.Repo)
}

// DirtyError is returned by freeze for a repository with local changes.
type DirtyError struct {
	Repo      string
	Modified  bool
	Untracked int
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("%s is dirty or contains untracked files (%s); commit or clean it before freezing", e.Repo, describeChanges(e.Modified, e.Untracked))
}

// MissingRepoError is returned when a dependency directory does not exist
// and cannot be cloned.
type MissingRepoError struct {
	Dir  string
	Line manifest.InputLine
	// Reason explains why the directory could not be created.
	Reason string
}

func (e *MissingRepoError) Error() string {
	return fmt.Sprintf("dependency directory %s does not exist (%s), needed by %s", e.Dir, e.Reason, e.Line.Location())
}

// describeChanges renders "local changes and 2 untracked files".
func describeChanges(modified bool, untracked int) string {
	var parts []string
	if modified {
		parts = append(parts, "local changes")
	}
	if untracked > 0 {
		parts = append(parts, Pluralize(untracked, "untracked file"))
	}
	return strings.Join(parts, " and ")
}
