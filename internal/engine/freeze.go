package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/bianoble/dep-sync/internal/manifest"
	"github.com/bianoble/dep-sync/internal/sandbox"
	"github.com/bianoble/dep-sync/internal/vcs"
)

// FrozenPrefix turns a replaced manifest line into a comment.
const FrozenPrefix = "# "

// FreezeOptions configures a freeze run.
type FreezeOptions struct {
	// AllowBranches pins branch references to their current tip instead of
	// failing.
	AllowBranches bool
}

// FreezeEngine rewrites a manifest so every dependency names a full commit
// hash.
type FreezeEngine struct {
	Workspace vcs.Workspace
	Out       *Reporter
}

// Freeze produces the rewritten manifest lines. Dependencies must already
// be checked out and clean. After a failure the lines produced so far are
// returned with the error.
func (e *FreezeEngine) Freeze(ctx context.Context, mainRoot string, m *manifest.Manifest, opts FreezeOptions) (*FreezeResult, error) {
	result := &FreezeResult{}

	// Undefined variables and duplicate paths fail before any repository
	// is looked at.
	if _, err := m.Dependencies(); err != nil {
		return result, err
	}

	container := filepath.Dir(filepath.Clean(mainRoot))
	vars := manifest.Variables{}
	for _, line := range m.Lines {
		next, dep, err := manifest.Step(vars, line)
		if err != nil {
			return result, err
		}
		vars = next
		if dep == nil {
			result.Lines = append(result.Lines, line.Input().Text)
			continue
		}

		e.Out.Header(dep.Path)
		lines, kind, err := e.freezeOne(ctx, container, line.(manifest.DependencySpec), *dep, opts)
		if err != nil {
			return result, err
		}
		result.Lines = append(result.Lines, lines...)
		result.Tally.Dependencies++
		result.Tally.Add(kind)
	}

	e.Out.Printf("%s", result.Summary())
	return result, nil
}

func (e *FreezeEngine) freezeOne(ctx context.Context, container string, spec manifest.DependencySpec, dep manifest.Dependency, opts FreezeOptions) ([]string, Kind, error) {
	text := spec.Line.Text

	dir, err := sandbox.DependencyDir(container, dep.Path)
	if err != nil {
		return nil, KindUnknown, fmt.Errorf("%s: %w", dep.Line.Location(), err)
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, KindUnknown, &MissingRepoError{Dir: dir, Line: dep.Line, Reason: "run checkout first"}
		}
		return nil, KindUnknown, fmt.Errorf("checking %s: %w", dir, err)
	}
	repo, err := e.Workspace.Open(dir)
	if err != nil {
		return nil, KindUnknown, err
	}

	st, err := repo.Status(ctx)
	if err != nil {
		return nil, KindUnknown, err
	}
	if st.Dirty() {
		return nil, KindUnknown, &DirtyError{Repo: dir, Modified: st.Modified, Untracked: len(st.Untracked)}
	}

	if dep.CommitIsh == "" {
		e.Out.Printf("no commit-ish given, keeping %s as it is", dep.Path)
		clog.FromContext(ctx).Warnf("%s has no commit-ish and cannot be frozen", dep.Line.Location())
		return []string{text}, KindUnknown, nil
	}

	kind, target, err := resolveForFreeze(repo, dep.CommitIsh, opts)
	if err != nil {
		return nil, kind, err
	}
	e.Out.Printf("%s %s is %s", kind, dep.CommitIsh, target)

	head, err := repo.Head()
	if err != nil {
		return nil, kind, err
	}
	if head != target {
		return nil, kind, &MismatchError{Repo: dir, Ref: dep.CommitIsh, Expected: target, Actual: head}
	}

	if dep.CommitIsh == target {
		return []string{text}, kind, nil
	}
	fields := []string{spec.Path, target}
	if spec.URL != "" {
		fields = append(fields, spec.URL)
	}
	return []string{FrozenPrefix + text, AlignColumns(FrozenPrefix, text, fields)}, kind, nil
}

// resolveForFreeze turns ref into a full hash without fetching: tag, then
// branch, then hexsha prefix, then any revision expression git accepts.
func resolveForFreeze(repo vcs.Repository, ref string, opts FreezeOptions) (Kind, string, error) {
	isTag, err := repo.HasTag(ref)
	if err != nil {
		return KindUnknown, "", err
	}
	if isTag {
		hash, err := repo.TagCommit(ref)
		return KindTag, hash, err
	}

	isBranch, err := repo.HasBranch(ref)
	if err != nil {
		return KindUnknown, "", err
	}
	if isBranch {
		if !opts.AllowBranches {
			return KindBranch, "", &PolicyError{Repo: repo.Dir(), Branch: ref}
		}
		hash, err := repo.BranchCommit(ref)
		return KindBranch, hash, err
	}

	hash, found, err := findHexsha(repo, ref)
	if err != nil {
		return KindUnknown, "", err
	}
	if found {
		return KindHexsha, hash, nil
	}

	hash, err = repo.ResolveRevision(ref)
	if err != nil {
		return KindUnknown, "", &ResolutionError{Repo: repo.Dir(), Ref: ref, Err: err}
	}
	return KindHexsha, strings.ToLower(hash), nil
}
