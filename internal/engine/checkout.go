package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"

	"github.com/bianoble/dep-sync/internal/manifest"
	"github.com/bianoble/dep-sync/internal/sandbox"
	"github.com/bianoble/dep-sync/internal/vcs"
)

// StashMessage labels the stash entries checkout creates.
const StashMessage = "dep-sync checkout"

// BranchStrategy selects how upstream changes reach a local branch.
type BranchStrategy string

const (
	BranchFastForward BranchStrategy = "ff-only"
	BranchRebase      BranchStrategy = "rebase"
	BranchMerge       BranchStrategy = "merge"
	// BranchNoPull leaves the branch alone and only warns when it differs
	// from its remotes.
	BranchNoPull BranchStrategy = "no"
)

// ParseBranchStrategy validates a strategy name. Empty selects
// BranchFastForward.
func ParseBranchStrategy(s string) (BranchStrategy, error) {
	switch BranchStrategy(s) {
	case "", BranchFastForward:
		return BranchFastForward, nil
	case BranchRebase, BranchMerge, BranchNoPull:
		return BranchStrategy(s), nil
	}
	return "", fmt.Errorf("invalid branch strategy %q: must be one of: ff-only, rebase, merge, no", s)
}

func (s BranchStrategy) pullMode() (vcs.PullMode, bool) {
	switch s {
	case BranchRebase:
		return vcs.PullRebase, true
	case BranchMerge:
		return vcs.PullMerge, true
	case BranchNoPull:
		return "", false
	default:
		return vcs.PullFastForward, true
	}
}

// CheckoutOptions configures a checkout run.
type CheckoutOptions struct {
	NoStash   bool
	FetchTags TagFetchPolicy
	Branches  BranchStrategy
}

// CheckoutEngine brings every dependency to the revision its manifest line
// asks for.
type CheckoutEngine struct {
	Workspace vcs.Workspace
	Out       *Reporter
	Confirm   ConfirmFunc
}

// Checkout processes deps in order. mainRoot is the working tree of the
// project holding the manifest; dependencies live next to it. The first
// failure stops the run.
func (e *CheckoutEngine) Checkout(ctx context.Context, mainRoot string, deps []manifest.Dependency, opts CheckoutOptions) (*CheckoutResult, error) {
	result := &CheckoutResult{}
	container := filepath.Dir(filepath.Clean(mainRoot))

	for _, dep := range deps {
		e.Out.Header(dep.Path)
		rr, err := e.checkoutOne(ctx, mainRoot, container, dep, opts)
		if err != nil {
			return result, err
		}
		result.Repos = append(result.Repos, rr)
		result.Tally.Dependencies++
		result.Tally.Add(rr.Kind)
		if rr.Cloned {
			result.Tally.Cloned++
		}
	}

	e.Out.Printf("%s", result.Summary())
	return result, nil
}

func (e *CheckoutEngine) checkoutOne(ctx context.Context, mainRoot, container string, dep manifest.Dependency, opts CheckoutOptions) (RepoResult, error) {
	log := clog.FromContext(ctx).With("dependency", dep.Path)
	rr := RepoResult{Path: dep.Path}

	dir, err := sandbox.DependencyDir(container, dep.Path)
	if err != nil {
		return rr, fmt.Errorf("%s: %w", dep.Line.Location(), err)
	}
	rr.Dir = dir

	repo, cloned, err := e.locateOrClone(ctx, mainRoot, dir, dep)
	if err != nil {
		return rr, err
	}
	rr.Cloned = cloned

	if dep.CommitIsh == "" {
		e.Out.Printf("no commit-ish given, leaving %s as it is", dir)
		head, err := repo.Head()
		if err != nil {
			return rr, err
		}
		rr.Head = head
		return rr, nil
	}

	ref, err := Classify(repo, dep.CommitIsh)
	if err != nil {
		return rr, err
	}
	ref, err = ref.FetchIfNeeded(ctx, FetchPolicy{Tags: opts.FetchTags, Confirm: e.Confirm})
	if err != nil {
		return rr, err
	}
	rr.Kind = ref.Kind()
	log.Debugf("%s classified as %s", dep.CommitIsh, ref.Kind())

	st, err := repo.Status(ctx)
	if err != nil {
		return rr, err
	}
	update := func() error { return e.update(ctx, repo, ref, opts.Branches) }
	switch {
	case !st.Dirty():
		err = update()
	case opts.NoStash:
		e.Out.Printf("%s contains %s", dir, describeChanges(st.Modified, len(st.Untracked)))
		err = update()
	default:
		e.Out.Printf("%s contains %s", dir, describeChanges(st.Modified, len(st.Untracked)))
		rr.Stashed = true
		err = e.stashing(ctx, repo, update)
	}
	if err != nil {
		return rr, err
	}

	head, err := verify(repo, ref)
	if err != nil {
		return rr, err
	}
	rr.Head = head
	e.Out.Printf("%s %s is at %s", ref.Kind(), dep.CommitIsh, head)
	return rr, nil
}

func (e *CheckoutEngine) locateOrClone(ctx context.Context, mainRoot, dir string, dep manifest.Dependency) (vcs.Repository, bool, error) {
	_, err := os.Stat(dir)
	if err == nil {
		repo, err := e.Workspace.Open(dir)
		return repo, false, err
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("checking %s: %w", dir, err)
	}

	if dep.CloneURL == "" {
		return nil, false, &MissingRepoError{Dir: dir, Line: dep.Line, Reason: "no clone URL given"}
	}
	e.Out.Printf("clone %s from %s", dep.Path, dep.CloneURL)
	repo, err := e.Workspace.Clone(ctx, dep.CloneURL, dir)
	if err != nil {
		return nil, false, err
	}
	notes, err := e.Workspace.CopyIdentity(ctx, mainRoot, dir)
	if err != nil {
		return nil, true, err
	}
	for _, n := range notes {
		e.Out.Printf("%s", n)
	}
	return repo, true, nil
}

// stashing saves local changes around fn. The stash is always popped, and a
// pop failure is reported alongside any error from fn.
func (e *CheckoutEngine) stashing(ctx context.Context, repo vcs.Repository, fn func() error) (err error) {
	e.Out.Printf("Stashing %s", repo.Dir())
	if err := repo.StashPush(ctx, StashMessage); err != nil {
		return err
	}
	defer func() {
		if popErr := repo.StashPop(ctx); popErr != nil {
			err = errors.Join(err, popErr)
			return
		}
		e.Out.Printf("Popped stash in %s", repo.Dir())
	}()
	return fn()
}

func (e *CheckoutEngine) update(ctx context.Context, repo vcs.Repository, ref CommitIsh, strategy BranchStrategy) error {
	switch ref.Kind() {
	case KindTag, KindHexsha:
		return repo.CheckoutDetached(ctx, ref.Hash())

	case KindBranch:
		current, onBranch, err := repo.CurrentBranch()
		if err != nil {
			return err
		}
		if !onBranch || current != ref.Ref() {
			if err := repo.CheckoutBranch(ctx, ref.Ref()); err != nil {
				return err
			}
		}
		if mode, pull := strategy.pullMode(); pull {
			return repo.Pull(ctx, mode)
		}
		return e.compareRemotes(ctx, repo, ref.Ref())

	default:
		return nil
	}
}

// compareRemotes warns about every remote whose copy of branch differs from
// the local one.
func (e *CheckoutEngine) compareRemotes(ctx context.Context, repo vcs.Repository, branch string) error {
	local, err := repo.BranchCommit(branch)
	if err != nil {
		return err
	}
	remotes, err := repo.RemoteBranchCommits(branch)
	if err != nil {
		return err
	}
	for remote, hash := range remotes {
		if hash != local {
			e.Out.Printf("Local %s=%s does not match %s: %s!", branch, local, remote, hash)
			clog.FromContext(ctx).Warnf("%s: local %s differs from %s/%s", repo.Dir(), branch, remote, branch)
		}
	}
	return nil
}

// verify checks HEAD against the classified target and returns HEAD.
func verify(repo vcs.Repository, ref CommitIsh) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", err
	}

	var want string
	switch ref.Kind() {
	case KindTag, KindHexsha:
		want = ref.Hash()
	case KindBranch:
		current, onBranch, err := repo.CurrentBranch()
		if err != nil {
			return "", err
		}
		if !onBranch || current != ref.Ref() {
			return "", fmt.Errorf("%s: expected branch %s to be checked out, HEAD is %s", repo.Dir(), ref.Ref(), head)
		}
		if want, err = repo.BranchCommit(ref.Ref()); err != nil {
			return "", err
		}
	default:
		return "", &MismatchError{Repo: repo.Dir(), Ref: ref.Ref(), Actual: head}
	}

	if head != want {
		return "", &MismatchError{Repo: repo.Dir(), Ref: ref.Ref(), Expected: want, Actual: head}
	}
	return head, nil
}
