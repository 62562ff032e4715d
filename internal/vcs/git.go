package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// hashHexSize is the length of a full SHA-1 commit id in hex.
var hashHexSize = len(plumbing.ZeroHash.String())

// GitRepository implements Repository. Queries go through go-git; anything
// that touches the network or the working tree runs the git binary.
type GitRepository struct {
	dir  string
	repo *git.Repository
}

var _ Repository = (*GitRepository)(nil)

// Open opens the working tree at dir.
func Open(dir string) (*GitRepository, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, &RepoError{Repo: dir, Operation: "open", Err: ErrNotRepository}
	}
	if err != nil {
		return nil, &RepoError{Repo: dir, Operation: "open", Err: err}
	}
	return &GitRepository{dir: dir, repo: repo}, nil
}

// Clone clones url into dir with the git binary and opens the result.
func Clone(ctx context.Context, url, dir string) (*GitRepository, error) {
	if _, err := runGit(ctx, "", "clone", url, dir); err != nil {
		return nil, &RepoError{Repo: dir, Operation: "clone", Err: err, Hint: "check the clone URL and your credentials"}
	}
	return Open(dir)
}

func (r *GitRepository) Dir() string { return r.dir }

// reopen drops go-git's view of the repository after the git binary changed
// it behind its back.
func (r *GitRepository) reopen() error {
	repo, err := git.PlainOpen(r.dir)
	if err != nil {
		return &RepoError{Repo: r.dir, Operation: "open", Err: err}
	}
	r.repo = repo
	return nil
}

func (r *GitRepository) HasTag(name string) (bool, error) {
	_, err := r.repo.Tag(name)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &RepoError{Repo: r.dir, Operation: "look up tag " + name, Err: err}
	}
	return true, nil
}

func (r *GitRepository) TagCommit(name string) (string, error) {
	ref, err := r.repo.Tag(name)
	if err != nil {
		return "", &RepoError{Repo: r.dir, Operation: "look up tag " + name, Err: err}
	}
	tag, err := r.repo.TagObject(ref.Hash())
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// Lightweight tag.
		return ref.Hash().String(), nil
	case err != nil:
		return "", &RepoError{Repo: r.dir, Operation: "read tag " + name, Err: err}
	}
	commit, err := tag.Commit()
	if err != nil {
		return "", &RepoError{Repo: r.dir, Operation: "peel tag " + name, Err: err}
	}
	return commit.Hash.String(), nil
}

func (r *GitRepository) HasBranch(name string) (bool, error) {
	if _, err := r.localBranch(name); err == nil {
		return true, nil
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, &RepoError{Repo: r.dir, Operation: "look up branch " + name, Err: err}
	}
	remotes, err := r.RemoteBranchCommits(name)
	if err != nil {
		return false, err
	}
	return len(remotes) > 0, nil
}

func (r *GitRepository) BranchCommit(name string) (string, error) {
	ref, err := r.localBranch(name)
	if err == nil {
		return ref.Hash().String(), nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", &RepoError{Repo: r.dir, Operation: "look up branch " + name, Err: err}
	}

	remotes, err := r.RemoteBranchCommits(name)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(remotes))
	for remote := range remotes {
		names = append(names, remote)
	}
	if len(names) == 0 {
		return "", &RepoError{Repo: r.dir, Operation: "look up branch " + name, Err: plumbing.ErrReferenceNotFound}
	}
	sort.Strings(names)
	return remotes[names[0]], nil
}

func (r *GitRepository) RemoteBranchCommits(name string) (map[string]string, error) {
	remotes, err := r.repo.Remotes()
	if err != nil {
		return nil, &RepoError{Repo: r.dir, Operation: "list remotes", Err: err}
	}
	result := make(map[string]string)
	for _, remote := range remotes {
		remoteName := remote.Config().Name
		ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, name), true)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			continue
		}
		if err != nil {
			return nil, &RepoError{Repo: r.dir, Operation: "look up " + remoteName + "/" + name, Err: err}
		}
		result[remoteName] = ref.Hash().String()
	}
	return result, nil
}

func (r *GitRepository) localBranch(name string) (*plumbing.Reference, error) {
	return r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
}

func (r *GitRepository) FindCommits(prefix string) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if !isHex(prefix) {
		return nil, nil
	}

	if len(prefix) == hashHexSize {
		if _, err := r.repo.CommitObject(plumbing.NewHash(prefix)); err == nil {
			return []string{prefix}, nil
		}
	}

	tips, err := r.historyTips()
	if err != nil {
		return nil, err
	}

	// visited is shared between walks so common history is read once.
	visited := make(map[plumbing.Hash]bool)
	var matches []string
	for _, tip := range tips {
		iter := object.NewCommitPreorderIter(tip, visited, nil)
		err := iter.ForEach(func(c *object.Commit) error {
			visited[c.Hash] = true
			if h := c.Hash.String(); strings.HasPrefix(h, prefix) {
				matches = append(matches, h)
			}
			return nil
		})
		iter.Close()
		if err != nil {
			return nil, &RepoError{Repo: r.dir, Operation: "walk history", Err: err}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// historyTips returns the commits at HEAD and at every local branch,
// remote-tracking branch and tag. Other refs, such as refs/stash, are not
// history.
func (r *GitRepository) historyTips() ([]*object.Commit, error) {
	var hashes []plumbing.Hash
	if head, err := r.repo.Head(); err == nil {
		hashes = append(hashes, head.Hash())
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, &RepoError{Repo: r.dir, Operation: "read HEAD", Err: err}
	}

	refs, err := r.repo.References()
	if err != nil {
		return nil, &RepoError{Repo: r.dir, Operation: "list references", Err: err}
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		if ref.Type() == plumbing.HashReference && (name.IsBranch() || name.IsRemote() || name.IsTag()) {
			hashes = append(hashes, ref.Hash())
		}
		return nil
	})
	if err != nil {
		return nil, &RepoError{Repo: r.dir, Operation: "list references", Err: err}
	}

	seen := make(map[plumbing.Hash]bool)
	var tips []*object.Commit
	for _, h := range hashes {
		c, err := r.peelToCommit(h)
		if err != nil {
			return nil, err
		}
		if c == nil || seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		tips = append(tips, c)
	}
	return tips, nil
}

// peelToCommit follows annotated tags down to a commit. It returns nil for
// tags of trees or blobs.
func (r *GitRepository) peelToCommit(h plumbing.Hash) (*object.Commit, error) {
	obj, err := r.repo.Object(plumbing.AnyObject, h)
	if err != nil {
		return nil, &RepoError{Repo: r.dir, Operation: "read object " + h.String(), Err: err}
	}
	for {
		switch o := obj.(type) {
		case *object.Commit:
			return o, nil
		case *object.Tag:
			obj, err = o.Object()
			if err != nil {
				return nil, &RepoError{Repo: r.dir, Operation: "peel tag " + o.Name, Err: err}
			}
		default:
			return nil, nil
		}
	}
}

func (r *GitRepository) ResolveRevision(rev string) (string, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", &RepoError{Repo: r.dir, Operation: "resolve " + rev, Err: err}
	}
	return h.String(), nil
}

func (r *GitRepository) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", &RepoError{Repo: r.dir, Operation: "read HEAD", Err: err}
	}
	return ref.Hash().String(), nil
}

func (r *GitRepository) CurrentBranch() (string, bool, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", false, &RepoError{Repo: r.dir, Operation: "read HEAD", Err: err}
	}
	if !ref.Name().IsBranch() {
		return "", false, nil
	}
	return ref.Name().Short(), true, nil
}

// ListBranches returns the local branch names, sorted.
func (r *GitRepository) ListBranches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, &RepoError{Repo: r.dir, Operation: "list branches", Err: err}
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, &RepoError{Repo: r.dir, Operation: "list branches", Err: err}
	}
	sort.Strings(names)
	return names, nil
}

// HeadMessage returns the commit message of HEAD.
func (r *GitRepository) HeadMessage() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", &RepoError{Repo: r.dir, Operation: "read HEAD", Err: err}
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", &RepoError{Repo: r.dir, Operation: "read HEAD commit", Err: err}
	}
	return commit.Message, nil
}

// Status uses `git status --porcelain`; go-git's status walk ignores
// core.autocrlf and is slow on large trees.
func (r *GitRepository) Status(ctx context.Context) (Status, error) {
	out, err := outputGit(ctx, r.dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return Status{}, &RepoError{Repo: r.dir, Operation: "status", Err: err}
	}
	var st Status
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		if strings.HasPrefix(line, "?? ") {
			st.Untracked = append(st.Untracked, line[3:])
			continue
		}
		st.Modified = true
	}
	return st, nil
}

func (r *GitRepository) Fetch(ctx context.Context, force bool) error {
	args := []string{"fetch", "--all", "--tags"}
	if force {
		args = append(args, "--force")
	}
	out, err := runGit(ctx, r.dir, args...)
	if err != nil {
		return &RepoError{Repo: r.dir, Operation: "fetch", Err: err}
	}
	log := clog.FromContext(ctx)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			log.Infof("%s: %s", r.dir, line)
		}
	}
	return r.reopen()
}

func (r *GitRepository) CheckoutDetached(ctx context.Context, rev string) error {
	if _, err := runGit(ctx, r.dir, "-c", "advice.detachedHead=false", "checkout", "--detach", rev); err != nil {
		return &RepoError{Repo: r.dir, Operation: "checkout " + rev, Err: err}
	}
	return nil
}

func (r *GitRepository) CheckoutBranch(ctx context.Context, name string) error {
	if _, err := runGit(ctx, r.dir, "checkout", name); err != nil {
		return &RepoError{Repo: r.dir, Operation: "checkout " + name, Err: err}
	}
	return nil
}

func (r *GitRepository) Pull(ctx context.Context, mode PullMode) error {
	var flag string
	switch mode {
	case PullFastForward:
		flag = "--ff-only"
	case PullRebase:
		flag = "--rebase=true"
	case PullMerge:
		flag = "--rebase=false"
	default:
		return fmt.Errorf("unknown pull mode %q", mode)
	}
	if _, err := runGit(ctx, r.dir, "pull", flag); err != nil {
		return &RepoError{Repo: r.dir, Operation: "pull " + flag, Err: err}
	}
	return r.reopen()
}

func (r *GitRepository) StashPush(ctx context.Context, message string) error {
	if _, err := runGit(ctx, r.dir, "stash", "push", "--keep-index", "--include-untracked", "--message", message); err != nil {
		return &RepoError{Repo: r.dir, Operation: "stash push", Err: err}
	}
	return nil
}

func (r *GitRepository) StashPop(ctx context.Context) error {
	if _, err := runGit(ctx, r.dir, "stash", "pop", "--index"); err != nil {
		return &RepoError{Repo: r.dir, Operation: "stash pop", Err: err, Hint: "the changes are still in `git stash list`"}
	}
	return nil
}

func gitArgs(dir string, args []string) []string {
	if dir == "" {
		return args
	}
	return append([]string{"-C", dir}, args...)
}

func gitCommand(ctx context.Context, dir string, args []string) *exec.Cmd {
	clog.FromContext(ctx).Debugf("git %s", strings.Join(gitArgs(dir, args), " "))
	cmd := exec.CommandContext(ctx, "git", gitArgs(dir, args)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd
}

// runGit runs git and returns its combined output.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	output, err := gitCommand(ctx, dir, args).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(string(output)), err)
	}
	return string(output), nil
}

// outputGit runs git and returns stdout only, for commands whose output is
// parsed.
func outputGit(ctx context.Context, dir string, args ...string) (string, error) {
	var stderr strings.Builder
	cmd := gitCommand(ctx, dir, args)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return string(output), nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
