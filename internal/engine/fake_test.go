package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/bianoble/dep-sync/internal/vcs"
)

// fakeRepo is an in-memory vcs.Repository. Refs that only show up after a
// fetch live in the upstream* maps.
type fakeRepo struct {
	dir      string
	tags     map[string]string
	branches map[string]string
	remotes  map[string]map[string]string
	commits  []string
	head     string
	current  string
	status   vcs.Status

	upstreamTags    map[string]string
	upstreamCommits []string
	pullTips        map[string]string

	fetches    int
	forceFetch bool
	stashed    *vcs.Status
	calls      []string

	checkoutErr error
	popErr      error
	// rejectMovedTags fails an unforced fetch that would move a local tag.
	rejectMovedTags bool
	// stuck makes checkouts succeed without moving HEAD.
	stuck bool
}

var _ vcs.Repository = (*fakeRepo)(nil)

func (r *fakeRepo) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRepo) Dir() string { return r.dir }

func (r *fakeRepo) HasTag(name string) (bool, error) {
	_, ok := r.tags[name]
	return ok, nil
}

func (r *fakeRepo) TagCommit(name string) (string, error) {
	h, ok := r.tags[name]
	if !ok {
		return "", fmt.Errorf("tag %s not found", name)
	}
	return h, nil
}

func (r *fakeRepo) HasBranch(name string) (bool, error) {
	if _, ok := r.branches[name]; ok {
		return true, nil
	}
	for _, branches := range r.remotes {
		if _, ok := branches[name]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) BranchCommit(name string) (string, error) {
	if h, ok := r.branches[name]; ok {
		return h, nil
	}
	remotes, _ := r.RemoteBranchCommits(name)
	names := make([]string, 0, len(remotes))
	for n := range remotes {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "", fmt.Errorf("branch %s not found", name)
	}
	return remotes[names[0]], nil
}

func (r *fakeRepo) RemoteBranchCommits(name string) (map[string]string, error) {
	out := map[string]string{}
	for remote, branches := range r.remotes {
		if h, ok := branches[name]; ok {
			out[remote] = h
		}
	}
	return out, nil
}

func (r *fakeRepo) FindCommits(prefix string) ([]string, error) {
	prefix = strings.ToLower(prefix)
	var out []string
	for _, c := range r.commits {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeRepo) ResolveRevision(rev string) (string, error) {
	if h, ok := r.tags[rev]; ok {
		return h, nil
	}
	if h, ok := r.branches[rev]; ok {
		return h, nil
	}
	if rev == "HEAD" {
		return r.head, nil
	}
	return "", errors.New("reference not found")
}

func (r *fakeRepo) Head() (string, error) { return r.head, nil }

func (r *fakeRepo) CurrentBranch() (string, bool, error) {
	return r.current, r.current != "", nil
}

func (r *fakeRepo) Status(context.Context) (vcs.Status, error) { return r.status, nil }

func (r *fakeRepo) Fetch(_ context.Context, force bool) error {
	r.record("fetch force=%t", force)
	r.fetches++
	r.forceFetch = force
	if r.rejectMovedTags && !force {
		for name, h := range r.upstreamTags {
			if local, ok := r.tags[name]; ok && local != h {
				return fmt.Errorf("would clobber existing tag %s", name)
			}
		}
	}
	for name, h := range r.upstreamTags {
		if _, ok := r.tags[name]; ok && !force {
			continue
		}
		if r.tags == nil {
			r.tags = map[string]string{}
		}
		r.tags[name] = h
	}
	r.commits = append(r.commits, r.upstreamCommits...)
	r.upstreamCommits = nil
	return nil
}

func (r *fakeRepo) CheckoutDetached(_ context.Context, rev string) error {
	r.record("checkout --detach %s", rev)
	if r.checkoutErr != nil {
		return r.checkoutErr
	}
	if !r.stuck {
		r.head, r.current = rev, ""
	}
	return nil
}

func (r *fakeRepo) CheckoutBranch(_ context.Context, name string) error {
	r.record("checkout %s", name)
	if r.checkoutErr != nil {
		return r.checkoutErr
	}
	h, err := r.BranchCommit(name)
	if err != nil {
		return err
	}
	if r.branches == nil {
		r.branches = map[string]string{}
	}
	r.branches[name] = h
	r.head, r.current = h, name
	return nil
}

func (r *fakeRepo) Pull(_ context.Context, mode vcs.PullMode) error {
	r.record("pull %s", mode)
	if tip, ok := r.pullTips[r.current]; ok {
		r.branches[r.current] = tip
		r.head = tip
	}
	return nil
}

func (r *fakeRepo) StashPush(_ context.Context, message string) error {
	r.record("stash push %s", message)
	saved := r.status
	r.stashed = &saved
	r.status = vcs.Status{}
	return nil
}

func (r *fakeRepo) StashPop(context.Context) error {
	r.record("stash pop")
	if r.popErr != nil {
		return r.popErr
	}
	if r.stashed != nil {
		r.status = *r.stashed
		r.stashed = nil
	}
	return nil
}

// fakeWorkspace serves fakeRepos by directory. Directories are created on
// disk because the engines look for them there.
type fakeWorkspace struct {
	repos   map[string]*fakeRepo
	remotes map[string]*fakeRepo // clone URL → repository it produces
	cloned  []string
	notes   []string
}

var _ vcs.Workspace = (*fakeWorkspace)(nil)

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{repos: map[string]*fakeRepo{}, remotes: map[string]*fakeRepo{}}
}

// add registers r at its directory and creates the directory.
func (w *fakeWorkspace) add(t *testing.T, r *fakeRepo) *fakeRepo {
	t.Helper()
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	w.repos[r.dir] = r
	return r
}

func (w *fakeWorkspace) Open(dir string) (vcs.Repository, error) {
	r, ok := w.repos[dir]
	if !ok {
		return nil, &vcs.RepoError{Repo: dir, Operation: "open", Err: vcs.ErrNotRepository}
	}
	return r, nil
}

func (w *fakeWorkspace) Clone(_ context.Context, url, dir string) (vcs.Repository, error) {
	r, ok := w.remotes[url]
	if !ok {
		return nil, &vcs.RepoError{Repo: dir, Operation: "clone", Err: errors.New("repository not found")}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r.dir = dir
	w.repos[dir] = r
	w.cloned = append(w.cloned, dir)
	return r, nil
}

func (w *fakeWorkspace) CopyIdentity(_ context.Context, _, to string) ([]string, error) {
	return w.notes, nil
}

func (w *fakeWorkspace) Siblings(root string) ([]string, error) {
	return vcs.Siblings(root)
}

// hash builds a 40 character hexsha from a short seed.
func hash(seed string) string {
	return seed + strings.Repeat("0", 40-len(seed))
}
