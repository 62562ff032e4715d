package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/bianoble/dep-sync/internal/vcs"
)

// TagFetchPolicy decides whether a commit-ish already known as a tag is
// fetched again.
type TagFetchPolicy string

const (
	TagFetchNo     TagFetchPolicy = "no"
	TagFetchPrompt TagFetchPolicy = "prompt"
	// TagFetchPromptForce fetches without asking and, when the fetch fails,
	// asks whether to retry with --force.
	TagFetchPromptForce TagFetchPolicy = "prompt_force"
	TagFetchForce       TagFetchPolicy = "force"
)

// ParseTagFetchPolicy validates a policy name. Empty selects TagFetchNo.
func ParseTagFetchPolicy(s string) (TagFetchPolicy, error) {
	switch TagFetchPolicy(s) {
	case "", TagFetchNo:
		return TagFetchNo, nil
	case TagFetchPrompt, TagFetchPromptForce, TagFetchForce:
		return TagFetchPolicy(s), nil
	}
	return "", fmt.Errorf("invalid tag fetch policy %q: must be one of: no, prompt, prompt_force, force", s)
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

// FetchPolicy controls FetchIfNeeded.
type FetchPolicy struct {
	Tags    TagFetchPolicy
	Confirm ConfirmFunc
}

// CommitIsh is a requested revision classified against one repository.
type CommitIsh struct {
	repo    vcs.Repository
	ref     string
	kind    Kind
	hash    string
	fetched bool
}

// Kind reports what the commit-ish denotes.
func (c CommitIsh) Kind() Kind { return c.kind }

// Ref returns the commit-ish as written in the manifest.
func (c CommitIsh) Ref() string { return c.ref }

// Hash returns the full commit hash of a tag or hexsha. It is empty for
// branches, whose tip moves, and for unknown references.
func (c CommitIsh) Hash() string { return c.hash }

// Classify decides what ref denotes in repo without touching the network:
// a tag first, then a local or remote branch, then a hexsha prefix.
func Classify(repo vcs.Repository, ref string) (CommitIsh, error) {
	c := CommitIsh{repo: repo, ref: ref}

	isTag, err := repo.HasTag(ref)
	if err != nil {
		return c, err
	}
	if isTag {
		hash, err := repo.TagCommit(ref)
		if err != nil {
			return c, err
		}
		c.kind, c.hash = KindTag, hash
		return c, nil
	}

	isBranch, err := repo.HasBranch(ref)
	if err != nil {
		return c, err
	}
	if isBranch {
		c.kind = KindBranch
		return c, nil
	}

	hash, found, err := findHexsha(repo, ref)
	if err != nil || !found {
		return c, err
	}
	c.kind, c.hash = KindHexsha, hash
	return c, nil
}

// findHexsha looks for the single commit starting with prefix. More than
// one match is an error, none is reported through found.
func findHexsha(repo vcs.Repository, prefix string) (hash string, found bool, err error) {
	matches, err := repo.FindCommits(prefix)
	if err != nil {
		return "", false, err
	}
	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0], true, nil
	default:
		return "", false, &AmbiguousRefError{Repo: repo.Dir(), Ref: prefix, Candidates: matches}
	}
}

// FetchIfNeeded fetches when classification might change by doing so and
// returns the possibly updated value. Only Unknown references are fetched by
// default, and at most once; tags are fetched when the policy says so.
func (c CommitIsh) FetchIfNeeded(ctx context.Context, p FetchPolicy) (CommitIsh, error) {
	log := clog.FromContext(ctx)

	switch c.kind {
	case KindTag:
		fetch, err := c.wantTagFetch(ctx, p)
		if err != nil || !fetch {
			return c, err
		}
		log.Infof("fetching %s for tag %s", c.repo.Dir(), c.ref)
		if err := c.fetchTag(ctx, p); err != nil {
			return c, err
		}
		hash, err := c.repo.TagCommit(c.ref)
		if err != nil {
			return c, err
		}
		c.hash, c.fetched = hash, true
		return c, nil

	case KindUnknown:
		if c.fetched {
			return c, nil
		}
		log.Infof("%s is unknown in %s, fetching", c.ref, c.repo.Dir())
		if err := c.repo.Fetch(ctx, false); err != nil {
			return c, err
		}
		next, err := Classify(c.repo, c.ref)
		next.fetched = true
		return next, err

	default:
		return c, nil
	}
}

func (c CommitIsh) wantTagFetch(ctx context.Context, p FetchPolicy) (bool, error) {
	switch p.Tags {
	case TagFetchForce, TagFetchPromptForce:
		return true, nil
	case TagFetchPrompt:
		if p.Confirm == nil {
			return false, fmt.Errorf("tag fetch policy %q needs a confirmation prompt", p.Tags)
		}
		return p.Confirm(ctx, fmt.Sprintf("Fetch %s to update tag %s?", c.repo.Dir(), c.ref))
	default:
		return false, nil
	}
}

// fetchTag runs the fetch for a tag. Under TagFetchPromptForce a failed
// fetch is retried with --force once the user agrees.
func (c CommitIsh) fetchTag(ctx context.Context, p FetchPolicy) error {
	err := c.repo.Fetch(ctx, p.Tags == TagFetchForce)
	if err == nil || p.Tags != TagFetchPromptForce {
		return err
	}
	if p.Confirm == nil {
		return err
	}
	clog.FromContext(ctx).Warnf("fetching %s failed: %v", c.repo.Dir(), err)
	retry, cerr := p.Confirm(ctx, fmt.Sprintf("Fetching %s failed. Try again with --force?", c.repo.Dir()))
	if cerr != nil {
		return errors.Join(err, cerr)
	}
	if !retry {
		return err
	}
	return c.repo.Fetch(ctx, true)
}
