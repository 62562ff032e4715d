// Package depsync provides the public Go library API for dep-sync.
//
// dep-sync keeps sibling git repositories at the revisions listed in a
// project's Dependencies.txt manifest. This package exposes a Client for
// embedding checkout, freeze and status in other Go programs.
//
// # Basic Usage
//
//	client, err := depsync.New(depsync.Options{
//	    ManifestPath: "/path/to/project/Dependencies.txt",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Bring every dependency to its listed revision
//	result, err := client.Checkout(ctx, depsync.CheckoutOptions{})
//
//	// Pin branches and tags to commit hashes
//	frozen, err := client.Freeze(ctx, depsync.FreezeOptions{})
//
//	// Report drift without changing anything
//	report, err := client.Status(ctx)
package depsync

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/bianoble/dep-sync/internal/engine"
	"github.com/bianoble/dep-sync/internal/manifest"
	"github.com/bianoble/dep-sync/internal/sandbox"
	"github.com/bianoble/dep-sync/internal/vcs"
)

// DefaultManifest is the manifest file name looked up in the project root.
const DefaultManifest = manifest.DefaultFileName

// DefaultBackupSuffix is appended to the manifest name when Freeze keeps a
// copy of the previous contents.
const DefaultBackupSuffix = ".bak"

// Checkouter brings dependency repositories to their listed revisions.
type Checkouter interface {
	Checkout(ctx context.Context, opts CheckoutOptions) (*CheckoutResult, error)
}

// Freezer rewrites the manifest with commit hashes.
type Freezer interface {
	Freeze(ctx context.Context, opts FreezeOptions) (*FreezeResult, error)
}

// StatusReporter describes the dependency repositories without modifying them.
type StatusReporter interface {
	Status(ctx context.Context) (*StatusReport, error)
}

// CheckoutOptions configures a checkout operation.
type CheckoutOptions struct {
	NoStash bool
	// FetchForTags is "no", "prompt", "prompt_force" or "force". Empty means "no".
	FetchForTags string
	// MergeForBranches is "ff-only", "rebase", "merge" or "no". Empty means "ff-only".
	MergeForBranches string
	// Confirm answers the questions asked under FetchForTags "prompt" and
	// "prompt_force".
	Confirm ConfirmFunc
}

// FreezeOptions configures a freeze operation.
type FreezeOptions struct {
	AllowBranches bool
	// DryRun computes the frozen manifest without writing it.
	DryRun bool
	// BackupSuffix names the backup of the previous manifest. Nil selects
	// DefaultBackupSuffix; an empty string disables the backup.
	BackupSuffix *string
}

// Options configures a dep-sync client.
type Options struct {
	// ManifestPath is the path to the manifest. Default: "Dependencies.txt".
	ManifestPath string

	// ProjectRoot is the working tree of the main project. If empty, it is
	// the repository containing ManifestPath.
	ProjectRoot string

	// Output receives progress messages. Nil discards them.
	Output io.Writer

	// Workspace opens and clones dependency repositories. Nil uses git.
	Workspace vcs.Workspace

	// Concurrency bounds the repositories inspected at once by Status.
	// Zero means one per CPU.
	Concurrency int
}

// Client is the main entry point for the dep-sync library.
// It implements Checkouter, Freezer, and StatusReporter.
type Client struct {
	workspace    vcs.Workspace
	out          *engine.Reporter
	projectRoot  string
	manifestPath string
	concurrency  int
}

var (
	_ Checkouter     = (*Client)(nil)
	_ Freezer        = (*Client)(nil)
	_ StatusReporter = (*Client)(nil)
)

// New creates a new dep-sync Client.
func New(opts Options) (*Client, error) {
	if opts.ManifestPath == "" {
		opts.ManifestPath = DefaultManifest
	}
	manifestPath, err := filepath.Abs(opts.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}

	root := opts.ProjectRoot
	if root == "" {
		root, err = vcs.FindRoot(filepath.Dir(manifestPath))
		if err != nil {
			return nil, fmt.Errorf("locating project root: %w", err)
		}
	}

	ws := opts.Workspace
	if ws == nil {
		ws = vcs.GitWorkspace{}
	}

	return &Client{
		workspace:    ws,
		out:          engine.NewReporter(opts.Output),
		projectRoot:  root,
		manifestPath: manifestPath,
		concurrency:  opts.Concurrency,
	}, nil
}

// ProjectRoot returns the main project's working tree.
func (c *Client) ProjectRoot() string { return c.projectRoot }

// ManifestPath returns the absolute manifest path.
func (c *Client) ManifestPath() string { return c.manifestPath }

func (c *Client) loadManifest() (*manifest.Manifest, []manifest.Dependency, error) {
	m, err := manifest.Load(c.manifestPath)
	if err != nil {
		return nil, nil, err
	}
	deps, err := m.Dependencies()
	if err != nil {
		return nil, nil, err
	}
	return m, deps, nil
}

// Dependencies returns the manifest's dependencies with variables substituted.
func (c *Client) Dependencies() ([]manifest.Dependency, error) {
	_, deps, err := c.loadManifest()
	return deps, err
}

// Checkout brings every dependency to the revision the manifest names,
// cloning missing ones.
func (c *Client) Checkout(ctx context.Context, opts CheckoutOptions) (*CheckoutResult, error) {
	_, deps, err := c.loadManifest()
	if err != nil {
		return nil, err
	}
	tags, err := engine.ParseTagFetchPolicy(opts.FetchForTags)
	if err != nil {
		return nil, err
	}
	branches, err := engine.ParseBranchStrategy(opts.MergeForBranches)
	if err != nil {
		return nil, err
	}

	eng := &engine.CheckoutEngine{
		Workspace: c.workspace,
		Out:       c.out,
		Confirm:   opts.Confirm,
	}
	return eng.Checkout(ctx, c.projectRoot, deps, engine.CheckoutOptions{
		NoStash:   opts.NoStash,
		FetchTags: tags,
		Branches:  branches,
	})
}

// Freeze pins every dependency to the commit it has checked out and, unless
// DryRun is set, rewrites the manifest. The manifest is left untouched when
// any dependency fails.
func (c *Client) Freeze(ctx context.Context, opts FreezeOptions) (*FreezeResult, error) {
	m, _, err := c.loadManifest()
	if err != nil {
		return nil, err
	}

	eng := &engine.FreezeEngine{
		Workspace: c.workspace,
		Out:       c.out,
	}
	result, err := eng.Freeze(ctx, c.projectRoot, m, engine.FreezeOptions{AllowBranches: opts.AllowBranches})
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return result, nil
	}

	suffix := DefaultBackupSuffix
	if opts.BackupSuffix != nil {
		suffix = *opts.BackupSuffix
	}
	if err := sandbox.RewriteWithBackup(c.manifestPath, result.Content(), suffix); err != nil {
		return nil, fmt.Errorf("writing %s: %w", c.manifestPath, err)
	}
	return result, nil
}

// Status inspects every dependency and lists sibling repositories the
// manifest does not mention.
func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	_, deps, err := c.loadManifest()
	if err != nil {
		return nil, err
	}
	eng := &engine.StatusEngine{
		Workspace:   c.workspace,
		Concurrency: c.concurrency,
	}
	return eng.Status(ctx, c.projectRoot, deps)
}
