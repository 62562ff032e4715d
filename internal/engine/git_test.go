package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bianoble/dep-sync/internal/manifest"
	"github.com/bianoble/dep-sync/internal/testutil"
	"github.com/bianoble/dep-sync/internal/vcs"
)

func TestCheckoutAndFreezeWithGit(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()
	base := t.TempDir()

	bare, upstream := testutil.CreateBareRepo(t, base, "lib")
	tagged := testutil.Git(t, upstream, "rev-parse", "HEAD")
	testutil.Git(t, upstream, "tag", "-a", "v1", "-m", "release v1")
	testutil.Commit(t, upstream, "lib.go", "package lib\n", "second")
	testutil.Git(t, upstream, "push", "-q", "origin", "main", "--tags")

	mainRoot := filepath.Join(base, "ws", "main")
	testutil.InitRepo(t, mainRoot)
	testutil.Commit(t, mainRoot, "Dependencies.txt", "lib v1 "+bare+"\n", "manifest")

	m, err := manifest.Load(filepath.Join(mainRoot, "Dependencies.txt"))
	require.NoError(t, err)
	deps, err := m.Dependencies()
	require.NoError(t, err)

	ws := vcs.GitWorkspace{LocalConfigOnly: true}
	var out bytes.Buffer
	co := &CheckoutEngine{Workspace: ws, Out: NewReporter(&out)}
	res, err := co.Checkout(ctx, mainRoot, deps, CheckoutOptions{})
	require.NoError(t, err, out.String())
	require.Equal(t, Tally{Dependencies: 1, Cloned: 1, Tags: 1}, res.Tally)
	require.Equal(t, tagged, res.Repos[0].Head)

	libDir := filepath.Join(base, "ws", "lib")
	require.Equal(t, tagged, testutil.Git(t, libDir, "rev-parse", "HEAD"))

	// A second run finds the clone and changes nothing.
	res, err = co.Checkout(ctx, mainRoot, deps, CheckoutOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Tally.Cloned)

	fr := &FreezeEngine{Workspace: ws, Out: NewReporter(&out)}
	frozen, err := fr.Freeze(ctx, mainRoot, m, FreezeOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{
		"# lib v1 " + bare,
		"lib   " + tagged + " " + bare,
	}, frozen.Lines)

	require.NoError(t, os.WriteFile(filepath.Join(libDir, "scratch.txt"), []byte("x"), 0o644))
	_, err = fr.Freeze(ctx, mainRoot, m, FreezeOptions{})
	var de *DirtyError
	require.True(t, errors.As(err, &de), "got %v", err)
	require.Equal(t, 1, de.Untracked)
}

func TestCheckoutBranchWithGit(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()
	base := t.TempDir()

	bare, upstream := testutil.CreateBareRepo(t, base, "lib")
	mainRoot := filepath.Join(base, "ws", "main")
	testutil.InitRepo(t, mainRoot)
	testutil.Commit(t, mainRoot, "README.md", "main\n", "main")

	deps := []manifest.Dependency{{Path: "lib", CommitIsh: "main", CloneURL: bare}}
	co := &CheckoutEngine{Workspace: vcs.GitWorkspace{LocalConfigOnly: true}}
	_, err := co.Checkout(ctx, mainRoot, deps, CheckoutOptions{})
	require.NoError(t, err)

	// Upstream moves on; a dirty clone is stashed, fast-forwarded and
	// restored.
	tip := testutil.Commit(t, upstream, "next.txt", "next\n", "next")
	testutil.Git(t, upstream, "push", "-q", "origin", "main")
	libDir := filepath.Join(base, "ws", "lib")
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "local.txt"), []byte("mine"), 0o644))

	res, err := co.Checkout(ctx, mainRoot, deps, CheckoutOptions{})
	require.NoError(t, err)
	require.Equal(t, tip, res.Repos[0].Head)
	require.True(t, res.Repos[0].Stashed)
	require.FileExists(t, filepath.Join(libDir, "local.txt"))
	require.Equal(t, 1, res.Tally.Branches)
}
