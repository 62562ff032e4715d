package depsync

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bianoble/dep-sync/internal/testutil"
	"github.com/bianoble/dep-sync/internal/vcs"
)

// setupProject creates a bare "lib" upstream with tag v1 and a main project
// whose manifest lists it. It returns the manifest path, the bare URL and
// the hash v1 points to.
func setupProject(t *testing.T) (manifestPath, bare, tagged string) {
	t.Helper()
	testutil.RequireGit(t)
	base := t.TempDir()

	bare, upstream := testutil.CreateBareRepo(t, base, "lib")
	tagged = testutil.Git(t, upstream, "rev-parse", "HEAD")
	testutil.Git(t, upstream, "tag", "v1")
	testutil.Git(t, upstream, "push", "-q", "origin", "--tags")

	mainRoot := filepath.Join(base, "ws", "main")
	testutil.InitRepo(t, mainRoot)
	manifestPath = filepath.Join(mainRoot, "Dependencies.txt")
	content := "# shared libraries\n#= <REMOTE> = " + filepath.Dir(bare) + "\nlib v1 <REMOTE>/lib.git\n"
	testutil.Commit(t, mainRoot, "Dependencies.txt", content, "manifest")
	return manifestPath, bare, tagged
}

// newTestClient creates a client that never reads global git identity.
func newTestClient(t *testing.T, manifestPath string, out io.Writer) *Client {
	t.Helper()
	client, err := New(Options{
		ManifestPath: manifestPath,
		Output:       out,
		Workspace:    vcs.GitWorkspace{LocalConfigOnly: true},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewFindsProjectRoot(t *testing.T) {
	manifestPath, _, _ := setupProject(t)
	client := newTestClient(t, manifestPath, nil)

	want, err := filepath.EvalSymlinks(filepath.Dir(manifestPath))
	if err != nil {
		t.Fatal(err)
	}
	got, err := filepath.EvalSymlinks(client.ProjectRoot())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("ProjectRoot() = %q, want %q", got, want)
	}
	if client.ManifestPath() != manifestPath {
		t.Errorf("ManifestPath() = %q, want %q", client.ManifestPath(), manifestPath)
	}
}

func TestNewOutsideRepository(t *testing.T) {
	testutil.RequireGit(t)
	dir := t.TempDir()
	_, err := New(Options{ManifestPath: filepath.Join(dir, "Dependencies.txt")})
	if err == nil {
		t.Fatal("expected error outside a git repository")
	}
}

func TestNewExplicitProjectRoot(t *testing.T) {
	dir := t.TempDir()
	client, err := New(Options{ProjectRoot: dir, ManifestPath: filepath.Join(dir, "deps.txt")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.ProjectRoot() != dir {
		t.Errorf("ProjectRoot() = %q, want %q", client.ProjectRoot(), dir)
	}
}

func TestDependenciesSubstitutesVariables(t *testing.T) {
	manifestPath, bare, _ := setupProject(t)
	client := newTestClient(t, manifestPath, nil)

	deps, err := client.Dependencies()
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("got %d dependencies, want 1", len(deps))
	}
	if deps[0].Path != "lib" || deps[0].CommitIsh != "v1" || deps[0].CloneURL != bare {
		t.Errorf("unexpected dependency: %+v", deps[0])
	}
}

func TestCheckoutFreezeStatus(t *testing.T) {
	manifestPath, bare, tagged := setupProject(t)
	ctx := context.Background()
	var out bytes.Buffer
	client := newTestClient(t, manifestPath, &out)

	// Before checkout the dependency is missing.
	report, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.Dependencies[0].State != "missing" {
		t.Errorf("state before checkout = %q, want missing", report.Dependencies[0].State)
	}

	result, err := client.Checkout(ctx, CheckoutOptions{})
	if err != nil {
		t.Fatalf("Checkout: %v\n%s", err, out.String())
	}
	if result.Tally.Cloned != 1 || result.Tally.Tags != 1 {
		t.Errorf("tally = %+v", result.Tally)
	}
	if !strings.Contains(out.String(), "1 dependency: cloned 1 repository, checked out 0 branches, 0 Hexshas and 1 tag") {
		t.Errorf("output missing summary:\n%s", out.String())
	}

	report, err = client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got := report.Dependencies[0]; got.State != "ok" || got.Head != tagged {
		t.Errorf("status after checkout = %+v", got)
	}

	original, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}

	frozen, err := client.Freeze(ctx, FreezeOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Freeze dry run: %v", err)
	}
	after, _ := os.ReadFile(manifestPath)
	if !bytes.Equal(original, after) {
		t.Error("dry run must not modify the manifest")
	}

	want := "# shared libraries\n" +
		"#= <REMOTE> = " + filepath.Dir(bare) + "\n" +
		"# lib v1 <REMOTE>/lib.git\n" +
		"lib   " + tagged + " <REMOTE>/lib.git\n"
	if got := string(frozen.Content()); got != want {
		t.Errorf("frozen content:\n%s\nwant:\n%s", got, want)
	}

	if _, err := client.Freeze(ctx, FreezeOptions{}); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	written, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(written) != want {
		t.Errorf("written manifest:\n%s\nwant:\n%s", written, want)
	}
	backup, err := os.ReadFile(manifestPath + DefaultBackupSuffix)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.Equal(backup, original) {
		t.Errorf("backup = %q, want original %q", backup, original)
	}

	// The frozen manifest still checks out to the same commit.
	if _, err := client.Checkout(ctx, CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout frozen: %v", err)
	}
}

func TestFreezeWithoutBackup(t *testing.T) {
	manifestPath, _, _ := setupProject(t)
	ctx := context.Background()
	client := newTestClient(t, manifestPath, nil)

	if _, err := client.Checkout(ctx, CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	none := ""
	if _, err := client.Freeze(ctx, FreezeOptions{BackupSuffix: &none}); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if _, err := os.Stat(manifestPath + DefaultBackupSuffix); !os.IsNotExist(err) {
		t.Errorf("backup should not exist, stat err = %v", err)
	}
}

func TestFreezeFailureLeavesManifest(t *testing.T) {
	manifestPath, _, _ := setupProject(t)
	client := newTestClient(t, manifestPath, nil)
	original, _ := os.ReadFile(manifestPath)

	// Nothing is checked out yet.
	if _, err := client.Freeze(context.Background(), FreezeOptions{}); err == nil {
		t.Fatal("expected error freezing a missing dependency")
	}
	after, _ := os.ReadFile(manifestPath)
	if !bytes.Equal(original, after) {
		t.Error("failed freeze must not modify the manifest")
	}
	if _, err := os.Stat(manifestPath + DefaultBackupSuffix); !os.IsNotExist(err) {
		t.Error("failed freeze must not create a backup")
	}
}

func TestCheckoutRejectsBadOptions(t *testing.T) {
	manifestPath, _, _ := setupProject(t)
	client := newTestClient(t, manifestPath, nil)
	ctx := context.Background()

	if _, err := client.Checkout(ctx, CheckoutOptions{FetchForTags: "always"}); err == nil {
		t.Error("expected error for invalid tag fetch policy")
	}
	if _, err := client.Checkout(ctx, CheckoutOptions{MergeForBranches: "squash"}); err == nil {
		t.Error("expected error for invalid branch strategy")
	}
}

func TestMissingManifest(t *testing.T) {
	dir := t.TempDir()
	client, err := New(Options{ProjectRoot: dir, ManifestPath: filepath.Join(dir, "Dependencies.txt")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
