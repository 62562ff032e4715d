package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
)

// identityKeys are copied from the main project into fresh clones.
var identityKeys = []struct{ section, option string }{
	{"user", "name"},
	{"user", "email"},
	{"core", "autocrlf"},
}

// GitWorkspace implements Workspace on top of GitRepository.
type GitWorkspace struct {
	// LocalConfigOnly restricts CopyIdentity to the main project's own
	// .git/config instead of also consulting global and system config.
	LocalConfigOnly bool
}

var _ Workspace = GitWorkspace{}

func (GitWorkspace) Open(dir string) (Repository, error) {
	r, err := Open(dir)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (GitWorkspace) Clone(ctx context.Context, url, dir string) (Repository, error) {
	r, err := Clone(ctx, url, dir)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (w GitWorkspace) CopyIdentity(ctx context.Context, from, to string) ([]string, error) {
	src, err := git.PlainOpen(from)
	if err != nil {
		return nil, &RepoError{Repo: from, Operation: "open", Err: err}
	}
	srcCfg, err := src.Config()
	if err != nil {
		return nil, &RepoError{Repo: from, Operation: "read config", Err: err}
	}
	sources := []*config.Config{srcCfg}
	if !w.LocalConfigOnly {
		for _, scope := range []config.Scope{config.GlobalScope, config.SystemScope} {
			cfg, err := config.LoadConfig(scope)
			if err != nil {
				clog.FromContext(ctx).Debugf("skipping git config scope %d: %v", scope, err)
				continue
			}
			sources = append(sources, cfg)
		}
	}

	dst, err := git.PlainOpen(to)
	if err != nil {
		return nil, &RepoError{Repo: to, Operation: "open", Err: err}
	}
	dstCfg, err := dst.Config()
	if err != nil {
		return nil, &RepoError{Repo: to, Operation: "read config", Err: err}
	}

	var notes []string
	changed := false
	for _, k := range identityKeys {
		if dstCfg.Raw.Section(k.section).HasOption(k.option) {
			continue
		}
		value, ok := lookupOption(sources, k.section, k.option)
		if !ok {
			notes = append(notes, fmt.Sprintf("No value for %s.%s in main repository to copy to %s", k.section, k.option, filepath.Base(to)))
			continue
		}
		dstCfg.Raw.Section(k.section).SetOption(k.option, value)
		changed = true
	}

	if changed {
		if err := dst.SetConfig(dstCfg); err != nil {
			return notes, &RepoError{Repo: to, Operation: "write config", Err: err}
		}
	}
	return notes, nil
}

func lookupOption(sources []*config.Config, section, option string) (string, bool) {
	for _, cfg := range sources {
		if cfg == nil || cfg.Raw == nil || !cfg.Raw.HasSection(section) {
			continue
		}
		if s := cfg.Raw.Section(section); s.HasOption(option) {
			return s.Option(option), true
		}
	}
	return "", false
}

func (GitWorkspace) Siblings(root string) ([]string, error) {
	return Siblings(root)
}

// Siblings lists every git working tree in the directory containing root.
func Siblings(root string) ([]string, error) {
	container := filepath.Dir(filepath.Clean(root))
	entries, err := os.ReadDir(container)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", container, err)
	}
	var result []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(container, e.Name())
		if _, err := os.Stat(filepath.Join(dir, git.GitDirName)); err == nil {
			result = append(result, dir)
		}
	}
	sort.Strings(result)
	return result, nil
}

// FindRoot returns the working tree root of the repository containing start,
// which may be a file or a directory.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%s is not inside a git repository: %w", abs, ErrNotRepository)
	}
	if err != nil {
		return "", &RepoError{Repo: abs, Operation: "open", Err: err}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", &RepoError{Repo: abs, Operation: "open worktree", Err: err}
	}
	return wt.Filesystem.Root(), nil
}
