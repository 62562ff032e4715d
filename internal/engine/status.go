package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/bianoble/dep-sync/internal/manifest"
	"github.com/bianoble/dep-sync/internal/sandbox"
	"github.com/bianoble/dep-sync/internal/vcs"
)

// Dependency states reported by StatusEngine.
const (
	StateOK         = "ok"
	StateMissing    = "missing"
	StateDirty      = "dirty"
	StateDrifted    = "drifted"
	StateUnresolved = "unresolved"
)

// StatusEngine inspects dependencies without changing or fetching them.
type StatusEngine struct {
	Workspace vcs.Workspace
	// Concurrency bounds the repositories inspected at once. Zero means
	// one per CPU.
	Concurrency int
}

// DependencyStatus describes one dependency on disk.
type DependencyStatus struct {
	Path   string
	Dir    string
	Ref    string
	Kind   Kind
	Head   string
	Branch string // empty when HEAD is detached
	Dirty  bool
	State  string
	Detail string
}

// StatusReport is the outcome of a status run.
type StatusReport struct {
	Dependencies []DependencyStatus
	// Unlisted holds the git working trees next to the main project that
	// the manifest does not mention.
	Unlisted []string
}

// Status inspects every dependency concurrently and returns them in
// manifest order.
func (e *StatusEngine) Status(ctx context.Context, mainRoot string, deps []manifest.Dependency) (*StatusReport, error) {
	container := filepath.Dir(filepath.Clean(mainRoot))
	report := &StatusReport{Dependencies: make([]DependencyStatus, len(deps))}

	limit := e.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, dep := range deps {
		g.Go(func() error {
			st, err := e.inspect(gctx, container, dep)
			if err != nil {
				return err
			}
			report.Dependencies[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unlisted, err := e.unlisted(mainRoot, report.Dependencies)
	if err != nil {
		return nil, err
	}
	report.Unlisted = unlisted
	return report, nil
}

func (e *StatusEngine) inspect(ctx context.Context, container string, dep manifest.Dependency) (DependencyStatus, error) {
	st := DependencyStatus{Path: dep.Path, Ref: dep.CommitIsh}

	dir, err := sandbox.DependencyDir(container, dep.Path)
	if err != nil {
		return st, fmt.Errorf("%s: %w", dep.Line.Location(), err)
	}
	st.Dir = dir

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		st.State = StateMissing
		if dep.CloneURL != "" {
			st.Detail = "will be cloned from " + dep.CloneURL
		}
		return st, nil
	}
	repo, err := e.Workspace.Open(dir)
	if err != nil {
		return st, err
	}

	if st.Head, err = repo.Head(); err != nil {
		return st, err
	}
	branch, onBranch, err := repo.CurrentBranch()
	if err != nil {
		return st, err
	}
	if onBranch {
		st.Branch = branch
	}
	ws, err := repo.Status(ctx)
	if err != nil {
		return st, err
	}
	st.Dirty = ws.Dirty()
	if st.Dirty {
		st.Detail = describeChanges(ws.Modified, len(ws.Untracked))
	}

	if dep.CommitIsh != "" {
		ref, err := Classify(repo, dep.CommitIsh)
		if err != nil {
			var amb *AmbiguousRefError
			if !errors.As(err, &amb) {
				return st, err
			}
			st.State, st.Detail = StateUnresolved, err.Error()
			return st, nil
		}
		st.Kind = ref.Kind()
		drift, err := driftOf(repo, ref, st)
		if err != nil {
			return st, err
		}
		if drift != "" {
			clog.FromContext(ctx).Debugf("%s: HEAD %s is %s against %s", dir, st.Head, drift, dep.CommitIsh)
			st.State = drift
			return st, nil
		}
	}

	if st.Dirty {
		st.State = StateDirty
	} else {
		st.State = StateOK
	}
	return st, nil
}

// driftOf returns StateUnresolved or StateDrifted when HEAD is not what ref
// asks for, or an empty string when it is.
func driftOf(repo vcs.Repository, ref CommitIsh, st DependencyStatus) (string, error) {
	switch ref.Kind() {
	case KindUnknown:
		return StateUnresolved, nil
	case KindBranch:
		if st.Branch != ref.Ref() {
			return StateDrifted, nil
		}
		tip, err := repo.BranchCommit(ref.Ref())
		if err != nil {
			return "", err
		}
		if tip != st.Head {
			return StateDrifted, nil
		}
	default:
		if ref.Hash() != st.Head {
			return StateDrifted, nil
		}
	}
	return "", nil
}

func (e *StatusEngine) unlisted(mainRoot string, deps []DependencyStatus) ([]string, error) {
	siblings, err := e.Workspace.Siblings(mainRoot)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{filepath.Clean(mainRoot): true}
	for _, d := range deps {
		known[d.Dir] = true
	}
	var out []string
	for _, s := range siblings {
		if !known[s] {
			out = append(out, s)
		}
	}
	return out, nil
}
