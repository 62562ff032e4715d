package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bianoble/dep-sync/internal/config"
	"github.com/bianoble/dep-sync/internal/vcs"
	"github.com/bianoble/dep-sync/pkg/depsync"
)

// projectDir returns the working tree containing the current directory, or
// the current directory itself outside a repository.
func projectDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	if root, err := vcs.FindRoot(wd); err == nil {
		return root, nil
	}
	return wd, nil
}

// loadConfigHierarchical discovers and merges the config files for the
// current project.
func loadConfigHierarchical(cmd *cobra.Command) (*config.HierarchicalResult, *config.Env, error) {
	env, err := config.LoadEnv(cmd.Context(), nil)
	if err != nil {
		return nil, nil, err
	}

	opts := config.HierarchicalOptions{NoInherit: env.NoInherit}
	if configPath != "" {
		opts.ProjectPath = configPath
		opts.RequireProject = true
	} else {
		dir, err := projectDir()
		if err != nil {
			return nil, nil, err
		}
		opts.ProjectPath = config.FindProjectConfig(dir)
	}

	hr, err := config.LoadHierarchical(opts)
	if err != nil {
		return nil, nil, err
	}
	return hr, env, nil
}

// loadSettings resolves files, environment and defaults. Flags are applied
// by each command on top of the result.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	hr, env, err := loadConfigHierarchical(cmd)
	if err != nil {
		return config.Settings{}, err
	}
	return config.Resolve(hr.Config, env)
}

// manifestPath returns the manifest named on the command line, or the
// configured one relative to the project root.
func manifestPath(args []string, s config.Settings) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	if filepath.IsAbs(s.Manifest) {
		return s.Manifest, nil
	}
	dir, err := projectDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.Manifest), nil
}

// newClient builds a library client for the manifest.
func newClient(cmd *cobra.Command, args []string, s config.Settings) (*depsync.Client, error) {
	path, err := manifestPath(args, s)
	if err != nil {
		return nil, err
	}
	var out io.Writer = cmd.OutOrStdout()
	if quiet {
		out = io.Discard
	}
	return depsync.New(depsync.Options{
		ManifestPath: path,
		Output:       out,
		Workspace:    vcs.GitWorkspace{LocalConfigOnly: s.LocalIdentityOnly},
		Concurrency:  s.Concurrency,
	})
}

// flagString returns the flag's value when it was given explicitly and
// fallback otherwise.
func flagString(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

// flagBool is flagString for booleans.
func flagBool(cmd *cobra.Command, name string, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return fallback
}

// useColor reports whether w is a terminal that should get ANSI colors.
func useColor(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// info prints a line unless quiet mode is active.
func info(w io.Writer, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(w io.Writer, format string, args ...any) {
	if verbose {
		fmt.Fprintf(w, "  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
