package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "dep-sync",
	Short: "Keep sibling git repositories at the revisions a project depends on",
	Long: `dep-sync manages a workspace of git repositories that sit next to each
other. A project lists the repositories it needs, and the tag, branch or
commit of each, in a Dependencies.txt manifest. 'dep-sync checkout' clones
and checks out everything listed; 'dep-sync freeze' pins the manifest to
exact commit hashes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return fmt.Errorf("--verbose and --quiet are mutually exclusive")
		}
		cmd.SetContext(clog.WithLogger(cmd.Context(), newLogger(cmd.ErrOrStderr())))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dep-sync %s\n", version)
		fmt.Fprintf(out, "  commit:  %s\n", commit)
		fmt.Fprintf(out, "  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to project config file (default: .dep-sync.yaml in the project root)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the diagnostic logger. Progress output does not go
// through it.
func newLogger(w io.Writer) *clog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return clog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorf("%s", err)
		return err
	}
	return nil
}
