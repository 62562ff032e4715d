package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bianoble/dep-sync/internal/vcs"
)

// openRepo opens the repository containing the directory in args, or the
// current directory.
func openRepo(args []string) (*vcs.GitRepository, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	root, err := vcs.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	return vcs.Open(root)
}

var branchesCmd = &cobra.Command{
	Use:   "branches [dir]",
	Short: "List the local branches of a repository",
	Long: `Lists the local branches of the repository containing dir (default: the
current directory). The checked-out branch is marked with '*'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo(args)
		if err != nil {
			return err
		}
		names, err := repo.ListBranches()
		if err != nil {
			return err
		}
		current, _, err := repo.CurrentBranch()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range names {
			marker := "  "
			if name == current {
				marker = "* "
			}
			info(out, "%s%s", marker, name)
		}
		return nil
	},
}

var headCmd = &cobra.Command{
	Use:   "head [dir]",
	Short: "Show the commit message of HEAD",
	Long: `Prints the commit hash and message of HEAD in the repository containing dir
(default: the current directory).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo(args)
		if err != nil {
			return err
		}
		head, err := repo.Head()
		if err != nil {
			return err
		}
		msg, err := repo.HeadMessage()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		info(out, "commit %s", head)
		info(out, "")
		for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
			info(out, "    %s", line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(headCmd)
}
