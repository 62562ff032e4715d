package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bianoble/dep-sync/pkg/depsync"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout [manifest]",
	Short: "Clone and check out every dependency at its listed revision",
	Long: `Reads the manifest and, for each dependency in order, clones it next to the
project if it is missing, stashes local changes, checks out the listed tag,
branch or commit and restores the stash. Branches are updated from their
upstream with the --merge-for-branches strategy.

Processing stops at the first dependency that cannot be brought to its
revision.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		client, err := newClient(cmd, args, s)
		if err != nil {
			return err
		}
		detail(cmd.OutOrStdout(), "manifest: %s", client.ManifestPath())

		_, err = client.Checkout(cmd.Context(), depsync.CheckoutOptions{
			NoStash:          flagBool(cmd, "no-stash", s.NoStash),
			FetchForTags:     flagString(cmd, "fetch-for-tags", s.FetchForTags),
			MergeForBranches: flagString(cmd, "merge-for-branches", s.MergeForBranches),
			Confirm:          promptConfirm(os.Stdin, cmd.OutOrStdout()),
		})
		return err
	},
}

// promptConfirm asks question on the terminal. It fails when in is not a
// terminal.
func promptConfirm(in *os.File, out io.Writer) depsync.ConfirmFunc {
	return func(ctx context.Context, question string) (bool, error) {
		if !term.IsTerminal(int(in.Fd())) {
			return false, fmt.Errorf("cannot ask %q: stdin is not a terminal", question)
		}
		fmt.Fprintf(out, "%s [y/N] ", question)
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return false, scanner.Err()
		}
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}
}

func init() {
	checkoutCmd.Flags().Bool("no-stash", false, "check out over local changes without stashing them")
	checkoutCmd.Flags().String("fetch-for-tags", "no", "fetch before checking out a known tag: no, prompt, prompt_force, force")
	checkoutCmd.Flags().String("merge-for-branches", "ff-only", "how to update branches from upstream: ff-only, rebase, merge, no")
	rootCmd.AddCommand(checkoutCmd)
}
