package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/dep-sync/pkg/depsync"
)

var freezeDryRun bool

var freezeCmd = &cobra.Command{
	Use:   "freeze [manifest]",
	Short: "Pin every dependency in the manifest to its checked-out commit",
	Long: `Rewrites the manifest so that each tag, branch or abbreviated hash becomes
the full commit hash the dependency has checked out. The previous line is
kept above the new one as a comment, and the old manifest is saved with the
--backup-suffix appended to its name.

Every dependency must be clean and at the listed revision. If any is not,
the manifest is left untouched.`,
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

		suffix := flagString(cmd, "backup-suffix", s.BackupSuffix)
		result, err := client.Freeze(cmd.Context(), depsync.FreezeOptions{
			AllowBranches: flagBool(cmd, "allow-branches", s.AllowBranches),
			DryRun:        freezeDryRun,
			BackupSuffix:  &suffix,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if freezeDryRun {
			info(out, "")
			_, err := out.Write(result.Content())
			return err
		}
		if suffix != "" {
			detail(out, "previous manifest saved as %s%s", client.ManifestPath(), suffix)
		}
		info(out, "Wrote %s", client.ManifestPath())
		return nil
	},
}

func init() {
	freezeCmd.Flags().Bool("allow-branches", false, "pin branches to their tip instead of failing")
	freezeCmd.Flags().String("backup-suffix", ".bak", "suffix for the backup of the previous manifest; empty disables it")
	freezeCmd.Flags().BoolVar(&freezeDryRun, "dry-run", false, "print the frozen manifest instead of writing it")
	rootCmd.AddCommand(freezeCmd)
}
