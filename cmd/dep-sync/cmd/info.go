package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/dep-sync/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show dep-sync configuration and where it came from",
	Long: `Displays the dep-sync version, the project root and manifest in use, the
config files that were considered (system, user, project) and the effective
settings after environment overrides.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hr, env, err := loadConfigHierarchical(cmd)
		if err != nil {
			return err
		}
		s, err := config.Resolve(hr.Config, env)
		if err != nil {
			return err
		}
		root, err := projectDir()
		if err != nil {
			return err
		}
		manifest, err := manifestPath(nil, s)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		info(out, "dep-sync %s", version)
		info(out, "  project root:  %s", root)
		info(out, "  manifest:      %s", manifest)

		info(out, "  config chain:")
		for _, layer := range hr.Layers {
			status := "not found"
			if layer.Loaded {
				status = "loaded"
			}
			info(out, "    %-10s %s (%s)", string(layer.Level)+":", layer.Path, status)
		}
		if env.NoInherit {
			info(out, "    (system and user config skipped: DEP_SYNC_NO_INHERIT)")
		}

		info(out, "\nSettings:")
		info(out, "  no stash:            %t", s.NoStash)
		info(out, "  fetch for tags:      %s", s.FetchForTags)
		info(out, "  merge for branches:  %s", s.MergeForBranches)
		info(out, "  local identity only: %t", s.LocalIdentityOnly)
		info(out, "  allow branches:      %t", s.AllowBranches)
		info(out, "  backup suffix:       %q", s.BackupSuffix)
		if s.Concurrency > 0 {
			info(out, "  status concurrency:  %d", s.Concurrency)
		} else {
			info(out, "  status concurrency:  one per CPU")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
