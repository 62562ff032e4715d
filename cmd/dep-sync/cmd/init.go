package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bianoble/dep-sync/internal/config"
	"github.com/bianoble/dep-sync/internal/sandbox"
)

var (
	initForce  bool
	initFormat string
)

// manifestTemplate is the starter Dependencies.txt.
const manifestTemplate = `# Dependencies of this project, one per line:
#
#   <directory> <tag, branch or commit> <clone URL>
#
# Directories are relative to the folder that holds this project, so
# dependencies are cloned next to it. Variables are declared with
#
#=  <ORIGIN> = https://github.com/your-org
#
# and used as <ORIGIN> in any later line.

# libfoo v1.2.0 <ORIGIN>/libfoo.git
# tools  main   <ORIGIN>/tools.git
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter Dependencies.txt and project configuration",
	Long: `Creates Dependencies.txt and a project configuration file (.dep-sync.yaml,
or .dep-sync.toml with --format toml) in the root of the current project.
The configuration holds the default settings so they can be edited.

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectDir()
		if err != nil {
			return err
		}

		format := config.Format(initFormat)
		if format != config.FormatYAML && format != config.FormatTOML {
			return fmt.Errorf("unsupported format %q: must be yaml or toml", initFormat)
		}
		cfgName := ".dep-sync." + initFormat
		cfgData, err := config.Encode(starterConfig(), format)
		if err != nil {
			return err
		}

		files := []struct {
			name    string
			content []byte
		}{
			{config.Defaults().Manifest, []byte(manifestTemplate)},
			{cfgName, cfgData},
		}

		if !initForce {
			for _, f := range files {
				if _, err := os.Stat(filepath.Join(root, f.name)); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", filepath.Join(root, f.name))
				}
			}
		}

		out := cmd.OutOrStdout()
		for _, f := range files {
			if err := sandbox.SafeWrite(root, f.name, f.content, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", f.name, err)
			}
			info(out, "Created %s", filepath.Join(root, f.name))
		}

		info(out, "")
		info(out, "Next steps:")
		info(out, "  1. List your dependencies in %s", files[0].name)
		info(out, "  2. Run 'dep-sync checkout' to clone and check them out")
		info(out, "  3. Run 'dep-sync freeze' to pin them to exact commits")
		return nil
	},
}

// starterConfig spells out the defaults.
func starterConfig() *config.Config {
	d := config.Defaults()
	noStash, localOnly, allowBranches := d.NoStash, d.LocalIdentityOnly, d.AllowBranches
	suffix := d.BackupSuffix
	return &config.Config{
		Version:  1,
		Manifest: d.Manifest,
		Checkout: config.Checkout{
			NoStash:           &noStash,
			FetchForTags:      d.FetchForTags,
			MergeForBranches:  d.MergeForBranches,
			LocalIdentityOnly: &localOnly,
		},
		Freeze: config.Freeze{
			AllowBranches: &allowBranches,
			BackupSuffix:  &suffix,
		},
	}
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "configuration file format: yaml or toml")
	rootCmd.AddCommand(initCmd)
}
