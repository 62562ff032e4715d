package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/bianoble/dep-sync/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status [manifest]",
	Short: "Show where every dependency stands relative to the manifest",
	Long: `Shows, for each dependency, the listed revision and what it resolves to,
the commit and branch checked out, and a state: ok, missing, dirty, drifted
or unresolved. Repositories next to the project that the manifest does not
list are shown afterwards.

Nothing is fetched or modified.`,
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

		report, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(report.Dependencies) == 0 {
			info(out, "No dependencies listed in %s.", client.ManifestPath())
		} else if err := renderStatus(out, report, useColor(out)); err != nil {
			return err
		}

		if len(report.Unlisted) > 0 {
			info(out, "\nNot listed in the manifest:")
			for _, dir := range report.Unlisted {
				info(out, "  %s", dir)
			}
		}
		return nil
	},
}

var stateColors = map[string]string{
	engine.StateOK:         "\x1b[32m",
	engine.StateMissing:    "\x1b[33m",
	engine.StateDirty:      "\x1b[33m",
	engine.StateDrifted:    "\x1b[31m",
	engine.StateUnresolved: "\x1b[31m",
}

func colorState(state string, color bool) string {
	c, ok := stateColors[state]
	if !color || !ok {
		return state
	}
	return c + state + "\x1b[0m"
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func renderStatus(w io.Writer, report *engine.StatusReport, color bool) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Dependency", "Ref", "Kind", "Head", "Branch", "State", "Detail"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
	for _, d := range report.Dependencies {
		kind := ""
		if d.State != engine.StateMissing {
			kind = d.Kind.String()
		}
		row := []string{d.Path, d.Ref, kind, shortHash(d.Head), d.Branch, colorState(d.State, color), d.Detail}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("rendering status: %w", err)
		}
	}
	return table.Render()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
