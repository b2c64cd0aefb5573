package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"conduct/internal/config"
	"conduct/internal/server"
)

var modulesConfigPath string

// modulesCmd lists the modules this build ships, the dependencies each one
// pulls in and whether the configured targets enable it. Useful to preview
// what a given --target selection would actually run.
var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the available modules and their dependencies",
	Args:  cobra.NoArgs,
	RunE:  runModules,
}

func runModules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(modulesConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(cfg, GetVersion())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"MODULE", "DEPENDENCIES", "ENABLED"})

	for _, desc := range srv.Modules() {
		deps := strings.Join(desc.Dependencies, ", ")
		if deps == "" {
			deps = "-"
		}
		enabled := ""
		if desc.Enabled {
			enabled = "yes"
		}
		t.AppendRow(table.Row{desc.Name, deps, enabled})
	}

	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(modulesCmd)

	modulesCmd.Flags().StringVar(&modulesConfigPath, "config", "", "Path to the YAML configuration file")
}
