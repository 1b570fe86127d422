package main

import (
	"github.com/aretw0/argview/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <run-id>",
	Short: "Export the tree of a run as a Mermaid diagram",
	Long:  `Loads the retained snapshot of a run and outputs a Mermaid diagram (graph TD) of its tree.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		res, err := cli.OpenResources(cfg)
		if err != nil {
			return err
		}
		defer res.Close()
		return cli.ShowSnapshot(cmd.Context(), res.Store, args[0], cli.FormatMermaid, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
