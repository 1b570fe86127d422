package main

import (
	"errors"

	"github.com/aretw0/argview/internal/cli"
	"github.com/aretw0/argview/pkg/adapters/sqlite"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect retained snapshots and recorded journals",
}

var inspectRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs with a retained snapshot",
	Args:  cobra.NoArgs,
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
		return cli.ListRuns(cmd.Context(), res.Store, cmd.OutOrStdout())
	},
}

var inspectShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the retained snapshot of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		res, err := cli.OpenResources(cfg)
		if err != nil {
			return err
		}
		defer res.Close()
		return cli.ShowSnapshot(cmd.Context(), res.Store, args[0], format, cmd.OutOrStdout())
	},
}

var inspectJournalCmd = &cobra.Command{
	Use:   "journal [run-id]",
	Short: "List recorded runs, or print the messages of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Journal == "" {
			return errors.New("no journal configured (use --journal)")
		}
		format, _ := cmd.Flags().GetString("format")

		journal, err := sqlite.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer journal.Close()

		var runID string
		if len(args) > 0 {
			runID = args[0]
		}
		return cli.ShowJournal(cmd.Context(), journal, runID, format, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectRunsCmd, inspectShowCmd, inspectJournalCmd)
	inspectShowCmd.Flags().StringP("format", "f", cli.FormatMarkdown, "Output format (md, json, mermaid)")
	inspectJournalCmd.Flags().StringP("format", "f", "", "Output format (table, json, script)")
}
