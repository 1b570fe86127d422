package main

import (
	"github.com/aretw0/argview/internal/cli"
	"github.com/spf13/cobra"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a scripted remote process",
	Long: `Plays a script, or a run recorded in a journal, to every viewer that connects.

Each step sends one edit message or pauses with "wait" until the viewer continues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		script, _ := cmd.Flags().GetString("script")
		runID, _ := cmd.Flags().GetString("run-id")
		listen, _ := cmd.Flags().GetString("listen")
		closeAfter, _ := cmd.Flags().GetBool("close")

		return cli.RunMock(cmd.Context(), cli.MockOptions{
			Listen:      listen,
			ScriptPath:  script,
			JournalPath: cfg.Journal,
			RunID:       runID,
			Close:       closeAfter,
			Logger:      logger,
			Out:         cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(mockCmd)
	mockCmd.Flags().StringP("script", "s", "", "YAML or JSON script to play")
	mockCmd.Flags().String("run-id", "", "Run to replay from --journal")
	mockCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
	mockCmd.Flags().Bool("close", false, "Close each connection after the last step")
}
