package main

import (
	"os"

	"github.com/aretw0/argview/internal/cli"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect [url]",
	Short: "Mirror the tree of a running ARG process",
	Long: `Connects to the remote process and mirrors its tree.

On a terminal the interactive viewer starts: press 'c' or space to continue a
paused process and 'q' to quit. Otherwise, or with --plain, every snapshot is
printed as Markdown. With --listen the HTTP API serves the tree as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 && !cmd.Flags().Changed("url") {
			cfg.URL = args[0]
		}

		plain, _ := cmd.Flags().GetBool("plain")
		headless, _ := cmd.Flags().GetBool("headless")
		noBanner, _ := cmd.Flags().GetBool("no-banner")

		mode := cli.ModeTUI
		switch {
		case headless:
			mode = cli.ModeHeadless
		case plain || !cli.IsTerminal(os.Stdout) || !cli.IsTerminal(os.Stdin):
			mode = cli.ModePlain
		}

		return cli.RunConnect(cmd.Context(), cli.ConnectOptions{
			Config: cfg,
			Mode:   mode,
			Logger: logger,
			Out:    cmd.OutOrStdout(),
			Banner: mode == cli.ModePlain && !noBanner && cli.IsTerminal(os.Stdout),
		})
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().String("url", "", "URL of the remote process (default from config)")
	connectCmd.Flags().String("protocol", "", "Framing spoken with the remote: socketio or envelope")
	connectCmd.Flags().StringP("listen", "l", "", "Serve the HTTP API on this address (e.g. :8090)")
	connectCmd.Flags().String("run-id", "", "Name of the observed run (random when empty)")
	connectCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics of the HTTP API")
	connectCmd.Flags().Bool("lock", false, "Serialize mutations with a redis lock")
	connectCmd.Flags().Bool("plain", false, "Print snapshots instead of starting the interactive viewer")
	connectCmd.Flags().Bool("headless", false, "Only log; combine with --listen")
	connectCmd.Flags().Bool("no-banner", false, "Do not print the startup banner")
}
