package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/argview"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of argview",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "argview version %s\n", strings.TrimSpace(argview.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
