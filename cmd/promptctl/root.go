package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "promptctl",
		Short: "Work with promptlib templates from the command line",
		Long: `promptctl renders prompt templates locally, lists their placeholders,
issues development identity tokens and drives the session marker endpoint.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(
		&cfgFile, "config", os.Getenv("CONFIG_PATH"), "config file (default: ./config.yaml)",
	)

	root.AddCommand(
		newRenderCmd(),
		newPlaceholdersCmd(),
		newTokenCmd(&cfgFile),
		newSessionCmd(),
	)
	return root
}
