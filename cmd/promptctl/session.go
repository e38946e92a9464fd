package main

import (
	"fmt"
	"time"

	"github.com/huangang/promptlib/internal/bridge"
	"github.com/huangang/promptlib/internal/services"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Set or clear the session marker on a running server",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", services.DefaultActionTimeout, "request timeout")

	var uid string
	set := &cobra.Command{
		Use:   "set",
		Short: "Record uid in the session marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := bridge.NewSessionBridge(server, bridge.WithTimeout(timeout))
			if err := b.Observe(cmd.Context(), &services.Identity{UID: uid}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session marker set for %s\n", uid)
			return nil
		},
	}
	set.Flags().StringVar(&uid, "uid", "", "identity uid")
	_ = set.MarkFlagRequired("uid")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the session marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := bridge.NewSessionBridge(server, bridge.WithTimeout(timeout))
			if err := b.Observe(cmd.Context(), nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session marker cleared")
			return nil
		},
	}

	cmd.AddCommand(set, clearCmd)
	return cmd
}
