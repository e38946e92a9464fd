package main

import (
	"fmt"

	"github.com/huangang/promptlib/internal/config"
	"github.com/huangang/promptlib/internal/utils"
	"github.com/spf13/cobra"
)

func newTokenCmd(cfgFile *string) *cobra.Command {
	var (
		uid, email, name, picture string
		hours                     int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development identity token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			utils.SetJWTSecret(cfg.JWT.Secret)
			if cfg.JWT.Issuer != "" {
				utils.SetJWTIssuer(cfg.JWT.Issuer)
			}
			if hours <= 0 {
				hours = cfg.JWT.ExpireHour
			}

			token, err := utils.GenerateIdentityToken(uid, email, name, picture, hours)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "identity uid")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&picture, "picture", "", "photo URL claim")
	cmd.Flags().IntVar(&hours, "hours", 0, "lifetime in hours (default from config)")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}
