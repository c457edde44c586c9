package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facet-db/facet/internal/cli/config"
	"github.com/facet-db/facet/internal/web"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a bearer token",
	Long:  "Issue a bearer token for the given subject, signed with auth.secret from facet.yml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Auth.Secret == "" {
			return fmt.Errorf("auth.secret is not configured, set it in facet.yml")
		}

		token, err := web.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL).Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
