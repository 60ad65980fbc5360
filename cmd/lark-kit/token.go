package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/myzkey/lark-kit/internal/app"
)

func newTokenCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a tenant access token",
		Long:  `Print a tenant access token for the configured app. Tokens are cached in a file under the XDG config directory until shortly before they expire.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store := app.NewFileTokenStore(cfg)
			log.Debug().Str("path", store.Path).Msg("Using file token store")

			token, err := app.NewClient(cfg, store, log).TenantAccessToken(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
