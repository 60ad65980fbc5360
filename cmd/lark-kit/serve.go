package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/myzkey/lark-kit/internal/app"
)

func newServeCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event callback server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, closeStore, err := app.NewTokenStore(cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client := app.NewClient(cfg, store, log)
			if _, err := client.TenantAccessToken(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to validate app credentials at startup")
			} else {
				log.Info().Str("app_id", cfg.AppID).Msg("App credentials loaded successfully")
			}

			srv := &http.Server{
				Addr:              cfg.HTTPAddress,
				Handler:           app.NewServer(cfg, client, log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("address", cfg.HTTPAddress).Msg("Starting server")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down server")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
