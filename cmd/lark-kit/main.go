package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/myzkey/lark-kit/internal/config"
	"github.com/myzkey/lark-kit/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "lark-kit",
		Short:         "Lark / Feishu open platform toolkit",
		Long:          `lark-kit serves an event callback endpoint for a Lark / Feishu app and exposes helpers for tokens and encrypted events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to lark-kit.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	load := func() (*config.Config, zerolog.Logger, error) {
		log := logger.New()
		if debug {
			log = log.Level(zerolog.DebugLevel)
		}
		cfg, err := config.Load(configPath, log)
		return cfg, log, err
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newTokenCommand(load))
	rootCmd.AddCommand(newDecryptCommand(load))

	return rootCmd
}

type loadFunc func() (*config.Config, zerolog.Logger, error)
