//go:build js && wasm

package main

import (
	"os"

	"github.com/syumai/workers"

	"github.com/myzkey/lark-kit/internal/app"
	"github.com/myzkey/lark-kit/internal/config"
	"github.com/myzkey/lark-kit/internal/env"
	"github.com/myzkey/lark-kit/internal/logger"
	"github.com/myzkey/lark-kit/tokenstore"
)

// kvBinding is the KV namespace binding configured in wrangler.toml
const kvBinding = "lark_kit_kv"

func main() {
	envName, _ := env.Get("ENV")
	level, _ := env.Get("LOG_LEVEL")
	log := logger.NewWithOptions(envName, level, os.Stderr)

	cfg, err := config.FromLookup(env.Get)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Using Cloudflare KV token store")
	store, err := tokenstore.NewCloudflareKV(kvBinding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV token store")
	}

	srv := app.NewServer(cfg, app.NewClient(cfg, store, log), log)

	workers.Serve(srv)
}
