//go:build !js || !wasm

package app

import (
	"github.com/rs/zerolog"

	"github.com/myzkey/lark-kit/core"
	"github.com/myzkey/lark-kit/internal/config"
	"github.com/myzkey/lark-kit/tokenstore"
)

// NewTokenStore picks Redis when REDIS_URL is configured and process memory
// otherwise. The returned func releases the store.
func NewTokenStore(cfg *config.Config, logger zerolog.Logger) (core.TokenStore, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("Using in-memory token store")
		return tokenstore.NewMemory(), func() error { return nil }, nil
	}

	store, err := tokenstore.NewRedisFromURL(cfg.RedisURL, "")
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("Using Redis token store")
	return store, store.Close, nil
}

// NewFileTokenStore persists tokens between CLI invocations
func NewFileTokenStore(cfg *config.Config) *tokenstore.File {
	path := cfg.TokenFile
	if path == "" {
		path = tokenstore.DefaultFilePath()
	}
	return tokenstore.NewFile(path)
}
