package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/myzkey/lark-kit"
	"github.com/myzkey/lark-kit/core"
	"github.com/myzkey/lark-kit/im"
	"github.com/myzkey/lark-kit/internal/config"
	"github.com/myzkey/lark-kit/internal/server"
	"github.com/myzkey/lark-kit/webhook"
)

// NewClient creates an API client for cfg that caches tokens in store
func NewClient(cfg *config.Config, store core.TokenStore, logger zerolog.Logger) *lark.Client {
	return lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithDomain(cfg.Domain),
		lark.WithTokenStore(store),
		lark.WithHTTPClient(server.NewHTTPClient(cfg.Timeout)),
		lark.WithTimeout(cfg.Timeout),
		lark.WithLogger(logger),
	)
}

// NewWebhookHandler creates the event handler and registers the bot's callbacks
func NewWebhookHandler(cfg *config.Config, client *lark.Client, logger zerolog.Logger) *webhook.Handler {
	handler := webhook.NewHandler(webhook.Config{
		VerificationToken: cfg.VerificationToken,
		EncryptKey:        cfg.EncryptKey,
		Logger:            logger,
	})

	handler.OnBotAdded(func(ctx context.Context, event *webhook.BotAddedEvent) error {
		logger.Info().
			Str("chat_id", event.Event.ChatID).
			Str("tenant_key", event.Header.TenantKey).
			Msg("Bot added to chat")
		return nil
	})

	if cfg.EchoReplies {
		handler.OnMessageReceive(EchoReplies(client.Messages, logger))
	}
	return handler
}

// NewServer wires the API client and webhook handler into a server
func NewServer(cfg *config.Config, client *lark.Client, logger zerolog.Logger) *server.Server {
	return server.New(logger, NewWebhookHandler(cfg, client, logger))
}

// EchoReplies answers every text message with its own text. The reply uuid
// is derived from the event id so redelivered events are not answered twice.
func EchoReplies(messages *im.MessageClient, logger zerolog.Logger) webhook.MessageReceiveHandler {
	return func(ctx context.Context, event *webhook.MessageReceiveEvent) error {
		msg := event.Event.Message
		if event.Event.Sender.SenderType == "app" || msg.MessageType != "text" || msg.MessageID == "" {
			return nil
		}

		text, err := im.ParseTextContent(msg.Content)
		if err != nil {
			return err
		}

		idempotencyKey := uuid.NewSHA1(uuid.NameSpaceOID, []byte(event.Header.EventID)).String()
		reply, err := messages.ReplyText(ctx, msg.MessageID, text, idempotencyKey)
		if err != nil {
			return err
		}

		logger.Debug().
			Str("message_id", msg.MessageID).
			Str("reply_id", reply.MessageID).
			Msg("Echoed message")
		return nil
	}
}
