package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Config configures a Handler. Both secrets are optional.
type Config struct {
	// VerificationToken must match header.token of every v2 event when set.
	VerificationToken string
	// EncryptKey enables signature checks and payload decryption.
	EncryptKey string
	// MaxBodyBytes caps the request body; 1 MiB when zero.
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

// Result is the status and JSON body to send back
type Result struct {
	Status int
	Body   any
}

// Handler callbacks. A nil result from URLVerificationHandler or
// CardActionHandler selects the default response body. A returned error
// produces a 500.
type (
	URLVerificationHandler func(ctx context.Context, event *URLVerificationEvent) (any, error)
	MessageReceiveHandler  func(ctx context.Context, event *MessageReceiveEvent) error
	MessageReadHandler     func(ctx context.Context, event *MessageReadEvent) error
	BotAddedHandler        func(ctx context.Context, event *BotAddedEvent) error
	CardActionHandler      func(ctx context.Context, event *CardActionEvent) (any, error)
)

// Handler routes webhook payloads to registered callbacks. Register
// callbacks before serving; registration is not synchronized.
type Handler struct {
	config Config
	logger zerolog.Logger

	onURLVerification URLVerificationHandler
	onMessageReceive  MessageReceiveHandler
	onMessageRead     MessageReadHandler
	onBotAdded        BotAddedHandler
	onCardAction      CardActionHandler
}

// NewHandler creates a Handler
func NewHandler(config Config) *Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		config: config,
		logger: config.Logger,
	}
}

func (h *Handler) OnURLVerification(fn URLVerificationHandler) *Handler {
	h.onURLVerification = fn
	return h
}

func (h *Handler) OnMessageReceive(fn MessageReceiveHandler) *Handler {
	h.onMessageReceive = fn
	return h
}

func (h *Handler) OnMessageRead(fn MessageReadHandler) *Handler {
	h.onMessageRead = fn
	return h
}

func (h *Handler) OnBotAdded(fn BotAddedHandler) *Handler {
	h.onBotAdded = fn
	return h
}

func (h *Handler) OnCardAction(fn CardActionHandler) *Handler {
	h.onCardAction = fn
	return h
}

// ServeHTTP writes the Result of Handle as JSON
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result := h.Handle(r.Context(), r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	if err := json.NewEncoder(w).Encode(result.Body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode webhook response")
	}
}

// Handle verifies, decrypts and dispatches an inbound webhook request
func (h *Handler) Handle(ctx context.Context, r *http.Request) Result {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodyBytes+1))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read webhook body")
		return errorResult(http.StatusInternalServerError, "Internal server error")
	}
	if int64(len(body)) > h.config.MaxBodyBytes {
		return errorResult(http.StatusRequestEntityTooLarge, "Request body too large")
	}

	if h.config.EncryptKey != "" {
		if err := VerifyRequest(r.Header, body, h.config.EncryptKey); err != nil {
			h.logger.Warn().Err(err).Msg("Rejected webhook request")
			return errorResult(http.StatusUnauthorized, "Invalid signature")
		}
	}

	return h.HandleRaw(ctx, body)
}

// HandleRaw decrypts and dispatches a payload whose transport has already
// been authenticated.
func (h *Handler) HandleRaw(ctx context.Context, body []byte) Result {
	payload, ok := decodeObject(body)
	if !ok {
		return errorResult(http.StatusBadRequest, "Invalid request body")
	}

	if h.config.EncryptKey != "" {
		if encrypted, isString := payload["encrypt"].(string); isString && encrypted != "" {
			plaintext, err := Decrypt(h.config.EncryptKey, encrypted)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Rejected webhook request")
				return errorResult(http.StatusUnauthorized, "Failed to decrypt event")
			}
			body = []byte(plaintext)
			if payload, ok = decodeObject(body); !ok {
				return errorResult(http.StatusBadRequest, "Invalid request body")
			}
		}
	}

	return h.dispatch(ctx, body, payload)
}

// dispatch tries the challenge shape first and the v2 event shape second.
func (h *Handler) dispatch(ctx context.Context, body []byte, payload map[string]any) Result {
	if validation.Validate(payload, challengeRule) == nil {
		return h.handleChallenge(ctx, body)
	}

	if err := validation.Validate(payload, envelopeRule); err != nil {
		h.logger.Debug().Err(err).Msg("Invalid webhook event format")
		return errorResult(http.StatusBadRequest, "Invalid event format")
	}

	var envelope Event[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errorResult(http.StatusBadRequest, "Invalid event format")
	}
	header := envelope.Header

	if h.config.VerificationToken != "" && header.Token != h.config.VerificationToken {
		h.logger.Warn().
			Str("event_id", header.EventID).
			Str("event_type", header.EventType).
			Msg("Webhook verification token mismatch")
		return errorResult(http.StatusUnauthorized, "Invalid verification token")
	}

	log := h.logger.With().
		Str("event_id", header.EventID).
		Str("event_type", header.EventType).
		Logger()

	var (
		reply any
		err   error
	)
	switch header.EventType {
	case EventTypeMessageReceive:
		if h.onMessageReceive == nil {
			break
		}
		if event, ok := decodeEvent[MessageReceive](log, body, payload, messageReceiveRule); ok {
			err = h.onMessageReceive(ctx, event)
		}
	case EventTypeMessageRead:
		if h.onMessageRead == nil {
			break
		}
		if event, ok := decodeEvent[MessageRead](log, body, payload, messageReadRule); ok {
			err = h.onMessageRead(ctx, event)
		}
	case EventTypeBotAdded:
		if h.onBotAdded == nil {
			break
		}
		if event, ok := decodeEvent[BotAdded](log, body, payload, botAddedRule); ok {
			err = h.onBotAdded(ctx, event)
		}
	case EventTypeCardAction:
		if h.onCardAction == nil {
			break
		}
		if event, ok := decodeEvent[CardAction](log, body, payload, cardActionRule); ok {
			reply, err = h.onCardAction(ctx, event)
		}
	default:
		log.Debug().Msg("No handler for webhook event type")
	}

	if err != nil {
		log.Error().Err(err).Msg("Webhook handler failed")
		return errorResult(http.StatusInternalServerError, "Internal server error")
	}
	if reply != nil {
		return Result{Status: http.StatusOK, Body: reply}
	}
	return okResult()
}

func (h *Handler) handleChallenge(ctx context.Context, body []byte) Result {
	var event URLVerificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return errorResult(http.StatusBadRequest, "Invalid request body")
	}

	if h.onURLVerification != nil {
		reply, err := h.onURLVerification(ctx, &event)
		if err != nil {
			h.logger.Error().Err(err).Msg("URL verification handler failed")
			return errorResult(http.StatusInternalServerError, "Internal server error")
		}
		if reply != nil {
			return Result{Status: http.StatusOK, Body: reply}
		}
	}
	return Result{Status: http.StatusOK, Body: map[string]string{"challenge": event.Challenge}}
}

// decodeEvent checks the event payload against rule and binds it. A mismatch
// is logged and reported as !ok so the request is still acknowledged.
func decodeEvent[T any](log zerolog.Logger, body []byte, payload map[string]any, rule validation.Rule) (*Event[T], bool) {
	if err := validation.Validate(payload["event"], rule); err != nil {
		log.Warn().Err(err).Msg("Webhook event does not match its schema")
		return nil, false
	}

	var event Event[T]
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warn().Err(err).Msg("Failed to bind webhook event")
		return nil, false
	}
	return &event, true
}

func decodeObject(body []byte) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return nil, false
	}
	return payload, true
}

func errorResult(status int, message string) Result {
	return Result{Status: status, Body: map[string]string{"error": message}}
}

func okResult() Result {
	return Result{Status: http.StatusOK, Body: map[string]bool{"ok": true}}
}
