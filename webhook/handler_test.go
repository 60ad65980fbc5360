package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(eventType string) map[string]any {
	return map[string]any{
		"event_id":    "ev_1",
		"event_type":  eventType,
		"create_time": "1700000000000",
		"token":       "vtoken",
		"app_id":      "cli_a",
		"tenant_key":  "tenant",
	}
}

func envelope(eventType string, event map[string]any) map[string]any {
	return map[string]any{
		"schema": "2.0",
		"header": header(eventType),
		"event":  event,
	}
}

func messageReceivePayload() map[string]any {
	return map[string]any{
		"sender": map[string]any{
			"sender_id":   map[string]any{"open_id": "ou_1"},
			"sender_type": "user",
		},
		"message": map[string]any{
			"message_id":   "om_1",
			"chat_id":      "oc_1",
			"message_type": "text",
			"content":      `{"text":"hello"}`,
			"mentions": []any{
				map[string]any{"key": "@_user_1", "id": map[string]any{"open_id": "ou_2"}, "name": "Bob"},
			},
		},
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleRaw_ChallengeDefault(t *testing.T) {
	h := NewHandler(Config{})

	result := h.HandleRaw(context.Background(), []byte(`{"challenge":"xyz","token":"t","type":"url_verification"}`))

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, map[string]string{"challenge": "xyz"}, result.Body)
}

func TestHandleRaw_ChallengeHandler(t *testing.T) {
	var seen *URLVerificationEvent
	h := NewHandler(Config{}).OnURLVerification(func(ctx context.Context, event *URLVerificationEvent) (any, error) {
		seen = event
		return map[string]string{"challenge": "custom"}, nil
	})

	result := h.HandleRaw(context.Background(), []byte(`{"challenge":"xyz","token":"t","type":"url_verification"}`))

	require.NotNil(t, seen)
	assert.Equal(t, "t", seen.Token)
	assert.Equal(t, map[string]string{"challenge": "custom"}, result.Body)
}

func TestHandleRaw_ChallengeHandlerNilResult(t *testing.T) {
	h := NewHandler(Config{}).OnURLVerification(func(ctx context.Context, event *URLVerificationEvent) (any, error) {
		return nil, nil
	})

	result := h.HandleRaw(context.Background(), []byte(`{"challenge":"xyz","token":"t","type":"url_verification"}`))
	assert.Equal(t, map[string]string{"challenge": "xyz"}, result.Body)
}

func TestHandleRaw_ChallengeRequiresLiteralType(t *testing.T) {
	h := NewHandler(Config{})

	result := h.HandleRaw(context.Background(), []byte(`{"challenge":"xyz","token":"t","type":"event_callback"}`))
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, map[string]string{"error": "Invalid event format"}, result.Body)
}

func TestHandleRaw_MessageReceive(t *testing.T) {
	calls := 0
	var got *MessageReceiveEvent
	h := NewHandler(Config{}).OnMessageReceive(func(ctx context.Context, event *MessageReceiveEvent) error {
		calls++
		got = event
		return nil
	})

	result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeMessageReceive, messageReceivePayload())))

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, map[string]bool{"ok": true}, result.Body)
	require.Equal(t, 1, calls)
	assert.Equal(t, "ev_1", got.Header.EventID)
	assert.Equal(t, "om_1", got.Event.Message.MessageID)
	assert.Equal(t, "ou_1", got.Event.Sender.SenderID.OpenID)
	require.Len(t, got.Event.Message.Mentions, 1)
	assert.Equal(t, "ou_2", got.Event.Message.Mentions[0].ID.OpenID)
}

func TestHandleRaw_UnregisteredTypes(t *testing.T) {
	called := false
	h := NewHandler(Config{}).OnMessageReceive(func(ctx context.Context, event *MessageReceiveEvent) error {
		called = true
		return nil
	})

	for _, eventType := range []string{EventTypeMessageRead, EventTypeBotAdded, "contact.user.created_v3"} {
		result := h.HandleRaw(context.Background(), mustJSON(t, envelope(eventType, map[string]any{})))
		assert.Equal(t, http.StatusOK, result.Status, eventType)
		assert.Equal(t, map[string]bool{"ok": true}, result.Body, eventType)
	}
	assert.False(t, called)
}

func TestHandleRaw_SubSchemaMismatchIsAcknowledged(t *testing.T) {
	called := false
	h := NewHandler(Config{}).OnMessageReceive(func(ctx context.Context, event *MessageReceiveEvent) error {
		called = true
		return nil
	})

	payload := map[string]any{"sender": map[string]any{}, "message": "not an object"}
	result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeMessageReceive, payload)))

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, map[string]bool{"ok": true}, result.Body)
	assert.False(t, called)
}

func TestHandleRaw_InvalidEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing header", map[string]any{"event": map[string]any{}}},
		{"missing event", map[string]any{"header": header(EventTypeMessageReceive)}},
		{"event not an object", map[string]any{"header": header(EventTypeMessageReceive), "event": []any{}}},
		{"header field not a string", func() map[string]any {
			e := envelope(EventTypeMessageReceive, map[string]any{})
			e["header"].(map[string]any)["create_time"] = 1700000000
			return e
		}()},
		{"header field missing", func() map[string]any {
			e := envelope(EventTypeMessageReceive, map[string]any{})
			delete(e["header"].(map[string]any), "tenant_key")
			return e
		}()},
	}

	h := NewHandler(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.HandleRaw(context.Background(), mustJSON(t, tt.payload))
			assert.Equal(t, http.StatusBadRequest, result.Status)
			assert.Equal(t, map[string]string{"error": "Invalid event format"}, result.Body)
		})
	}
}

func TestHandleRaw_InvalidBody(t *testing.T) {
	h := NewHandler(Config{})
	for _, body := range []string{"not json", "[]", "null"} {
		result := h.HandleRaw(context.Background(), []byte(body))
		assert.Equal(t, http.StatusBadRequest, result.Status, body)
		assert.Equal(t, map[string]string{"error": "Invalid request body"}, result.Body, body)
	}
}

func TestHandleRaw_VerificationToken(t *testing.T) {
	h := NewHandler(Config{VerificationToken: "other"}).OnBotAdded(func(ctx context.Context, event *BotAddedEvent) error {
		t.Fatal("handler must not run")
		return nil
	})

	result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeBotAdded, map[string]any{"chat_id": "oc_1"})))
	assert.Equal(t, http.StatusUnauthorized, result.Status)
	assert.Equal(t, map[string]string{"error": "Invalid verification token"}, result.Body)

	h = NewHandler(Config{VerificationToken: "vtoken"})
	result = h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeBotAdded, map[string]any{"chat_id": "oc_1"})))
	assert.Equal(t, http.StatusOK, result.Status)
}

func TestHandleRaw_ChallengeSkipsVerificationToken(t *testing.T) {
	h := NewHandler(Config{VerificationToken: "vtoken"})

	result := h.HandleRaw(context.Background(), []byte(`{"challenge":"xyz","token":"other","type":"url_verification"}`))
	assert.Equal(t, http.StatusOK, result.Status)
}

func TestHandleRaw_CardAction(t *testing.T) {
	payload := map[string]any{
		"operator": map[string]any{"open_id": "ou_1"},
		"token":    "c-token",
		"action": map[string]any{
			"tag":   "button",
			"value": map[string]any{"choice": "approve", "n": 2},
		},
		"context": map[string]any{"open_message_id": "om_1", "open_chat_id": "oc_1"},
	}

	t.Run("reply becomes the body", func(t *testing.T) {
		h := NewHandler(Config{}).OnCardAction(func(ctx context.Context, event *CardActionEvent) (any, error) {
			assert.Equal(t, "approve", event.Event.Action.Value["choice"])
			assert.Equal(t, "om_1", event.Event.Context.OpenMessageID)
			return map[string]any{"toast": map[string]any{"type": "success", "content": "done"}}, nil
		})

		result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeCardAction, payload)))
		assert.Equal(t, http.StatusOK, result.Status)
		assert.Equal(t, map[string]any{"toast": map[string]any{"type": "success", "content": "done"}}, result.Body)
	})

	t.Run("nil reply acknowledges", func(t *testing.T) {
		h := NewHandler(Config{}).OnCardAction(func(ctx context.Context, event *CardActionEvent) (any, error) {
			return nil, nil
		})

		result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeCardAction, payload)))
		assert.Equal(t, map[string]bool{"ok": true}, result.Body)
	})
}

func TestHandleRaw_MessageReadAndBotAdded(t *testing.T) {
	var read *MessageReadEvent
	var added *BotAddedEvent
	h := NewHandler(Config{}).
		OnMessageRead(func(ctx context.Context, event *MessageReadEvent) error {
			read = event
			return nil
		}).
		OnBotAdded(func(ctx context.Context, event *BotAddedEvent) error {
			added = event
			return nil
		})

	h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeMessageRead, map[string]any{
		"reader":          map[string]any{"reader_id": map[string]any{"open_id": "ou_1"}, "read_time": "1"},
		"message_id_list": []any{"om_1", "om_2"},
	})))
	h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeBotAdded, map[string]any{
		"chat_id":    "oc_1",
		"external":   true,
		"i18n_names": map[string]any{"en_us": "Team"},
	})))

	require.NotNil(t, read)
	assert.Equal(t, []string{"om_1", "om_2"}, read.Event.MessageIDList)
	require.NotNil(t, added)
	assert.True(t, added.Event.External)
	assert.Equal(t, "Team", added.Event.I18nNames["en_us"])
}

func TestHandleRaw_BotAddedRejectsBadTypes(t *testing.T) {
	called := false
	h := NewHandler(Config{}).OnBotAdded(func(ctx context.Context, event *BotAddedEvent) error {
		called = true
		return nil
	})

	result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeBotAdded, map[string]any{
		"external": "yes",
	})))
	assert.Equal(t, http.StatusOK, result.Status)
	assert.False(t, called)
}

func TestHandleRaw_HandlerError(t *testing.T) {
	h := NewHandler(Config{}).OnMessageReceive(func(ctx context.Context, event *MessageReceiveEvent) error {
		return errors.New("downstream failed")
	})

	result := h.HandleRaw(context.Background(), mustJSON(t, envelope(EventTypeMessageReceive, messageReceivePayload())))
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Equal(t, map[string]string{"error": "Internal server error"}, result.Body)
}

func TestHandle_EncryptedAndSigned(t *testing.T) {
	const key = "encrypt-key"
	plaintext := mustJSON(t, envelope(EventTypeMessageReceive, messageReceivePayload()))
	body := mustJSON(t, map[string]string{"encrypt": encrypt(t, key, testIV, plaintext)})

	calls := 0
	h := NewHandler(Config{EncryptKey: key}).OnMessageReceive(func(ctx context.Context, event *MessageReceiveEvent) error {
		calls++
		return nil
	})

	newRequest := func(signature string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/webhook/event", bytes.NewReader(body))
		req.Header.Set(HeaderTimestamp, "1700000000")
		req.Header.Set(HeaderNonce, "nonce")
		if signature != "" {
			req.Header.Set(HeaderSignature, signature)
		}
		return req
	}

	t.Run("valid signature", func(t *testing.T) {
		result := h.Handle(context.Background(), newRequest(Signature("1700000000", "nonce", key, body)))
		assert.Equal(t, http.StatusOK, result.Status)
		assert.Equal(t, 1, calls)
	})

	t.Run("invalid signature", func(t *testing.T) {
		result := h.Handle(context.Background(), newRequest("deadbeef"))
		assert.Equal(t, http.StatusUnauthorized, result.Status)
		assert.Equal(t, map[string]string{"error": "Invalid signature"}, result.Body)
		assert.Equal(t, 1, calls)
	})

	t.Run("no signature header", func(t *testing.T) {
		result := h.Handle(context.Background(), newRequest(""))
		assert.Equal(t, http.StatusOK, result.Status)
		assert.Equal(t, 2, calls)
	})
}

func TestHandle_DecryptFailure(t *testing.T) {
	h := NewHandler(Config{EncryptKey: "key"})

	req := httptest.NewRequest(http.MethodPost, "/webhook/event", bytes.NewReader([]byte(`{"encrypt":"not-base64!"}`)))
	result := h.Handle(context.Background(), req)

	assert.Equal(t, http.StatusUnauthorized, result.Status)
	assert.Equal(t, map[string]string{"error": "Failed to decrypt event"}, result.Body)
}

func TestHandle_EncryptedChallenge(t *testing.T) {
	const key = "encrypt-key"
	plaintext := []byte(`{"challenge":"xyz","token":"t","type":"url_verification"}`)
	body := mustJSON(t, map[string]string{"encrypt": encrypt(t, key, testIV, plaintext)})

	req := httptest.NewRequest(http.MethodPost, "/webhook/event", bytes.NewReader(body))
	result := NewHandler(Config{EncryptKey: key}).Handle(context.Background(), req)

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, map[string]string{"challenge": "xyz"}, result.Body)
}

func TestHandle_BodyTooLarge(t *testing.T) {
	h := NewHandler(Config{MaxBodyBytes: 8})

	req := httptest.NewRequest(http.MethodPost, "/webhook/event", bytes.NewReader([]byte(`{"challenge":"xyz"}`)))
	result := h.Handle(context.Background(), req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, result.Status)
}

func TestServeHTTP(t *testing.T) {
	h := NewHandler(Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/event", bytes.NewReader([]byte(`{"challenge":"xyz","token":"t","type":"url_verification"}`)))
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"challenge":"xyz"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/event", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
