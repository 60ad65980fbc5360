package webhook

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Event types with typed handlers
const (
	EventTypeURLVerification = "url_verification"
	EventTypeMessageReceive  = "im.message.receive_v1"
	EventTypeMessageRead     = "im.message.message_read_v1"
	EventTypeBotAdded        = "im.chat.member.bot.added_v1"
	EventTypeCardAction      = "card.action.trigger"
)

// URLVerificationEvent is the challenge sent when the callback URL is saved
type URLVerificationEvent struct {
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
	Type      string `json:"type"`
}

// EventHeader is the common header of v2 events
type EventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Token      string `json:"token"`
	AppID      string `json:"app_id"`
	TenantKey  string `json:"tenant_key"`
}

// Event is a v2 event envelope with a typed payload
type Event[T any] struct {
	Schema string      `json:"schema,omitempty"`
	Header EventHeader `json:"header"`
	Event  T           `json:"event"`
}

// UserID holds the identifiers of a user
type UserID struct {
	UnionID string `json:"union_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	OpenID  string `json:"open_id,omitempty"`
}

type EventSender struct {
	SenderID   *UserID `json:"sender_id,omitempty"`
	SenderType string  `json:"sender_type,omitempty"`
	TenantKey  string  `json:"tenant_key,omitempty"`
}

type Mention struct {
	Key       string  `json:"key"`
	ID        *UserID `json:"id,omitempty"`
	Name      string  `json:"name,omitempty"`
	TenantKey string  `json:"tenant_key,omitempty"`
}

type EventMessage struct {
	MessageID   string    `json:"message_id,omitempty"`
	RootID      string    `json:"root_id,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	CreateTime  string    `json:"create_time,omitempty"`
	UpdateTime  string    `json:"update_time,omitempty"`
	ChatID      string    `json:"chat_id,omitempty"`
	ChatType    string    `json:"chat_type,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	Content     string    `json:"content,omitempty"`
	Mentions    []Mention `json:"mentions,omitempty"`
}

// MessageReceive is the payload of im.message.receive_v1
type MessageReceive struct {
	Sender  EventSender  `json:"sender"`
	Message EventMessage `json:"message"`
}

type EventReader struct {
	ReaderID  *UserID `json:"reader_id,omitempty"`
	ReadTime  string  `json:"read_time,omitempty"`
	TenantKey string  `json:"tenant_key,omitempty"`
}

// MessageRead is the payload of im.message.message_read_v1
type MessageRead struct {
	Reader        *EventReader `json:"reader,omitempty"`
	MessageIDList []string     `json:"message_id_list,omitempty"`
}

// BotAdded is the payload of im.chat.member.bot.added_v1
type BotAdded struct {
	ChatID            string            `json:"chat_id,omitempty"`
	OperatorID        *UserID           `json:"operator_id,omitempty"`
	External          bool              `json:"external,omitempty"`
	OperatorTenantKey string            `json:"operator_tenant_key,omitempty"`
	Name              string            `json:"name,omitempty"`
	I18nNames         map[string]string `json:"i18n_names,omitempty"`
}

type CardOperator struct {
	TenantKey string `json:"tenant_key,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	OpenID    string `json:"open_id,omitempty"`
	UnionID   string `json:"union_id,omitempty"`
}

type CardActionDetail struct {
	Value    map[string]any `json:"value,omitempty"`
	Tag      string         `json:"tag,omitempty"`
	Option   string         `json:"option,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
}

type CardContext struct {
	URL           string `json:"url,omitempty"`
	PreviewToken  string `json:"preview_token,omitempty"`
	OpenMessageID string `json:"open_message_id,omitempty"`
	OpenChatID    string `json:"open_chat_id,omitempty"`
}

// CardAction is the payload of card.action.trigger
type CardAction struct {
	Operator     *CardOperator     `json:"operator,omitempty"`
	Token        string            `json:"token,omitempty"`
	Action       *CardActionDetail `json:"action,omitempty"`
	Host         string            `json:"host,omitempty"`
	DeliveryType string            `json:"delivery_type,omitempty"`
	Context      *CardContext      `json:"context,omitempty"`
}

type (
	MessageReceiveEvent = Event[MessageReceive]
	MessageReadEvent    = Event[MessageRead]
	BotAddedEvent       = Event[BotAdded]
	CardActionEvent     = Event[CardAction]
)

// Shape rules run against the decoded JSON (map[string]any) before it is
// bound to the typed structs above. Unknown keys are always allowed.

var (
	isString = validation.By(func(value any) error {
		if _, ok := value.(string); !ok {
			return errors.New("must be a string")
		}
		return nil
	})
	isBool = validation.By(func(value any) error {
		if _, ok := value.(bool); !ok {
			return errors.New("must be a boolean")
		}
		return nil
	})
	isObject = validation.By(func(value any) error {
		if _, ok := value.(map[string]any); !ok {
			return errors.New("must be an object")
		}
		return nil
	})
	isArray = validation.By(func(value any) error {
		if _, ok := value.([]any); !ok {
			return errors.New("must be an array")
		}
		return nil
	})
)

func equals(want string) validation.Rule {
	return validation.By(func(value any) error {
		if s, ok := value.(string); !ok || s != want {
			return errors.New("must be " + want)
		}
		return nil
	})
}

func object(keys ...*validation.KeyRules) validation.Rule {
	return validation.Map(keys...).AllowExtraKeys()
}

func requiredStrings(keys ...string) []*validation.KeyRules {
	rules := make([]*validation.KeyRules, 0, len(keys))
	for _, key := range keys {
		rules = append(rules, validation.Key(key, isString))
	}
	return rules
}

func optionalStrings(keys ...string) []*validation.KeyRules {
	rules := make([]*validation.KeyRules, 0, len(keys))
	for _, key := range keys {
		rules = append(rules, validation.Key(key, isString).Optional())
	}
	return rules
}

func with(rules []*validation.KeyRules, extra ...*validation.KeyRules) []*validation.KeyRules {
	return append(rules, extra...)
}

var (
	userIDRule = object(optionalStrings("union_id", "user_id", "open_id")...)

	challengeRule = object(
		validation.Key("challenge", isString),
		validation.Key("token", isString),
		validation.Key("type", equals(EventTypeURLVerification)),
	)

	headerRule = object(requiredStrings("event_id", "event_type", "create_time", "token", "app_id", "tenant_key")...)

	envelopeRule = object(
		validation.Key("schema", isString).Optional(),
		validation.Key("header", isObject, headerRule),
		validation.Key("event", isObject),
	)

	messageReceiveRule = object(
		validation.Key("sender", isObject, object(with(
			optionalStrings("sender_type", "tenant_key"),
			validation.Key("sender_id", isObject, userIDRule).Optional(),
		)...)),
		validation.Key("message", isObject, object(with(
			optionalStrings("message_id", "root_id", "parent_id", "create_time", "update_time",
				"chat_id", "chat_type", "message_type", "content"),
			validation.Key("mentions", isArray, validation.Each(isObject, object(with(
				optionalStrings("name", "tenant_key"),
				validation.Key("key", isString),
				validation.Key("id", isObject, userIDRule).Optional(),
			)...))).Optional(),
		)...)),
	)

	messageReadRule = object(
		validation.Key("reader", isObject, object(with(
			optionalStrings("read_time", "tenant_key"),
			validation.Key("reader_id", isObject, userIDRule).Optional(),
		)...)).Optional(),
		validation.Key("message_id_list", isArray, validation.Each(isString)).Optional(),
	)

	botAddedRule = object(with(
		optionalStrings("chat_id", "operator_tenant_key", "name"),
		validation.Key("operator_id", isObject, userIDRule).Optional(),
		validation.Key("external", isBool).Optional(),
		validation.Key("i18n_names", isObject, validation.Each(isString)).Optional(),
	)...)

	cardActionRule = object(with(
		optionalStrings("token", "host", "delivery_type"),
		validation.Key("operator", isObject, object(optionalStrings("tenant_key", "user_id", "open_id", "union_id")...)).Optional(),
		validation.Key("action", isObject, object(with(
			optionalStrings("tag", "option", "timezone"),
			validation.Key("value", isObject).Optional(),
		)...)).Optional(),
		validation.Key("context", isObject, object(optionalStrings("url", "preview_token", "open_message_id", "open_chat_id")...)).Optional(),
	)...)
)
