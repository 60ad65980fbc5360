// Package im wraps the instant messaging message endpoints.
package im

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/myzkey/lark-kit/core"
)

// ReceiveIDType selects how ReceiveID is interpreted
type ReceiveIDType string

const (
	ReceiveIDOpenID  ReceiveIDType = "open_id"
	ReceiveIDUserID  ReceiveIDType = "user_id"
	ReceiveIDUnionID ReceiveIDType = "union_id"
	ReceiveIDEmail   ReceiveIDType = "email"
	ReceiveIDChatID  ReceiveIDType = "chat_id"
)

const (
	messagesURL     = "/open-apis/im/v1/messages"
	messageURL      = "/open-apis/im/v1/messages/:message_id"
	messageReplyURL = "/open-apis/im/v1/messages/:message_id/reply"
)

type Sender struct {
	ID         string `json:"id"`
	IDType     string `json:"id_type"`
	SenderType string `json:"sender_type"`
	TenantKey  string `json:"tenant_key,omitempty"`
}

type Mention struct {
	Key       string `json:"key"`
	ID        string `json:"id"`
	IDType    string `json:"id_type"`
	Name      string `json:"name"`
	TenantKey string `json:"tenant_key,omitempty"`
}

type MessageBody struct {
	Content string `json:"content"`
}

// Message is a sent or received message
type Message struct {
	MessageID      string       `json:"message_id,omitempty"`
	RootID         string       `json:"root_id,omitempty"`
	ParentID       string       `json:"parent_id,omitempty"`
	ThreadID       string       `json:"thread_id,omitempty"`
	MsgType        string       `json:"msg_type,omitempty"`
	CreateTime     string       `json:"create_time,omitempty"`
	UpdateTime     string       `json:"update_time,omitempty"`
	Deleted        bool         `json:"deleted,omitempty"`
	Updated        bool         `json:"updated,omitempty"`
	ChatID         string       `json:"chat_id,omitempty"`
	Sender         *Sender      `json:"sender,omitempty"`
	Body           *MessageBody `json:"body,omitempty"`
	Mentions       []Mention    `json:"mentions,omitempty"`
	UpperMessageID string       `json:"upper_message_id,omitempty"`
}

// CreateMessageRequest is the body of a send call. Content is the JSON
// encoded content for MsgType.
type CreateMessageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
	// UUID deduplicates sends within one hour.
	UUID string `json:"uuid,omitempty"`
}

type ReplyMessageRequest struct {
	MsgType       string `json:"msg_type"`
	Content       string `json:"content"`
	ReplyInThread bool   `json:"reply_in_thread,omitempty"`
	UUID          string `json:"uuid,omitempty"`
}

// ListMessagesRequest filters the messages of one chat
type ListMessagesRequest struct {
	ContainerID string
	StartTime   string
	EndTime     string
	// SortType is ByCreateTimeAsc or ByCreateTimeDesc.
	SortType string
	PageSize int
}

type MessageClient struct {
	caller *core.Caller
}

func NewMessageClient(caller *core.Caller) *MessageClient {
	return &MessageClient{caller: caller}
}

// Create sends a message
func (c *MessageClient) Create(ctx context.Context, receiveIDType ReceiveIDType, req CreateMessageRequest) (*Message, error) {
	return core.Invoke[Message](ctx, c.caller, "Failed to send message", core.Request{
		Method: http.MethodPost,
		URL:    messagesURL,
		Query:  core.Params{{Key: "receive_id_type", Value: string(receiveIDType)}},
		Body:   req,
	})
}

// Reply replies to messageID
func (c *MessageClient) Reply(ctx context.Context, messageID string, req ReplyMessageRequest) (*Message, error) {
	return core.Invoke[Message](ctx, c.caller, "Failed to reply message", core.Request{
		Method: http.MethodPost,
		URL:    messageReplyURL,
		Path:   map[string]string{"message_id": messageID},
		Body:   req,
	})
}

// Get fetches a message by id
func (c *MessageClient) Get(ctx context.Context, messageID string) (*Message, error) {
	data, err := core.Invoke[struct {
		Items []Message `json:"items"`
	}](ctx, c.caller, "Failed to get message", core.Request{
		Method: http.MethodGet,
		URL:    messageURL,
		Path:   map[string]string{"message_id": messageID},
	})
	if err != nil {
		return nil, err
	}
	if len(data.Items) == 0 {
		return &Message{}, nil
	}
	return &data.Items[0], nil
}

// List returns one page of messages in a chat
func (c *MessageClient) List(ctx context.Context, req ListMessagesRequest, pageToken string) (core.PageResult[Message], error) {
	query := core.Params{
		{Key: "container_id_type", Value: "chat"},
		{Key: "container_id", Value: req.ContainerID},
	}
	if req.StartTime != "" {
		query = query.Add("start_time", req.StartTime)
	}
	if req.EndTime != "" {
		query = query.Add("end_time", req.EndTime)
	}
	if req.SortType != "" {
		query = query.Add("sort_type", req.SortType)
	}
	if pageToken != "" {
		query = query.Add("page_token", pageToken)
	}
	if req.PageSize > 0 {
		query = query.Add("page_size", req.PageSize)
	}

	page, err := core.Invoke[core.PageResult[Message]](ctx, c.caller, "Failed to list messages", core.Request{
		Method: http.MethodGet,
		URL:    messagesURL,
		Query:  query,
	})
	if err != nil {
		return core.PageResult[Message]{}, err
	}
	return *page, nil
}

// ListAll iterates over every message in a chat
func (c *MessageClient) ListAll(ctx context.Context, req ListMessagesRequest) iter.Seq2[Message, error] {
	return core.Paginate(ctx, func(ctx context.Context, pageToken string) (core.PageResult[Message], error) {
		return c.List(ctx, req, pageToken)
	})
}

// SendText sends a plain text message
func (c *MessageClient) SendText(ctx context.Context, receiveIDType ReceiveIDType, receiveID, text string) (*Message, error) {
	content, err := TextContent(text)
	if err != nil {
		return nil, err
	}
	return c.Create(ctx, receiveIDType, CreateMessageRequest{
		ReceiveID: receiveID,
		MsgType:   "text",
		Content:   content,
	})
}

// ReplyText replies with a plain text message. uuid may be empty.
func (c *MessageClient) ReplyText(ctx context.Context, messageID, text, uuid string) (*Message, error) {
	content, err := TextContent(text)
	if err != nil {
		return nil, err
	}
	return c.Reply(ctx, messageID, ReplyMessageRequest{
		MsgType: "text",
		Content: content,
		UUID:    uuid,
	})
}

// TextContent encodes text as the content of a text message
func TextContent(text string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseTextContent extracts the text of a received text message
func ParseTextContent(content string) (string, error) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return "", &core.ValidationError{Message: "invalid text message content", Errors: err}
	}
	return body.Text, nil
}
