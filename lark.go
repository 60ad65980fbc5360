// Package lark is a client for the Lark / Feishu open platform.
//
//	client := lark.NewClient(appID, appSecret, lark.WithDomain(lark.DomainLark))
//	msg, err := client.Messages.SendText(ctx, im.ReceiveIDChatID, chatID, "hello")
package lark

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/myzkey/lark-kit/bitable"
	"github.com/myzkey/lark-kit/core"
	"github.com/myzkey/lark-kit/im"
	"github.com/myzkey/lark-kit/tokenstore"
)

// Open platform domains
const (
	DomainFeishu = "https://open.feishu.cn"
	DomainLark   = "https://open.larksuite.com"
)

type options struct {
	domain            string
	store             core.TokenStore
	doer              core.HTTPDoer
	timeout           time.Duration
	logger            zerolog.Logger
	headers           map[string]string
	onRequest         core.RequestHook
	onResponse        core.ResponseHook
	disableTokenCache bool
}

// Option configures a Client
type Option func(*options)

// WithDomain selects the platform, DomainFeishu by default. Any base URL is
// accepted, e.g. a test server.
func WithDomain(domain string) Option {
	return func(o *options) {
		o.domain = domain
	}
}

// WithTokenStore shares tenant tokens through store instead of process memory
func WithTokenStore(store core.TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithHTTPClient sets the transport, e.g. an *http.Client
func WithHTTPClient(doer core.HTTPDoer) Option {
	return func(o *options) {
		o.doer = doer
	}
}

// WithTimeout bounds every API call
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers[key] = value
	}
}

func WithRequestHook(hook core.RequestHook) Option {
	return func(o *options) {
		o.onRequest = hook
	}
}

func WithResponseHook(hook core.ResponseHook) Option {
	return func(o *options) {
		o.onResponse = hook
	}
}

// WithDisableTokenCache performs a credential exchange on every call
func WithDisableTokenCache() Option {
	return func(o *options) {
		o.disableTokenCache = true
	}
}

// Client bundles the transport, token manager and resource clients for one app
type Client struct {
	HTTP   *core.HTTPClient
	Tokens *core.TokenManager
	Caller *core.Caller

	Messages *im.MessageClient
	Records  *bitable.RecordClient
}

// NewClient creates a client for a self-built app
func NewClient(appID, appSecret string, opts ...Option) *Client {
	o := &options{
		domain:  DomainFeishu,
		logger:  zerolog.Nop(),
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = tokenstore.NewMemory()
	}

	httpOpts := []core.HTTPOption{
		core.WithDoer(o.doer),
		core.WithRequestTimeout(o.timeout),
		core.WithRequestHook(o.onRequest),
		core.WithResponseHook(o.onResponse),
		core.WithHTTPLogger(o.logger),
	}
	for key, value := range o.headers {
		httpOpts = append(httpOpts, core.WithDefaultHeader(key, value))
	}
	httpClient := core.NewHTTPClient(o.domain, httpOpts...)

	tokenOpts := []core.TokenOption{
		core.WithTokenStore(o.store),
		core.WithTokenLogger(o.logger),
	}
	if o.disableTokenCache {
		tokenOpts = append(tokenOpts, core.WithoutTokenCache())
	}
	tokens := core.NewTokenManager(core.Credentials{AppID: appID, AppSecret: appSecret}, httpClient, tokenOpts...)

	caller := core.NewCaller(httpClient, tokens)
	return &Client{
		HTTP:     httpClient,
		Tokens:   tokens,
		Caller:   caller,
		Messages: im.NewMessageClient(caller),
		Records:  bitable.NewRecordClient(caller),
	}
}

// TenantAccessToken returns the current tenant access token
func (c *Client) TenantAccessToken(ctx context.Context) (string, error) {
	return c.Tokens.TenantAccessToken(ctx)
}

// Request performs an authenticated call to any endpoint and returns its data
// payload. It covers endpoints without a dedicated client.
func (c *Client) Request(ctx context.Context, req core.Request) (map[string]any, error) {
	data, err := core.Invoke[map[string]any](ctx, c.Caller, "Request failed", req)
	if err != nil {
		return nil, err
	}
	return *data, nil
}
