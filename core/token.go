package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/myzkey/lark-kit/tokenstore"
)

const (
	// TenantAccessTokenPath is the internal-app credential exchange endpoint
	TenantAccessTokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

	tokenCacheKeyPrefix = "lark_tenant_access_token:"
	// Tokens are evicted this long before the server-side expiry.
	tokenExpiryBuffer = 180 * time.Second
)

// Credentials identify a self-built app
type Credentials struct {
	AppID     string
	AppSecret string
}

type tenantTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tenantTokenResponse struct {
	Code              *int   `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int64  `json:"expire"`
}

func (r *tenantTokenResponse) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TenantAccessToken, validation.Required),
		validation.Field(&r.Expire, validation.Min(int64(0))),
	)
}

// TokenManager exchanges app credentials for a tenant access token and
// caches it in a TokenStore until shortly before it expires.
type TokenManager struct {
	creds        Credentials
	http         *HTTPClient
	store        TokenStore
	disableCache bool
	logger       zerolog.Logger

	refreshes singleflight.Group
}

// TokenOption configures a TokenManager
type TokenOption func(*TokenManager)

// WithTokenStore replaces the default in-memory store
func WithTokenStore(store TokenStore) TokenOption {
	return func(m *TokenManager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithoutTokenCache makes every call perform a fresh exchange
func WithoutTokenCache() TokenOption {
	return func(m *TokenManager) {
		m.disableCache = true
	}
}

// WithTokenLogger sets the logger for refresh events
func WithTokenLogger(logger zerolog.Logger) TokenOption {
	return func(m *TokenManager) {
		m.logger = logger
	}
}

// NewTokenManager creates a manager that exchanges creds through client
func NewTokenManager(creds Credentials, client *HTTPClient, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		creds:  creds,
		http:   client,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = tokenstore.NewMemory()
	}
	return m
}

// CacheKey is the store key for this app's tenant token
func (m *TokenManager) CacheKey() string {
	return tokenCacheKeyPrefix + m.creds.AppID
}

// TenantAccessToken returns a cached token or performs the credential
// exchange. Concurrent misses share one exchange.
func (m *TokenManager) TenantAccessToken(ctx context.Context) (string, error) {
	key := m.CacheKey()

	if !m.disableCache {
		token, ok, err := m.store.Get(ctx, key)
		if err != nil {
			m.logger.Warn().Err(err).Str("app_id", m.creds.AppID).Msg("Failed to read cached tenant access token")
		} else if ok && token != "" {
			// an empty value is the invalidation marker and counts as a miss
			return token, nil
		}
	}

	// The exchange outlives a cancelled waiter so the others still get a token.
	results := m.refreshes.DoChan(key, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call re-exchanges
func (m *TokenManager) Invalidate(ctx context.Context) error {
	if m.disableCache {
		return nil
	}
	if err := m.store.Set(ctx, m.CacheKey(), "", 0); err != nil {
		return fmt.Errorf("failed to invalidate tenant access token: %w", err)
	}
	return nil
}

func (m *TokenManager) refresh(ctx context.Context, key string) (string, error) {
	var resp tenantTokenResponse
	err := m.http.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    TenantAccessTokenPath,
		Body: tenantTokenRequest{
			AppID:     m.creds.AppID,
			AppSecret: m.creds.AppSecret,
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	if resp.Code == nil {
		return "", &ValidationError{Message: "tenant access token response is missing code"}
	}
	if *resp.Code != 0 {
		return "", &AuthError{
			Code:    *resp.Code,
			Message: fmt.Sprintf("Failed to get tenant access token: %s", resp.Msg),
		}
	}
	if err := resp.Validate(); err != nil {
		return "", &ValidationError{Message: "invalid tenant access token response", Errors: err}
	}

	ttl := tokenTTL(resp.Expire)

	m.logger.Debug().
		Str("app_id", m.creds.AppID).
		Int64("expire", resp.Expire).
		Dur("ttl", ttl).
		Msg("Refreshed tenant access token")

	if m.disableCache || ttl <= 0 {
		return resp.TenantAccessToken, nil
	}

	if err := m.store.Set(ctx, key, resp.TenantAccessToken, ttl); err != nil {
		m.logger.Warn().Err(err).Str("app_id", m.creds.AppID).Msg("Failed to cache tenant access token")
	}
	return resp.TenantAccessToken, nil
}

// tokenTTL converts the server's expire (seconds) into a cache lifetime,
// clamped at zero.
func tokenTTL(expireSeconds int64) time.Duration {
	ttl := time.Duration(expireSeconds)*time.Second - tokenExpiryBuffer
	if ttl < 0 {
		return 0
	}
	return ttl
}
