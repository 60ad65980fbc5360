package core

import (
	"context"
	"fmt"
	"net/http"
)

// Envelope is implemented by response types that carry the platform's
// in-band status.
type Envelope interface {
	Envelope() (code *int, msg string)
}

// Response is the standard {code, msg, data} envelope. code == 0 is the
// only success signal.
type Response[T any] struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
	Data *T     `json:"data,omitempty"`
}

// Envelope implements Envelope
func (r *Response[T]) Envelope() (*int, string) {
	return r.Code, r.Msg
}

// Caller performs authenticated calls for resource clients
type Caller struct {
	HTTP   *HTTPClient
	Tokens *TokenManager
}

// NewCaller pairs a transport with a token manager
func NewCaller(client *HTTPClient, tokens *TokenManager) *Caller {
	return &Caller{HTTP: client, Tokens: tokens}
}

// Call attaches the tenant token, executes req and checks the envelope.
// op prefixes the message of envelope failures.
func (c *Caller) Call(ctx context.Context, op string, req Request, out Envelope) error {
	if err := c.do(ctx, req, out); err != nil {
		return err
	}

	code, msg := out.Envelope()
	if code == nil {
		return &ValidationError{Message: fmt.Sprintf("%s: response is missing code", op)}
	}
	if *code != 0 {
		apiErr := &APIError{
			Status:  http.StatusOK,
			Code:    *code,
			Message: fmt.Sprintf("%s: %s", op, msg),
			Data:    out,
		}
		c.dropTokenOnAuthFailure(ctx, apiErr)
		return apiErr
	}
	return nil
}

// CallRaw attaches the tenant token and returns the undecoded body
func (c *Caller) CallRaw(ctx context.Context, req Request) (*RawResponse, error) {
	raw := &RawResponse{}
	if err := c.do(ctx, req, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Caller) do(ctx context.Context, req Request, out any) error {
	token, err := c.Tokens.TenantAccessToken(ctx)
	if err != nil {
		return err
	}

	headers := make(map[string]string, len(req.Headers)+1)
	for key, value := range req.Headers {
		headers[key] = value
	}
	headers["Authorization"] = "Bearer " + token
	req.Headers = headers

	if err := c.HTTP.Do(ctx, req, out); err != nil {
		if apiErr, ok := AsAPIError(err); ok {
			c.dropTokenOnAuthFailure(ctx, apiErr)
		}
		return err
	}
	return nil
}

// A rejected token is evicted so the next call re-exchanges. The failed call
// itself is not retried.
func (c *Caller) dropTokenOnAuthFailure(ctx context.Context, apiErr *APIError) {
	if !apiErr.IsAuthFailure() {
		return
	}
	if err := c.Tokens.Invalidate(ctx); err != nil {
		c.Tokens.logger.Warn().Err(err).Msg("Failed to drop rejected tenant access token")
	}
}

// Invoke calls req and returns the envelope's data payload
func Invoke[T any](ctx context.Context, caller *Caller, op string, req Request) (*T, error) {
	var resp Response[T]
	if err := caller.Call(ctx, op, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return new(T), nil
	}
	return resp.Data, nil
}
