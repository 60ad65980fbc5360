package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultUserAgent identifies this client to the platform
	DefaultUserAgent = "lark-kit/1.0.0"

	defaultTimeout                 = 30 * time.Second
	defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB
)

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Param is a single query parameter. A nil Value (or nil pointer) is
// omitted from the query string.
type Param struct {
	Key   string
	Value any
}

// Params keeps query parameters in insertion order
type Params []Param

// Add returns p with key=value appended
func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

// Request describes one API call. URL may contain :name placeholders which
// are filled from Path.
type Request struct {
	Method  string
	URL     string
	Path    map[string]string
	Query   Params
	Body    any
	Headers map[string]string
}

// RawBody is sent as-is instead of being JSON encoded. Used for multipart
// and binary uploads.
type RawBody struct {
	ContentType string
	Reader      io.Reader
}

// RawResponse receives an undecoded 2xx response, e.g. a file download.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// RequestHook runs before the request is sent. Returning an error aborts the call.
type RequestHook func(ctx context.Context, req Request) error

// ResponseHook runs after the response body is read. data is the body parsed
// as JSON, or nil. Returning an error aborts the call.
type ResponseHook func(ctx context.Context, req Request, resp *http.Response, data any) error

// HTTPClient executes Request descriptors against the platform. It does not
// attach credentials; see Caller.
type HTTPClient struct {
	baseURL      string
	client       HTTPDoer
	headers      map[string]string
	timeout      time.Duration
	maxBodyBytes int64
	onRequest    RequestHook
	onResponse   ResponseHook
	logger       zerolog.Logger
}

// HTTPOption configures an HTTPClient
type HTTPOption func(*HTTPClient)

// WithDoer sets the underlying HTTP client
func WithDoer(doer HTTPDoer) HTTPOption {
	return func(c *HTTPClient) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithDefaultHeader adds a header sent on every request
func WithDefaultHeader(key, value string) HTTPOption {
	return func(c *HTTPClient) {
		c.headers[key] = value
	}
}

// WithRequestTimeout bounds each call, including reading the body
func WithRequestTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxResponseBytes caps how much of a response body is read
func WithMaxResponseBytes(limit int64) HTTPOption {
	return func(c *HTTPClient) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// WithRequestHook registers the pre-request hook
func WithRequestHook(hook RequestHook) HTTPOption {
	return func(c *HTTPClient) {
		c.onRequest = hook
	}
}

// WithResponseHook registers the post-response hook
func WithResponseHook(hook ResponseHook) HTTPOption {
	return func(c *HTTPClient) {
		c.onResponse = hook
	}
}

// WithHTTPLogger sets the logger used for request tracing
func WithHTTPLogger(logger zerolog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client for baseURL (e.g. https://open.feishu.cn)
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		headers:      map[string]string{},
		timeout:      defaultTimeout,
		maxBodyBytes: defaultResponseBodyLimit,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the base the client resolves relative URLs against
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Do executes req and decodes a 2xx JSON body into out. out may be nil to
// discard the body, or a *RawResponse to skip decoding. The envelope code is
// not inspected here.
func (c *HTTPClient) Do(ctx context.Context, req Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolveURL(req)
	if err != nil {
		return err
	}

	if c.onRequest != nil {
		if err := c.onRequest(ctx, req); err != nil {
			return err
		}
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return err
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, body)
	if err != nil {
		return &ValidationError{Message: "failed to create request", Errors: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", DefaultUserAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	startedAt := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBodyBytes {
		return fmt.Errorf("response body exceeds limit of %d bytes", c.maxBodyBytes)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startedAt)).
		Msg("Lark API request finished")

	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	if raw, ok := out.(*RawResponse); ok && success {
		if c.onResponse != nil {
			if err := c.onResponse(ctx, req, resp, nil); err != nil {
				return err
			}
		}
		raw.Status = resp.StatusCode
		raw.Header = resp.Header.Clone()
		raw.Body = data
		return nil
	}

	var parsed any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			parsed = nil
		}
	}

	if c.onResponse != nil {
		if err := c.onResponse(ctx, req, resp, parsed); err != nil {
			return err
		}
	}

	if !success {
		return &APIError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Request failed: %d %s", resp.StatusCode, reasonPhrase(resp)),
			Data:    parsed,
		}
	}

	if out == nil {
		return nil
	}
	if len(data) == 0 {
		return &ValidationError{Message: "empty response body"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ValidationError{Message: "failed to decode response body", Errors: err}
	}
	return nil
}

func (c *HTTPClient) resolveURL(req Request) (string, error) {
	filled, err := FillPath(req.URL, req.Path)
	if err != nil {
		return "", err
	}

	if query := BuildQuery(req.Query); query != "" {
		if strings.Contains(filled, "?") {
			filled += "&" + query
		} else {
			filled += "?" + query
		}
	}

	if strings.HasPrefix(filled, "http://") || strings.HasPrefix(filled, "https://") {
		return filled, nil
	}
	return c.baseURL + filled, nil
}

var placeholderPattern = regexp.MustCompile(`:(\w+)`)

// FillPath replaces every :name placeholder with the escaped value from path.
// Placeholders without a non-empty value are a *ValidationError. For absolute
// URLs only the part after the host is templated.
func FillPath(rawURL string, path map[string]string) (string, error) {
	origin, rest := splitOrigin(rawURL)

	var missing []string
	filled := placeholderPattern.ReplaceAllStringFunc(rest, func(match string) string {
		key := match[1:]
		value, ok := path[key]
		if !ok || value == "" {
			missing = append(missing, key)
			return match
		}
		return url.PathEscape(value)
	})

	if len(missing) > 0 {
		return "", &ValidationError{
			Message: fmt.Sprintf("missing path parameters for %s: %s", rawURL, strings.Join(missing, ", ")),
		}
	}
	return origin + filled, nil
}

func splitOrigin(rawURL string) (string, string) {
	schemeEnd := strings.Index(rawURL, "://")
	if schemeEnd < 0 {
		return "", rawURL
	}
	hostStart := schemeEnd + len("://")
	slash := strings.IndexByte(rawURL[hostStart:], '/')
	if slash < 0 {
		return rawURL, ""
	}
	return rawURL[:hostStart+slash], rawURL[hostStart+slash:]
}

// BuildQuery encodes params in order, skipping nil values
func BuildQuery(params Params) string {
	parts := make([]string, 0, len(params))
	for _, param := range params {
		value, ok := stringifyParam(param.Value)
		if !ok {
			continue
		}
		parts = append(parts, url.QueryEscape(param.Key)+"="+url.QueryEscape(value))
	}
	return strings.Join(parts, "&")
}

func stringifyParam(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		return v.String(), true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "", false
		}
		return stringifyParam(rv.Elem().Interface())
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	}
	return fmt.Sprint(value), true
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case RawBody:
		return b.Reader, b.ContentType, nil
	case *RawBody:
		if b == nil {
			return nil, "", nil
		}
		return b.Reader, b.ContentType, nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, "", &ValidationError{Message: "failed to encode request body", Errors: err}
	}
	return bytes.NewReader(encoded), "", nil
}

func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
