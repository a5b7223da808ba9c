package usersync

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultTimeout is the per request timeout
	DefaultTimeout = 10 * time.Second
	// DefaultRemotePrefix is where receivers mount the sync routes
	DefaultRemotePrefix = "/api"
)

// DefaultTestDomainSuffixes are hosts that may skip TLS verification
var DefaultTestDomainSuffixes = []string{".test"}

// maxResponseBody caps how much of a remote response is kept for audit
const maxResponseBody = 64 << 10

// Response is a completed HTTP exchange. Non 2xx responses are not errors.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the body as a string
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(r.Body, v)
}

// DeliveryClient builds authenticated calls to target apps. It never retries.
type DeliveryClient struct {
	registry     *AppRegistry
	timeout      time.Duration
	remotePrefix string
	skipTLS      bool
	testSuffixes []string
	secure       *http.Client
	insecure     *http.Client
	logger       Logger
}

// DeliveryOption configures a DeliveryClient
type DeliveryOption func(*DeliveryClient)

// WithTimeout sets the per request timeout
func WithTimeout(timeout time.Duration) DeliveryOption {
	return func(d *DeliveryClient) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRemotePrefix sets the path prefix the receivers mount their routes on
func WithRemotePrefix(prefix string) DeliveryOption {
	return func(d *DeliveryClient) {
		d.remotePrefix = normalizePrefix(prefix)
	}
}

// WithSkipTLSForTestDomains allows unverified TLS for hosts ending in one of
// the suffixes. Production looking hosts are always verified.
func WithSkipTLSForTestDomains(skip bool, suffixes ...string) DeliveryOption {
	return func(d *DeliveryClient) {
		d.skipTLS = skip
		if len(suffixes) > 0 {
			d.testSuffixes = suffixes
		}
	}
}

// WithHTTPClient replaces the verified client, mostly for tests
func WithHTTPClient(client *http.Client) DeliveryOption {
	return func(d *DeliveryClient) {
		if client != nil {
			d.secure = client
		}
	}
}

// WithDeliveryLogger sets the logger
func WithDeliveryLogger(logger Logger) DeliveryOption {
	return func(d *DeliveryClient) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDeliveryClient returns a client resolving keys through registry
func NewDeliveryClient(registry *AppRegistry, opts ...DeliveryOption) *DeliveryClient {
	d := &DeliveryClient{
		registry:     registry,
		timeout:      DefaultTimeout,
		remotePrefix: DefaultRemotePrefix,
		testSuffixes: DefaultTestDomainSuffixes,
		logger:       ResolveLogger("delivery", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	if d.secure == nil {
		d.secure = &http.Client{Timeout: d.timeout}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	d.insecure = &http.Client{Timeout: d.timeout, Transport: transport}

	return d
}

// Client returns a call builder bound to app
func (d *DeliveryClient) Client(app TargetApp) *Call {
	key := ""
	if d.registry != nil {
		key = d.registry.APIKeyFor(app)
	}

	client := d.secure
	if d.allowInsecure(app.URL) {
		d.logger.Debug("tls verification disabled for test domain", "app", app.Name, "url", app.URL)
		client = d.insecure
	}

	return &Call{
		app:    app,
		apiKey: key,
		prefix: d.remotePrefix,
		client: client,
	}
}

func (d *DeliveryClient) allowInsecure(rawURL string) bool {
	if !d.skipTLS {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range d.testSuffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix != "" && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// Call performs requests against one app
type Call struct {
	app    TargetApp
	apiKey string
	prefix string
	client *http.Client
}

// App returns the target of the call
func (c *Call) App() TargetApp {
	return c.app
}

// PostJSON sends body as JSON to path
func (c *Call) PostJSON(ctx context.Context, path string, body any) (*Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode sync payload")
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(raw))
}

// GetJSON issues a GET with the given query
func (c *Call) GetJSON(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Call) endpoint(path string, query url.Values) string {
	endpoint := strings.TrimRight(c.app.URL, "/") + c.prefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Call) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*Response, error) {
	endpoint := c.endpoint(path, query)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sync request").
			WithMetadata(map[string]any{"app": c.app.Name, "url": endpoint})
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, goerrors.WrapRetryable(err, goerrors.CategoryExternal, "sync transport failure").
			WithTextCode(TextCodeTransport).
			WithMetadata(map[string]any{
				"app":    c.app.Name,
				"method": method,
				"url":    endpoint,
			})
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, goerrors.WrapRetryable(err, goerrors.CategoryExternal, "failed to read sync response").
			WithTextCode(TextCodeTransport).
			WithMetadata(map[string]any{"app": c.app.Name, "url": endpoint})
	}

	return &Response{StatusCode: res.StatusCode, Body: data}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
