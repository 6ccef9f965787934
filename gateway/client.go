package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Client executes JSON requests against the versioned API.
//
// Every call is bounded by the configured timeout. GET requests that fail
// with a network error or a 5xx status are retried up to the configured
// number of times, waiting RetryDelay*attempt between tries. Other methods
// are never retried. Successful bodies are unwrapped from the
// {success, data, message} envelope; failures are returned as *APIError.
type Client struct {
	baseURL       string
	version       string
	timeout       time.Duration
	retryAttempts int
	retryDelay    time.Duration
	debug         bool

	httpClient *http.Client
	retrying   *retryablehttp.Client
	single     *retryablehttp.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	nowFunc    func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Transport becomes the
// base transport of clients derived with WithTokenSource.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func New(cfg config.APIConfig, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[gateway.New] API config is required")
	}
	if cfg.GetBaseURL() == "" {
		return nil, errors.New("[gateway.New] API base URL is required")
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(cfg.GetBaseURL(), "/"),
		version:       cfg.GetVersion(),
		timeout:       cfg.GetTimeout(),
		retryAttempts: max(cfg.GetRetryAttempts(), 0),
		retryDelay:    cfg.GetRetryDelay(),
		debug:         cfg.GetDebug(),
		httpClient:    &http.Client{},
		logger:        log.Logger,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	c.buildRetryClients()
	return c, nil
}

// WithTokenSource returns a copy of the client that sends a bearer token from
// ts on every request. Failing to obtain a token fails the call without
// retrying it.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	clone := *c
	clone.httpClient = &http.Client{
		Transport: &oauth2.Transport{
			Source: credentialSource{src: ts},
			Base:   c.httpClient.Transport,
		},
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}
	clone.buildRetryClients()
	return &clone
}

// HTTPClient exposes the underlying client, bearer transport included.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BuildURL resolves path against base/version. Absolute URLs pass through.
func (c *Client) BuildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	clean := strings.TrimPrefix(path, "/")
	if c.version == "" {
		return c.baseURL + "/" + clean
	}
	return c.baseURL + "/" + c.version + "/" + clean
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete sends a DELETE request. out may be nil when no data is expected.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// GetPaginated decodes the whole list response, metadata included, into out.
func (c *Client) GetPaginated(ctx context.Context, path string, params PaginationParams, out any) error {
	return c.execute(ctx, http.MethodGet, path, params.Values(), nil, out, false)
}

// Search is GetPaginated with search and filter parameters.
func (c *Client) Search(ctx context.Context, path string, params SearchParams, out any) error {
	return c.execute(ctx, http.MethodGet, path, params.Values(), nil, out, false)
}

// Do sends a request and decodes the envelope data into out when out is not nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.execute(ctx, method, path, query, body, out, true)
}

func (c *Client) execute(ctx context.Context, method, path string, query url.Values, body, out any, unwrap bool) error {
	fullURL := c.BuildURL(path)
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return c.fail(method, fullURL, newAPIError(errors.Wrap(err, "[Client.Do] json.Marshal"), 0, nil, fullURL, c.nowFunc()))
		}
	}

	if c.debug {
		c.logger.Debug().Str("url", fullURL).Int("bodyBytes", len(payload)).Msgf("HTTP %s Request", method)
	}

	respBody, status, err := c.send(ctx, method, fullURL, payload)
	if err != nil {
		return c.fail(method, fullURL, newAPIError(err, status, respBody, fullURL, c.nowFunc()))
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if !unwrap {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return c.fail(method, fullURL, newAPIError(errors.Wrap(err, "[Client.Do] json.Unmarshal"), 0, nil, fullURL, c.nowFunc()))
		}
		return nil
	}

	var env authmodel.Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return c.fail(method, fullURL, newAPIError(errors.Wrap(err, "[Client.Do] json.Unmarshal"), 0, nil, fullURL, c.nowFunc()))
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = defaultEnvelopeMessage
		}
		apiErr := newAPIError(errors.New(message), 0, nil, fullURL, c.nowFunc())
		apiErr.Rejected = true
		return c.fail(method, fullURL, apiErr)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return c.fail(method, fullURL, newAPIError(errors.Wrap(err, "[Client.Do] json.Unmarshal data"), 0, nil, fullURL, c.nowFunc()))
	}
	return nil
}

// send performs the request through the retrying client. A non 2xx status
// is returned as an error together with the response body.
func (c *Client) send(ctx context.Context, method, fullURL string, payload []byte) ([]byte, int, error) {
	var rawBody any
	if payload != nil {
		rawBody = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, rawBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Client.send] retryablehttp.NewRequestWithContext")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.single
	if method == http.MethodGet {
		client = c.retrying
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Client.send] io.ReadAll")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, statusError(method, fullURL, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) fail(method, fullURL string, apiErr *APIError) error {
	c.logger.Err(apiErr.Err).
		Str("url", fullURL).
		Int("status", apiErr.StatusCode).
		Str("message", apiErr.Message).
		Msgf("HTTP %s Error", method)
	return apiErr
}

// credentialError marks a failure to obtain a bearer token so checkRetry can
// tell it apart from a network failure.
type credentialError struct {
	err error
}

func (e *credentialError) Error() string { return e.err.Error() }
func (e *credentialError) Unwrap() error { return e.err }

type credentialSource struct {
	src oauth2.TokenSource
}

func (cs credentialSource) Token() (*oauth2.Token, error) {
	t, err := cs.src.Token()
	if err != nil {
		return nil, &credentialError{err: err}
	}
	return t, nil
}
