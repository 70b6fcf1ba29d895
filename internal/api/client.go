// Package api is the HTTP gateway to the backend REST API.
//
// Every call goes through a middleware chain that attaches the stored bearer
// token and, on a 401, refreshes the access token once and replays the request.
// All failures surface as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/uber-go/tally"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	ReauthRoute string

	Tokens    *Tokens
	Navigator Navigator
	Logger    *log.Logger
	Scope     tally.Scope

	// Transport overrides the HTTP transport of both the instrumented and
	// the refresh client.
	Transport http.RoundTripper
}

// Client performs authenticated calls against the backend.
type Client struct {
	tokens      *Tokens
	nav         Navigator
	logger      *log.Logger
	scope       tally.Scope
	transport   http.RoundTripper
	reauthRoute string

	mu        sync.RWMutex
	baseURL   string
	doer      Doer
	refresher *refresher
}

// NewClient creates a client. Tokens is required.
func NewClient(opts Options) *Client {
	c := &Client{
		tokens:      opts.Tokens,
		nav:         opts.Navigator,
		logger:      opts.Logger,
		scope:       opts.Scope,
		transport:   opts.Transport,
		reauthRoute: opts.ReauthRoute,
	}
	if c.nav == nil {
		c.nav = noopNavigator{}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.scope == nil {
		c.scope = tally.NoopScope
	}
	if c.reauthRoute == "" {
		c.reauthRoute = "/login"
	}
	c.Reconfigure(opts.BaseURL, opts.Timeout)
	return c
}

// Reconfigure points the client at a new base URL and timeout.
// Requests already in flight finish with the old settings.
func (c *Client) Reconfigure(baseURL string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// Two separate clients: the refresh call must never pass through the chain.
	instrumented := &http.Client{Timeout: timeout, Transport: c.transport}
	bare := &http.Client{Timeout: timeout, Transport: c.transport}

	ref := &refresher{
		baseURL:     baseURL,
		client:      bare,
		tokens:      c.tokens,
		nav:         c.nav,
		reauthRoute: c.reauthRoute,
	}

	c.mu.Lock()
	c.baseURL = baseURL
	c.refresher = ref
	c.doer = Chain(instrumented, c.refreshOnUnauthorized(ref), BearerAuth(c.tokens))
	c.mu.Unlock()
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Tokens returns the token store used by the client.
func (c *Client) Tokens() *Tokens {
	return c.tokens
}

// RefreshToken exchanges the refresh token for a new access token outside of
// any request. No redirect happens on failure other than a missing token.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	ref := c.refresher
	c.mu.RUnlock()
	return ref.refresh(ctx)
}

// refreshOnUnauthorized replays a request once after refreshing the access
// token. If refreshing fails the tokens are cleared and the user is sent to
// the re-authentication route.
func (c *Client) refreshOnUnauthorized(ref *refresher) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.Do(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized || wasRetried(req.Context()) {
				return resp, err
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if _, err := ref.refresh(req.Context()); err != nil {
				c.scope.Counter("refresh.failure").Inc(1)
				if errors.Is(err, ErrNoRefreshToken) {
					c.logger.Warn("no refresh token, re-authentication required", "path", req.URL.Path)
					return nil, err
				}
				c.logger.Warn("token refresh failed", "path", req.URL.Path, "err", err)
				c.tokens.Clear()
				c.nav.Redirect(c.reauthRoute)
				return nil, sessionExpiredError(err)
			}
			c.scope.Counter("refresh.success").Inc(1)

			retry, err := cloneForRetry(req)
			if err != nil {
				return nil, err
			}
			c.scope.Counter("retries").Inc(1)
			c.logger.Debug("retrying request with refreshed token", "path", req.URL.Path)
			return next.Do(retry)
		})
	}
}

// Get issues a GET and decodes the data payload into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends a JSON request. A nil body sends no body; a nil out does not
// require a data payload in the response.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// Upload sends a multipart/form-data request with a single file part.
func (c *Client) Upload(ctx context.Context, method, path, field, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := c.BaseURL() + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	c.mu.RLock()
	doer := c.doer
	c.mu.RUnlock()

	start := time.Now()
	resp, err := doer.Do(req)
	elapsed := time.Since(start)

	c.scope.Counter("requests").Inc(1)
	c.scope.Timer("latency").Record(elapsed)

	if err != nil {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			apiErr = networkError(err)
		}
		c.countError(apiErr.Status)
		c.logger.Debug("api request failed", "method", req.Method, "path", req.URL.Path, "status", apiErr.Status, "err", err)
		return apiErr
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration", elapsed)

	if err := decodeResponse(resp, out); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			c.countError(apiErr.Status)
		}
		return err
	}
	return nil
}

func (c *Client) countError(status int) {
	c.scope.Tagged(map[string]string{"status": strconv.Itoa(status)}).Counter("errors").Inc(1)
}
