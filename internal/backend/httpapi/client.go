// Package httpapi implements activity.Backend against the REST API of the
// activities service.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/fault"
	"github.com/hay-kot/huddle/internal/core/query"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx response. It matches fault.ErrTransport, and
// activity.ErrNotFound for 404 responses, with errors.Is.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case fault.ErrTransport:
		return true
	case activity.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Config holds the settings for a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Tokens supplies the bearer token for each request. Requests are sent
	// without Authorization when nil.
	Tokens     func(ctx context.Context) (string, error)
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// Client is an activity.Backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  func(ctx context.Context) (string, error)
	log     zerolog.Logger
}

var _ activity.Backend = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required: %w", fault.ErrValidation)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", cfg.BaseURL, err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		tokens:  cfg.Tokens,
		log:     cfg.Log,
	}, nil
}

func (c *Client) List(ctx context.Context, q query.Query) (activity.Envelope, error) {
	var env activity.Envelope
	if err := c.do(ctx, http.MethodGet, "/activities", q.Values(), nil, &env); err != nil {
		return activity.Envelope{}, err
	}
	return env, nil
}

func (c *Client) Details(ctx context.Context, id string) (activity.Activity, error) {
	var a activity.Activity
	if err := c.do(ctx, http.MethodGet, activityPath(id), nil, nil, &a); err != nil {
		return activity.Activity{}, err
	}
	return a, nil
}

func (c *Client) Create(ctx context.Context, a activity.Activity) error {
	return c.do(ctx, http.MethodPost, "/activities", nil, a, nil)
}

func (c *Client) Update(ctx context.Context, a activity.Activity) error {
	return c.do(ctx, http.MethodPut, activityPath(a.ID), nil, a, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activityPath(id), nil, nil, nil)
}

func (c *Client) Attend(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, activityPath(id)+"/attend", nil, nil, nil)
}

func (c *Client) Unattend(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activityPath(id)+"/attend", nil, nil, nil)
}

func activityPath(id string) string {
	return "/activities/" + url.PathEscape(id)
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Network failures and non-2xx responses match fault.ErrTransport.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, fault.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response: %w", method, path, fault.ErrTransport)
		}
		return fmt.Errorf("%s %s: decode response: %w: %w", method, path, fault.ErrTransport, err)
	}
	return nil
}
