// Package client talks to the forum REST API. Services are thin: they
// issue one HTTP call each and never touch their caches; callers reconcile
// the caches through the store reducers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const slowRequest = 2 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
	metrics *Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Keep a cookie jar on it:
// the connected user is tracked by a session cookie.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.log = l.WithField("component", "client") }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
		log:     logrus.StandardLogger().WithField("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Metrics() *Metrics { return c.metrics }

func (c *Client) Logger() *logrus.Entry { return c.log }

func (c *Client) do(ctx context.Context, resource, method, path string, in, out interface{}) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	status := 0

	defer func() {
		c.metrics.observeRequest(resource, method, err)
		c.afterRequestLogging(start, requestID, method, path, status, err)
		if time.Since(start) > slowRequest {
			c.metrics.observeSlow(resource)
		}
	}()

	var body io.Reader
	if in != nil {
		buf, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("encode %s body: %w", resource, merr)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			ErrorMsg string `json:"error_msg"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &apiErr) != nil {
			apiErr.ErrorMsg = strings.TrimSpace(string(raw))
		}
		return &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    apiErr.ErrorMsg,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s: %w", resource, err)}
	}
	return nil
}

func (c *Client) afterRequestLogging(start time.Time, requestID, method, path string, status int, err error) {
	duration := time.Since(start)
	entry := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     status,
		"duration":   duration,
		"request_id": requestID,
	})

	switch {
	case err != nil:
		entry.WithError(err).Warn("Request failed")
	case duration > slowRequest:
		entry.Warn("Slow request detected")
	default:
		entry.Debug("Request completed quickly")
	}
}

func itemPath(collection string, id int64) string {
	return fmt.Sprintf("%s%d", collection, id)
}
