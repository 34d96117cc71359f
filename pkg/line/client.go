// Package line wraps the LINE Messaging API push endpoint.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/resilience"
)

// Default base URL for the LINE Messaging API.
const defaultBaseURL = "https://api.line.me"

const pushPath = "/v2/bot/message/push"

// Client defines the LINE Messaging API operations used by this application.
type Client interface {
	Push(ctx context.Context, userID, text string) error
}

// pushRequest is the body for POST /v2/bot/message/push.
type pushRequest struct {
	To       string    `json:"to"`
	Messages []message `json:"messages"`
}

type message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// APIError is returned when LINE responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a new LINE client with the given channel access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push delivers one text message to one recipient. Connection-level failures
// are retried; an explicit non-2xx response fails immediately.
func (c *httpClient) Push(ctx context.Context, userID, text string) error {
	body := pushRequest{
		To:       userID,
		Messages: []message{{Type: "text", Text: text}},
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "line: marshal push request")
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("line", "push")

	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(buf))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			zap.L().Error("LINE push failed",
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(data)),
			)
			return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("line: push to %s", userID))
	}

	zap.L().Info("sent LINE message", zap.String("user_id", userID))
	return nil
}
