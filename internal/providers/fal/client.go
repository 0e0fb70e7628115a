// Package fal integrates the fal.ai queue API as a pull-mode provider
// plugin. Submissions go to the queue endpoint; progress is obtained by
// polling the status URL the queue hands back.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/provider"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the fal queue client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the fal.ai queue API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

type queueSubmission struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type queueStatus struct {
	Status        string `json:"status"`
	QueuePosition *int   `json:"queue_position,omitempty"`
	ResponseURL   string `json:"response_url"`
	Error         string `json:"error,omitempty"`
}

type detailError struct {
	Detail json.RawMessage `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit enqueues one generation request for the given model and returns the
// queue's continuation envelope.
func (c *Client) Submit(ctx context.Context, modelID string, payload any) (*queueSubmission, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fal: encode request: %w", err)
	}
	endpoint := c.baseURL + "/" + strings.TrimLeft(modelID, "/")
	raw, statusCode, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if statusCode >= 300 {
		return nil, classifyFailure(statusCode, raw)
	}
	var sub queueSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("fal: decode submission: %w", err)
	}
	if sub.RequestID == "" {
		return nil, &provider.RejectedError{Provider: "fal", Reason: "submission response missing request_id"}
	}
	c.logger.Debug().
		Str("model", modelID).
		Str("request_id", sub.RequestID).
		Msg("fal: submitted request")
	return &sub, nil
}

// Status performs one status request against the queue.
func (c *Client) Status(ctx context.Context, statusURL string) (*queueStatus, error) {
	raw, statusCode, err := c.do(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, err
	}
	if statusCode >= 300 {
		return nil, &provider.TransportError{Provider: "fal", StatusCode: statusCode, Body: truncate(string(raw), 512)}
	}
	var st queueStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("fal: decode status: %w", err)
	}
	return &st, nil
}

// Result fetches the finished payload from the response URL.
func (c *Client) Result(ctx context.Context, responseURL string) (json.RawMessage, error) {
	raw, statusCode, err := c.do(ctx, http.MethodGet, responseURL, nil)
	if err != nil {
		return nil, err
	}
	if statusCode >= 300 {
		return nil, &provider.TransportError{Provider: "fal", StatusCode: statusCode, Body: truncate(string(raw), 512)}
	}
	return json.RawMessage(raw), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("fal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &provider.TransportError{Provider: "fal", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &provider.TransportError{Provider: "fal", Err: fmt.Errorf("read response: %w", err)}
	}
	return raw, resp.StatusCode, nil
}

// classifyFailure separates provider-side validation rejections from plain
// transport failures. fal returns pydantic-style {"detail": [...]} envelopes
// for rejected submissions.
func classifyFailure(statusCode int, raw []byte) error {
	if statusCode == http.StatusUnprocessableEntity || statusCode == http.StatusBadRequest {
		var detail detailError
		if err := json.Unmarshal(raw, &detail); err == nil && len(detail.Detail) > 0 {
			return &provider.RejectedError{Provider: "fal", Reason: detailReason(detail.Detail)}
		}
	}
	return &provider.TransportError{Provider: "fal", StatusCode: statusCode, Body: truncate(string(raw), 512)}
}

func detailReason(detail json.RawMessage) string {
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(detail, &items); err == nil && len(items) > 0 {
		var msgs []string
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	var plain string
	if err := json.Unmarshal(detail, &plain); err == nil && plain != "" {
		return plain
	}
	return strings.TrimSpace(string(detail))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
