// Package sogni integrates the Sogni render network as a push-mode provider
// plugin. Submission happens over REST; progress arrives as JSON job events
// on a persistent socket the tracker opens against TransportURL.
package sogni

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
var ErrMissingAPIKey = errors.New("sogni: api key is required")

// Options configures the Sogni REST client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Sogni project API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

type projectResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
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
		baseURL = "https://api.sogni.ai"
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

// CreateProject submits one generation project and returns its id. A
// provider-side decline (accepted connection, refused job) surfaces as a
// RejectedError carrying the provider's reason text.
func (c *Client) CreateProject(ctx context.Context, payload any) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sogni: encode request: %w", err)
	}
	endpoint := c.baseURL + "/v1/projects"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("sogni: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &provider.TransportError{Provider: "sogni", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.TransportError{Provider: "sogni", Err: fmt.Errorf("read response: %w", err)}
	}

	var decoded projectResponse
	if resp.StatusCode >= 300 {
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
			return "", &provider.RejectedError{Provider: "sogni", Reason: decoded.Error.Message}
		}
		return "", &provider.TransportError{
			Provider:   "sogni",
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), 512),
		}
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("sogni: decode response: %w", err)
	}
	if decoded.Error.Message != "" {
		return "", &provider.RejectedError{Provider: "sogni", Reason: decoded.Error.Message}
	}
	if decoded.ProjectID == "" {
		return "", &provider.RejectedError{Provider: "sogni", Reason: "response missing project_id"}
	}
	c.logger.Debug().Str("project_id", decoded.ProjectID).Msg("sogni: project created")
	return decoded.ProjectID, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
