package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to a download engine over its HTTP control API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewHTTPClient creates a new engine client.
func NewHTTPClient(baseURL, apiKey string, log *slog.Logger) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		log:     log.With("component", "engine"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enqueue registers a new download with the engine.
func (c *HTTPClient) Enqueue(ctx context.Context, req Request) (string, error) {
	c.log.Debug("enqueueing download", "id", req.ID)

	params := url.Values{
		"apikey": {c.apiKey},
		"mode":   {"enqueue"},
		"id":     {req.ID},
		"url":    {req.URL},
		"output": {req.OutputPath},
		"size":   {fmt.Sprintf("%d", req.TotalBytes)},
	}

	var resp enqueueResponse
	if err := c.doRequest(ctx, "enqueue", params, &resp); err != nil {
		return "", err
	}

	if !resp.OK {
		if isAPIKeyError(resp.Error) {
			return "", ErrInvalidAPIKey
		}
		return "", fmt.Errorf("engine enqueue failed: %s", resp.Error)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("engine returned no id")
	}

	c.log.Debug("download enqueued", "id", resp.ID)
	return resp.ID, nil
}

// Status gets the status of a download.
func (c *HTTPClient) Status(ctx context.Context, id string) (*Status, error) {
	params := url.Values{
		"apikey": {c.apiKey},
		"mode":   {"status"},
		"id":     {id},
	}

	var resp statusResponse
	if err := c.doRequest(ctx, "status", params, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		if strings.Contains(strings.ToLower(resp.Error), "not found") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("engine status failed: %s", resp.Error)
	}
	return statusFromWire(&resp.Item), nil
}

// ListByState returns all downloads in the given state.
func (c *HTTPClient) ListByState(ctx context.Context, state State) ([]*Status, error) {
	params := url.Values{
		"apikey": {c.apiKey},
		"mode":   {"list"},
		"state":  {string(state)},
	}

	var resp listResponse
	if err := c.doRequest(ctx, "list", params, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("engine list failed: %s", resp.Error)
	}

	items := make([]*Status, 0, len(resp.Items))
	for i := range resp.Items {
		items = append(items, statusFromWire(&resp.Items[i]))
	}
	return items, nil
}

// Pause suspends an active download.
func (c *HTTPClient) Pause(ctx context.Context, id string) error {
	return c.control(ctx, "pause", id)
}

// Resume restarts a paused download.
func (c *HTTPClient) Resume(ctx context.Context, id string) error {
	return c.control(ctx, "resume", id)
}

// Cancel removes a download from the engine.
func (c *HTTPClient) Cancel(ctx context.Context, id string) error {
	return c.control(ctx, "cancel", id)
}

func (c *HTTPClient) control(ctx context.Context, mode, id string) error {
	c.log.Debug("engine control", "mode", mode, "id", id)

	params := url.Values{
		"apikey": {c.apiKey},
		"mode":   {mode},
		"id":     {id},
	}

	var resp okResponse
	if err := c.doRequest(ctx, mode, params, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("engine %s failed: %s", mode, resp.Error)
	}
	return nil
}

// doRequest performs an HTTP request to the engine API.
func (c *HTTPClient) doRequest(ctx context.Context, mode string, params url.Values, result any) error {
	start := time.Now()
	reqURL := c.baseURL + "/api?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "mode", mode, "error", err)
		return ErrUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("api unexpected status", "mode", mode, "status", resp.StatusCode)
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	c.log.Debug("api request complete", "mode", mode, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Wire types for the engine API

type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type enqueueResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

type wireStatus struct {
	ID              string `json:"id"`
	State           string `json:"state"`
	BytesDownloaded int64  `json:"bytes_downloaded"`
	TotalBytes      int64  `json:"total_bytes"`
	Error           string `json:"error"`
}

type statusResponse struct {
	OK    bool       `json:"ok"`
	Item  wireStatus `json:"item"`
	Error string     `json:"error"`
}

type listResponse struct {
	OK    bool         `json:"ok"`
	Items []wireStatus `json:"items"`
	Error string       `json:"error"`
}

func statusFromWire(w *wireStatus) *Status {
	return &Status{
		ID:              w.ID,
		State:           State(w.State),
		BytesDownloaded: w.BytesDownloaded,
		TotalBytes:      w.TotalBytes,
		Error:           w.Error,
	}
}

// isAPIKeyError checks if the error message indicates an invalid API key.
func isAPIKeyError(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "api key") || strings.Contains(lower, "apikey")
}
