// Package license obtains download rights from the external licensing
// service: the content URL plus the decryption material for one item.
package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDenied is returned when the licensing service refuses the item.
var ErrDenied = errors.New("license denied")

// Rights holds what the licensing service issues for one acquisition.
type Rights struct {
	DownloadURL string `json:"download_url"`
	Key         string `json:"key"`
	IV          string `json:"iv"`
	TotalBytes  int64  `json:"total_bytes"`
}

// Service issues download rights for external item ids.
type Service interface {
	Rights(ctx context.Context, externalID string) (*Rights, error)
}

// HTTPClient is the HTTP implementation of Service.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a licensing service client.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Rights requests download rights for an item.
func (c *HTTPClient) Rights(ctx context.Context, externalID string) (*Rights, error) {
	reqURL := c.baseURL + "/rights/" + url.PathEscape(externalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("license request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrDenied
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var rights Rights
	if err := json.NewDecoder(resp.Body).Decode(&rights); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rights.DownloadURL == "" {
		return nil, fmt.Errorf("license response missing download url")
	}
	return &rights, nil
}
