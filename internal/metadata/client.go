package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches book metadata from the external metadata store over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a metadata store client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ByExternalID fetches the metadata record for the item id.
func (c *Client) ByExternalID(ctx context.Context, externalID string) (*Book, error) {
	var book Book
	if err := c.get(ctx, "/books/"+url.PathEscape(externalID), &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// SearchByTitle returns candidate records matching a title query.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Book, error) {
	var books []Book
	path := "/books?title=" + url.QueryEscape(title)
	if err := c.get(ctx, path, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
