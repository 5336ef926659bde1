// Package inventory fetches the list of registered Anyone domains from the
// Anyone API service.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/anyone-dns-service/interfaces"
)

// DomainsPath is appended to the base URL of the Anyone API.
const DomainsPath = "/anyone-domains"

// DefaultTimeout bounds a single inventory request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps the inventory response (16MB).
const maxBodySize = 16 * 1024 * 1024

// Client implements interfaces.InventoryFetcher over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an inventory client for the Anyone API at baseURL.
// A nil httpClient selects a client with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid inventory base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// URL returns the full inventory endpoint.
func (c *Client) URL() string {
	return c.baseURL + DomainsPath
}

// FetchDomains retrieves the domain inventory. Entries whose name is missing,
// empty or not a string are dropped. Any non-2xx status is an error.
func (c *Client) FetchDomains(ctx context.Context) ([]interfaces.DomainEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request inventory endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("anyone API error, status: %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var raw []map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not parse inventory response: %w", err)
	}

	entries := make([]interfaces.DomainEntry, 0, len(raw))
	for _, item := range raw {
		name, _ := item["name"].(string)
		if name == "" {
			continue
		}
		entries = append(entries, interfaces.DomainEntry{Name: name})
	}

	return entries, nil
}
