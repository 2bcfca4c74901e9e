// Package tui provides a terminal dashboard for watching one raftwire node:
// its identity, live peer mappings, and send counters.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quorumlabs/raftwire/pkg/types"
)

// Fetcher retrieves the node status shown by the dashboard.
type Fetcher interface {
	Fetch() (*types.StatusResponse, error)
}

// HTTPFetcher implements Fetcher against the node's /status endpoint.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the node at baseURL
// (e.g. "http://127.0.0.1:8001").
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Fetch retrieves the current status.
func (f *HTTPFetcher) Fetch() (*types.StatusResponse, error) {
	resp, err := f.client.Get(f.baseURL + "/status")
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}
