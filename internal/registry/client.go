package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrCompanyNotFound     = errors.New("company not found in registry")
	ErrRegistryUnavailable = errors.New("company registry unavailable")
)

// Company is the part of a registry record the marketplace uses.
type Company struct {
	ICO  string `json:"ico"`
	Name string `json:"obchodniJmeno"`
}

// Lookuper resolves a registry ID to a company.
type Lookuper interface {
	Lookup(ctx context.Context, ico string) (*Company, error)
}

// Client talks to the ARES REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup fetches /ekonomicke-subjekty/{ico}. Anything other than a clean 200
// or 404 is reported as ErrRegistryUnavailable.
func (c *Client) Lookup(ctx context.Context, ico string) (*Company, error) {
	url := fmt.Sprintf("%s/ekonomicke-subjekty/%s", c.baseURL, ico)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrCompanyNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRegistryUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var company Company
	if err := json.NewDecoder(resp.Body).Decode(&company); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRegistryUnavailable, err)
	}
	if company.Name == "" {
		return nil, ErrCompanyNotFound
	}
	if company.ICO == "" {
		company.ICO = ico
	}
	return &company, nil
}
