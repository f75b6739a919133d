package modelscoutsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal ModelScout HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Model represents one catalog entry (partial).
type Model struct {
	ID                string   `json:"id"`
	DisplayName       string   `json:"display_name,omitempty"`
	ProviderName      string   `json:"provider_name"`
	Regions           []string `json:"regions,omitempty"`
	SupportsStreaming bool     `json:"supports_streaming"`
	RequiresApproval  bool     `json:"requires_approval"`
	ReleaseDate       string   `json:"release_date,omitempty"`
}

// AccessStatus is a per-model entitlement snapshot.
type AccessStatus struct {
	ID         string `json:"id"`
	HasAccess  bool   `json:"has_access"`
	State      string `json:"state"`
	CanRequest bool   `json:"can_request"`
}

// CommandGroup is one provider batch of access-request commands.
type CommandGroup struct {
	Provider string   `json:"provider"`
	ModelIDs []string `json:"model_ids"`
	Command  string   `json:"command"`
}

// DiscoveryResult is the full pipeline output.
type DiscoveryResult struct {
	AvailableIDs    []string       `json:"available_ids"`
	Catalog         []Model        `json:"catalog"`
	AccessStatuses  []AccessStatus `json:"access_statuses"`
	RequestCommands []CommandGroup `json:"request_commands"`
}

// Run records one discovery invocation.
type Run struct {
	ID             string `json:"id"`
	Region         string `json:"region"`
	StartedAt      string `json:"started_at"`
	CompletedAt    string `json:"completed_at"`
	CatalogSource  string `json:"catalog_source"`
	AvailableCount int    `json:"available_count"`
	CatalogCount   int    `json:"catalog_count"`
	GapCount       int    `json:"gap_count"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DiscoverOptions narrow one discovery run.
type DiscoverOptions struct {
	Region           string `json:"region,omitempty"`
	ByProvider       string `json:"by_provider,omitempty"`
	ByOutputModality string `json:"by_output_modality,omitempty"`
	ByInferenceType  string `json:"by_inference_type,omitempty"`
}

// Discover runs the full discovery pipeline.
func (c *Client) Discover(ctx context.Context, opts DiscoverOptions) (DiscoveryResult, error) {
	var resp DiscoveryResult
	err := c.do(ctx, http.MethodPost, "v0/discover", opts, &resp)
	return resp, err
}

// Models acquires the catalog.
func (c *Client) Models(ctx context.Context) ([]Model, string, error) {
	var resp struct {
		Source string  `json:"source"`
		Models []Model `json:"models"`
	}
	err := c.do(ctx, http.MethodGet, "v0/models", nil, &resp)
	return resp.Models, resp.Source, err
}

// Available returns the live identifier union across configured regions.
func (c *Client) Available(ctx context.Context, byProvider string) ([]string, error) {
	endpoint := "v0/models/available"
	if byProvider != "" {
		endpoint += "?by_provider=" + url.QueryEscape(byProvider)
	}
	var resp struct {
		IDs []string `json:"ids"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.IDs, err
}

// Access resolves entitlement for the given identifiers, or the whole
// catalog when ids is empty.
func (c *Client) Access(ctx context.Context, region string, ids []string) ([]AccessStatus, error) {
	q := url.Values{}
	if region != "" {
		q.Set("region", region)
	}
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	endpoint := "v0/access"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Statuses []AccessStatus `json:"statuses"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Statuses, err
}

// Commands synthesizes access-request commands for the current gaps.
func (c *Client) Commands(ctx context.Context, region, justification string) ([]CommandGroup, error) {
	body := map[string]any{}
	if region != "" {
		body["region"] = region
	}
	if justification != "" {
		body["justification"] = justification
	}
	var resp struct {
		Groups []CommandGroup `json:"groups"`
	}
	err := c.do(ctx, http.MethodPost, "v0/commands", body, &resp)
	return resp.Groups, err
}

// Runs lists recorded discovery runs.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	endpoint := "v0/runs"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Runs, err
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "v0/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
