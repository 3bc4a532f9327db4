package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the automation runtime's control API over the local
// authenticated HTTP channel.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewClient creates a control API client. baseURL is the runtime core API
// root (e.g. "http://supervisor/core/api").
func NewClient(baseURL, token string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid runtime URL: %w", err)
	}
	return &Client{
		baseURL:    parsed,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	endpoint, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	requestURL := c.baseURL.ResolveReference(endpoint)

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// State is one entity state as reported by the runtime.
type State struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// GetStates returns the states of all entities.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	resp, err := c.do(ctx, http.MethodGet, "states", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get states: %s", resp.Status)
	}
	var states []State
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, err
	}
	return states, nil
}

// CheckConfig asks the runtime to validate its configuration and reports
// whether the result is valid. A non-2xx response is a transport-level
// failure, distinct from an invalid configuration.
func (c *Client) CheckConfig(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "config/core/check_config", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("check config: %s", resp.Status)
	}
	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Result == "valid", nil
}

// ReloadService triggers a reload of one runtime subsystem ("group",
// "automation").
func (c *Client) ReloadService(ctx context.Context, domain string) error {
	resp, err := c.do(ctx, http.MethodPost, "services/"+domain+"/reload", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reload %s: %s", domain, resp.Status)
	}
	return nil
}
