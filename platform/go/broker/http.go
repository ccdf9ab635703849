package broker

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

// HTTPConfig configures the broker REST clients.
type HTTPConfig struct {
	AdminBaseURL string
	Timeout      time.Duration // 0 leaves a 15s default
}

// HTTPClient reaches the broker's REST admin API. It covers topic publication
// and tenant administration.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs an HTTPClient for the broker admin API.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.AdminBaseURL == "" {
		return nil, fmt.Errorf("broker admin base url is required")
	}
	if _, err := url.Parse(cfg.AdminBaseURL); err != nil {
		return nil, fmt.Errorf("parse broker admin base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.AdminBaseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Publish sends one message to the topic; the broker partitions by key.
func (c *HTTPClient) Publish(ctx context.Context, topic, key string, payload []byte) error {
	body, err := json.Marshal(struct {
		Key     string          `json:"key"`
		Payload json.RawMessage `json:"payload"`
	}{Key: key, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal publish request: %w", err)
	}

	path := "/topics/" + url.PathEscape(topic) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("publish to %s: status %d: %s", topic, resp.StatusCode, detail)
	}
	return nil
}

// CreateTenant creates the named tenant.
func (c *HTTPClient) CreateTenant(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tenants/"+url.PathEscape(name), nil)
	if err != nil {
		return fmt.Errorf("build create tenant request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("create tenant %q: %w", name, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrTenantExists
	case resp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("create tenant %q: status %d: %s", name, resp.StatusCode, detail)
	}
	return nil
}

// DeleteTenant removes the named tenant.
func (c *HTTPClient) DeleteTenant(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/tenants/"+url.PathEscape(name), nil)
	if err != nil {
		return fmt.Errorf("build delete tenant request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete tenant %q: %w", name, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrTenantNotFound
	case resp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("delete tenant %q: status %d: %s", name, resp.StatusCode, detail)
	}
	return nil
}

var (
	_ Publisher   = (*HTTPClient)(nil)
	_ TenantAdmin = (*HTTPClient)(nil)
)
