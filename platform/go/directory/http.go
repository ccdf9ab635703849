package directory

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

// HTTPClient reaches the identity directory over its JSON admin API. It
// provides both the Organizations and Clients surfaces.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPConfig configures the directory client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration // 0 leaves a 15s default
}

// NewHTTPClient constructs an HTTPClient for the directory admin API.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("directory base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse directory base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) List(ctx context.Context) ([]OrganizationRecord, error) {
	var records []OrganizationRecord
	if err := c.do(ctx, http.MethodGet, "/organizations", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) Get(ctx context.Context, id string) (OrganizationRecord, error) {
	var rec OrganizationRecord
	if err := c.do(ctx, http.MethodGet, "/organizations/"+url.PathEscape(id), nil, &rec); err != nil {
		return OrganizationRecord{}, err
	}
	return rec, nil
}

func (c *HTTPClient) FindByName(ctx context.Context, name string) (OrganizationRecord, error) {
	var records []OrganizationRecord
	path := "/organizations?name=" + url.QueryEscape(name) + "&exact=true"
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return OrganizationRecord{}, err
	}
	if len(records) == 0 {
		return OrganizationRecord{}, ErrNotFound
	}
	return records[0], nil
}

func (c *HTTPClient) SearchByAttribute(ctx context.Context, attribute, value string) ([]OrganizationRecord, error) {
	var records []OrganizationRecord
	path := "/organizations?attribute=" + url.QueryEscape(attribute+":"+value)
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) Create(ctx context.Context, rec OrganizationRecord) (OrganizationRecord, error) {
	var created OrganizationRecord
	if err := c.do(ctx, http.MethodPost, "/organizations", rec, &created); err != nil {
		return OrganizationRecord{}, err
	}
	return created, nil
}

func (c *HTTPClient) Update(ctx context.Context, rec OrganizationRecord) error {
	return c.do(ctx, http.MethodPut, "/organizations/"+url.PathEscape(rec.ID), rec, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/organizations/"+url.PathEscape(id), nil, nil)
}

// httpClients exposes the client-registration surface of the same API.
type httpClients struct {
	c *HTTPClient
}

// ClientAPI returns the Clients surface of the directory.
func (c *HTTPClient) ClientAPI() Clients {
	return httpClients{c: c}
}

func (h httpClients) List(ctx context.Context) ([]ClientRecord, error) {
	var records []ClientRecord
	if err := h.c.do(ctx, http.MethodGet, "/clients", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (h httpClients) Get(ctx context.Context, id string) (ClientRecord, error) {
	var rec ClientRecord
	if err := h.c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(id), nil, &rec); err != nil {
		return ClientRecord{}, err
	}
	return rec, nil
}

func (h httpClients) FindByClientID(ctx context.Context, clientID string) (ClientRecord, error) {
	var records []ClientRecord
	path := "/clients?clientId=" + url.QueryEscape(clientID)
	if err := h.c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return ClientRecord{}, err
	}
	if len(records) == 0 {
		return ClientRecord{}, ErrNotFound
	}
	return records[0], nil
}

func (h httpClients) Create(ctx context.Context, rec ClientRecord) (ClientRecord, error) {
	var created ClientRecord
	if err := h.c.do(ctx, http.MethodPost, "/clients", rec, &created); err != nil {
		return ClientRecord{}, err
	}
	return created, nil
}

func (h httpClients) Update(ctx context.Context, rec ClientRecord) error {
	return h.c.do(ctx, http.MethodPut, "/clients/"+url.PathEscape(rec.ID), rec, nil)
}

func (h httpClients) Delete(ctx context.Context, id string) error {
	return h.c.do(ctx, http.MethodDelete, "/clients/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("directory request %s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}
	return nil
}

var (
	_ Organizations = (*HTTPClient)(nil)
	_ Clients       = httpClients{}
)
