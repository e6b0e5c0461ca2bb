// Package api provides the HTTP client for the central AgriSync API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kbrou/agrisync/internal/errors"
	"github.com/kbrou/agrisync/internal/models"
)

// Config holds remote API connection configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration // per-request timeout, default 30s
}

// Client talks to the central API using the per-resource REST contract:
// POST /{resource}, PUT /{resource}/{id}, DELETE /{resource}/{id}.
//
// Transport failures (no response) are reported as NETWORK_ERROR, non-2xx
// responses as SERVER_REJECTED carrying the server's error message if the
// body contains one.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// errorBody is the optional error envelope the server returns on failure.
type errorBody struct {
	Error string `json:"error"`
}

// NewClient creates a new Client.
func NewClient(config *Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Create sends POST /{resource} with the payload as JSON body.
func (c *Client) Create(ctx context.Context, resource models.ResourceType, payload json.RawMessage) error {
	return c.do(ctx, http.MethodPost, c.resourceURL(resource, ""), payload)
}

// Update sends PUT /{resource}/{id} with the payload as JSON body.
func (c *Client) Update(ctx context.Context, resource models.ResourceType, id string, payload json.RawMessage) error {
	if id == "" {
		return errors.New(errors.ErrInvalid, "update requires a payload id")
	}
	return c.do(ctx, http.MethodPut, c.resourceURL(resource, id), payload)
}

// Delete sends DELETE /{resource}/{id}.
func (c *Client) Delete(ctx context.Context, resource models.ResourceType, id string) error {
	if id == "" {
		return errors.New(errors.ErrInvalid, "delete requires a payload id")
	}
	return c.do(ctx, http.MethodDelete, c.resourceURL(resource, id), nil)
}

// resourceURL builds the endpoint URL for a resource, optionally with an id.
func (c *Client) resourceURL(resource models.ResourceType, id string) string {
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(string(resource)))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// do executes one request and classifies the outcome.
func (c *Client) do(ctx context.Context, method, endpoint string, body json.RawMessage) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response from the server: timeout, DNS failure, refused connection.
		return errors.Wrap(errors.ErrNetwork,
			fmt.Sprintf("%s %s failed", method, endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := fmt.Sprintf("%s %s rejected with status %d", method, endpoint, resp.StatusCode)
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if readErr == nil && len(raw) > 0 {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			message = fmt.Sprintf("%s: %s", message, eb.Error)
		}
	}

	return errors.New(errors.ErrServerRejected, message)
}
