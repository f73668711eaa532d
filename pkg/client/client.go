package client

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

	"github.com/cuemby/swarmroll/pkg/api"
	"github.com/cuemby/swarmroll/pkg/deploy"
	"github.com/cuemby/swarmroll/pkg/security"
	"github.com/cuemby/swarmroll/pkg/types"
)

// requestTimeout bounds registry calls. Rollouts are bounded by the caller's context.
const requestTimeout = 10 * time.Second

// Error is a non-2xx reply from the server
type Error struct {
	StatusCode int
	Payload    deploy.Payload
}

func (e *Error) Error() string {
	if e.Payload.Error == "" && e.Payload.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Payload.String())
}

// Client talks to a swarmroll server over HTTP
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	return &Client{baseURL: u, httpClient: &http.Client{}}, nil
}

// Trigger signs and sends a deploy webhook for services. A rollout that ran
// but failed is not an error: the response and its status code are returned
// so the caller can report the payload.
func (c *Client) Trigger(ctx context.Context, secret, algorithm string, services []string) (*api.DeployResponse, int, error) {
	body, err := json.Marshal(api.DeployRequest{Services: services})
	if err != nil {
		return nil, 0, err
	}
	signature, err := security.Sign(secret, algorithm, body)
	if err != nil {
		return nil, 0, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/deploy", body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(security.SignatureHeader, signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send deploy webhook: %w", err)
	}
	defer resp.Body.Close()

	var out api.DeployResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode deploy response (status %d): %w", resp.StatusCode, err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusInternalServerError:
		return &out, resp.StatusCode, nil
	default:
		return &out, resp.StatusCode, &Error{StatusCode: resp.StatusCode, Payload: out.Payload}
	}
}

// ListServices lists registered services
func (c *Client) ListServices(ctx context.Context) ([]types.ServiceRef, error) {
	var services []types.ServiceRef
	err := c.call(ctx, http.MethodGet, "/services", nil, &services)
	return services, err
}

// GetService gets a registered service by name
func (c *Client) GetService(ctx context.Context, name string) (*types.ServiceRef, error) {
	var service types.ServiceRef
	if err := c.call(ctx, http.MethodGet, "/services/"+url.PathEscape(name), nil, &service); err != nil {
		return nil, err
	}
	return &service, nil
}

// CreateService registers a service
func (c *Client) CreateService(ctx context.Context, name, repository, tag string) (*types.ServiceRef, error) {
	var service types.ServiceRef
	req := api.ServiceRequest{Name: name, Repository: repository, Tag: tag}
	if err := c.call(ctx, http.MethodPost, "/services", req, &service); err != nil {
		return nil, err
	}
	return &service, nil
}

// UpdateService changes the repository and tag of a registered service
func (c *Client) UpdateService(ctx context.Context, name, repository, tag string) (*types.ServiceRef, error) {
	var service types.ServiceRef
	req := api.ServiceRequest{Name: name, Repository: repository, Tag: tag}
	if err := c.call(ctx, http.MethodPut, "/services/"+url.PathEscape(name), req, &service); err != nil {
		return nil, err
	}
	return &service, nil
}

// DeleteService unregisters a service
func (c *Client) DeleteService(ctx context.Context, name string) error {
	return c.call(ctx, http.MethodDelete, "/services/"+url.PathEscape(name), nil, nil)
}

// ServiceStatus lists registered services with their platform state
func (c *Client) ServiceStatus(ctx context.Context) ([]types.ServiceStatus, error) {
	var statuses []types.ServiceStatus
	err := c.call(ctx, http.MethodGet, "/services/status", nil, &statuses)
	return statuses, err
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Payload)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
