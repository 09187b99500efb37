// Package client calls the peopleops admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/provisioning"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Token     string
	Timeout   time.Duration
	Debug     bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   time.Minute,
	}
}

// APIError is a non-2xx response from the admin API.
type APIError struct {
	StatusCode  int               `json:"-"`
	Message     string            `json:"error"`
	Detail      string            `json:"detail"`
	Fields      map[string]string `json:"fields"`
	PrincipalID string            `json:"principal_id"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", e.StatusCode, e.Message)
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	if e.PrincipalID != "" {
		fmt.Fprintf(&b, " [orphaned principal %s]", e.PrincipalID)
	}
	return b.String()
}

// Duplicate reports whether the email was already registered.
func (e *APIError) Duplicate() bool {
	return e.StatusCode == http.StatusBadRequest && strings.Contains(e.Message, "already exists")
}

// Employee is a successful provisioning response.
type Employee struct {
	UserID            string                         `json:"user_id"`
	EmployeeID        uuid.UUID                      `json:"employee_id"`
	Employee          *models.EmployeeRecord         `json:"employee"`
	LoginInstructions provisioning.LoginInstructions `json:"login_instructions"`

	// Replayed is set when the server answered from a stored result.
	Replayed bool `json:"-"`
}

// Client calls the admin API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("bearer token is required")
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// CreateEmployee provisions one employee. An empty idempotencyKey sends no key.
func (c *Client) CreateEmployee(ctx context.Context, in provisioning.Input, idempotencyKey string) (*Employee, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/admin/employees", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	var out Employee
	resp, err := c.do(req, &out)
	if err != nil {
		return nil, err
	}
	out.Replayed = resp.Header.Get("Idempotent-Replayed") == "true"

	return &out, nil
}

// ListOrphans returns principals awaiting operator cleanup.
func (c *Client) ListOrphans(ctx context.Context) ([]*models.OrphanedPrincipal, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/orphans", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Orphans []*models.OrphanedPrincipal `json:"orphans"`
	}
	if _, err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Orphans, nil
}

// ResolveOrphan marks an orphaned principal as cleaned up.
func (c *Client) ResolveOrphan(ctx context.Context, principalID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/admin/orphans/"+principalID+"/resolve", nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return resp, apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp, nil
}
