package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/peopleops/internal/models"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 16 * 1024

// Config holds identity service client configuration
type Config struct {
	BaseURL     string // e.g. https://project.example.co/auth/v1
	AdminSecret string // service role key, sent as bearer and apikey
	HTTPClient  *http.Client
}

// Client calls the identity service admin API over HTTP.
type Client struct {
	baseURL     *url.URL
	adminSecret string
	httpClient  *http.Client
}

// NewClient creates a new identity service client. Requests are bounded by the
// caller's context; the client itself sets no global timeout.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity service base URL is required")
	}
	if cfg.AdminSecret == "" {
		return nil, errors.New("identity service admin secret is required")
	}

	baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid identity service base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	return &Client{
		baseURL:     baseURL,
		adminSecret: cfg.AdminSecret,
		httpClient:  httpClient,
	}, nil
}

type createUserRequest struct {
	Email        string                   `json:"email"`
	Password     string                   `json:"password"`
	EmailConfirm bool                     `json:"email_confirm"`
	UserMetadata models.PrincipalMetadata `json:"user_metadata"`
}

type userResponse struct {
	ID           string                   `json:"id"`
	Email        string                   `json:"email"`
	UserMetadata models.PrincipalMetadata `json:"user_metadata"`
	CreatedAt    time.Time                `json:"created_at"`
}

func (u *userResponse) principal() *models.Principal {
	return &models.Principal{
		PrincipalID: u.ID,
		Email:       u.Email,
		Metadata:    u.UserMetadata,
		CreatedAt:   u.CreatedAt,
	}
}

// CreatePrincipal creates a new user with a pre-confirmed email.
// Returns ErrDuplicateEmail if the identity service already has the address.
func (c *Client) CreatePrincipal(ctx context.Context, in CreatePrincipalInput) (*models.Principal, error) {
	body, err := json.Marshal(createUserRequest{
		Email:        in.Email,
		Password:     in.Password,
		EmailConfirm: in.EmailConfirmed,
		UserMetadata: in.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode create user request: %w", err)
	}

	req, err := c.newAdminRequest(ctx, http.MethodPost, "/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var user userResponse
	if err := c.do(req, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isDuplicateEmail(apiErr) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateEmail, apiErr)
		}
		return nil, err
	}

	if user.ID == "" {
		return nil, errors.New("identity service returned a user without an id")
	}

	log.Debug().Str("principal_id", user.ID).Msg("Created principal")

	return user.principal(), nil
}

// DeletePrincipal deletes a user by ID.
// Returns ErrPrincipalNotFound if the identity service has no such user.
func (c *Client) DeletePrincipal(ctx context.Context, principalID string) error {
	req, err := c.newAdminRequest(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(principalID), nil)
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrPrincipalNotFound, apiErr)
		}
		return err
	}

	log.Debug().Str("principal_id", principalID).Msg("Deleted principal")

	return nil
}

// ResolveToken returns the principal that owns a session credential.
// Returns ErrInvalidToken if the identity service rejects it.
func (c *Client) ResolveToken(ctx context.Context, token string) (*models.Principal, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.adminSecret)

	var user userResponse
	if err := c.do(req, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, apiErr)
		}
		return nil, err
	}

	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	return user.principal(), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newAdminRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.adminSecret)
	req.Header.Set("apikey", c.adminSecret)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode identity response: %w", err)
	}

	return nil
}

// errorBody covers the error shapes the identity service has used across versions.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.Code = body.ErrorCode
	for _, msg := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Code == "" && body.Error != "" && body.Error != apiErr.Message {
		apiErr.Code = body.Error
	}

	return apiErr
}

func isDuplicateEmail(e *APIError) bool {
	switch e.Code {
	case "email_exists", "user_already_exists":
		return true
	}
	if e.StatusCode != http.StatusUnprocessableEntity && e.StatusCode != http.StatusConflict {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already been registered") || strings.Contains(msg, "already exists")
}
