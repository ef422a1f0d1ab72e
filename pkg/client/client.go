// Package client is the Go client for the EduShield API. It wraps the
// REST surface and drives the session state machine UIs hang their
// routing decisions on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/rbac"
)

var (
	// ErrUnauthenticated is returned when the server answers 401. The
	// client never follows a redirect on it; surfacing the state so the
	// caller can route to sign-in is the whole contract.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the server answers 403
	ErrForbidden = errors.New("forbidden")

	// ErrTransient is returned for 5xx answers and transport failures
	ErrTransient = errors.New("transient fetch failure")
)

// Client is an HTTP client for the EduShield API
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithToken seeds the client with an existing session token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates an API client for the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			// 401 is an answer, not a detour; never chase redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the bearer token used for subsequent requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	TotalData  *int64          `json:"total_data"`
	TotalPages *int64          `json:"total_pages"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, apiError(resp.Body))
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, apiError(resp.Body))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server answered %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("request failed (%d): %s", resp.StatusCode, apiError(resp.Body))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func apiError(body io.Reader) string {
	var e errorBody
	if err := json.NewDecoder(body).Decode(&e); err != nil || e.Error == "" {
		return "no error detail"
	}
	return e.Error
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the outcome of a successful sign-in
type LoginResult struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Login signs in and installs the returned token on the client
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", loginRequest{Email: email, Password: password}, &result); err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

// Logout revokes the session and clears the stored token. The token is
// cleared even if the server call fails; local sign-out never blocks
// on the network.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	c.SetToken("")
	if err != nil && !errors.Is(err, ErrUnauthenticated) {
		return err
	}
	return nil
}

// Identity is the /auth/me payload: the user plus its effective
// permission set.
type Identity struct {
	User        *auth.User        `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
}

// Me fetches the current identity and permissions
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// MyPermissions fetches the caller's effective permission set
func (c *Client) MyPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	if err := c.do(ctx, http.MethodGet, "/api/v1/permissions/me", nil, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// MyMenus fetches the caller's navigation forest
func (c *Client) MyMenus(ctx context.Context) ([]*rbac.MenuNode, error) {
	var menus []*rbac.MenuNode
	if err := c.do(ctx, http.MethodGet, "/api/v1/menus/me", nil, &menus); err != nil {
		return nil, err
	}
	return menus, nil
}
