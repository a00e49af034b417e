package shortlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIKeyHeader carries the apikey of the client.
const APIKeyHeader = "X-API-Key"

// Client represents a shortlink API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new shortlink API client authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User is a user as listed by the admin API.
type User struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Banned     bool      `json:"banned"`
	Links      int64     `json:"links"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedAgo string    `json:"created_ago"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
}

// UserList is a page of users.
type UserList struct {
	Data  []User `json:"data"`
	Total int64  `json:"total"`
	Limit int    `json:"limit"`
	Skip  int    `json:"skip"`
}

// Identity is the apikey and email of an account.
type Identity struct {
	APIKey  string   `json:"apikey"`
	Email   string   `json:"email"`
	Domains []string `json:"domains"`
}

// ListOptions selects a page of users.
type ListOptions struct {
	Limit  int
	Skip   int
	Search string
}

// CreateUserRequest is the body of a create request.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// EditUserRequest is the body of an edit request. Nil fields are left untouched.
type EditUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Banned   *bool   `json:"banned,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// APIError is returned for non 2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// doRequest performs an HTTP request and decodes a JSON response into out if it is non-nil.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	reqURL := c.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(bodyBytes, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// Me returns the identity of the authenticated account.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.doRequest(ctx, http.MethodGet, "/api/v2/users", nil, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ListUsers returns a page of users.
func (c *Client) ListUsers(ctx context.Context, opts ListOptions) (*UserList, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}

	var list UserList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v2/users/all", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateUser creates a new user.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*Identity, error) {
	var identity Identity
	if err := c.doRequest(ctx, http.MethodPost, "/api/v2/users/create", nil, req, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// EditUser updates the user with the given id.
func (c *Client) EditUser(ctx context.Context, id uint, req EditUserRequest) error {
	return c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/v2/users/%d", id), nil, req, nil)
}

// DeleteUser removes the user with the given id.
func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	return c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/v2/users/delete/%d", id), nil, nil, nil)
}

// DeleteSelf removes the authenticated account.
func (c *Client) DeleteSelf(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/api/v2/users/delete", nil, nil, nil)
}
