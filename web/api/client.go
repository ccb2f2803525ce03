// Package api provides a client for the D-Secure backend REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dsecure/portal/internal/models"
)

// DefaultTimeout bounds every backend request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrMalformedEnvelope is returned when a response is not a valid
	// envelope or carries no data.
	ErrMalformedEnvelope = errors.New("malformed response envelope")
	// ErrUnauthorized is matched by envelope errors with a 401 or 403 status.
	ErrUnauthorized = errors.New("unauthorized")
)

// EnvelopeError is a failure reported by the backend, either as a non-2xx
// status or as success:false.
type EnvelopeError struct {
	Status  int
	Message string
}

func (e *EnvelopeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d)", e.Status)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Is reports auth failures as ErrUnauthorized.
func (e *EnvelopeError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// envelope is the backend response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) text() string {
	switch {
	case e.Error != "" && e.Message != "":
		return e.Error + ": " + e.Message
	case e.Error != "":
		return e.Error
	default:
		return e.Message
	}
}

// Client is an API client for the D-Secure backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithToken returns a new client with the specified auth token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		token:      strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")),
	}
}

// WithTimeout returns a new client whose requests time out after d.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Client{
		baseURL:    c.baseURL,
		httpClient: &http.Client{Timeout: d, Transport: c.httpClient.Transport},
		token:      c.token,
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Path returns the endpoint for kind in scope. By-email requests include
// the acting user's subusers.
func Path(kind models.Kind, scope models.Scope, email string) string {
	if scope == models.ScopeAll {
		return "/api/" + string(kind)
	}
	return "/api/" + string(kind) + "/by-email/" + url.PathEscape(email) + "?include_subusers=true"
}

// FetchLogs fetches system log entries.
func (c *Client) FetchLogs(ctx context.Context, scope models.Scope, email string) ([]models.SystemLogEntry, error) {
	return list[models.SystemLogEntry](ctx, c, models.KindLogs, scope, email)
}

// FetchCommands fetches issued commands.
func (c *Client) FetchCommands(ctx context.Context, scope models.Scope, email string) ([]models.CommandEntry, error) {
	return list[models.CommandEntry](ctx, c, models.KindCommands, scope, email)
}

// FetchSessions fetches login sessions.
func (c *Client) FetchSessions(ctx context.Context, scope models.Scope, email string) ([]models.SessionEntry, error) {
	return list[models.SessionEntry](ctx, c, models.KindSessions, scope, email)
}

func list[T any](ctx context.Context, c *Client, kind models.Kind, scope models.Scope, email string) ([]T, error) {
	var items []T
	if err := c.get(ctx, Path(kind, scope, email), &items); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", kind, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Ping checks that the backend answers HTTP. Any status below 500 counts
// as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return &EnvelopeError{Status: resp.StatusCode}
	}
	return nil
}

// get performs a GET request and unwraps the envelope's data into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && env.text() != "" {
			msg = env.text()
		}
		return &EnvelopeError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, decodeErr)
	}
	if !env.Success {
		return &EnvelopeError{Status: resp.StatusCode, Message: env.text()}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedEnvelope)
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
