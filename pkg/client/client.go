package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/todo/pkg/domain"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 30 * time.Second

// TodoFilter narrows a todo listing. Zero value lists everything.
type TodoFilter struct {
	Description string
	Completed   *bool
}

func (f TodoFilter) query() string {
	params := url.Values{}
	if d := strings.TrimSpace(f.Description); d != "" {
		params.Set("description", d)
	}
	if f.Completed != nil {
		params.Set("completed", strconv.FormatBool(*f.Completed))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// Client is the todo API client. It is safe for concurrent use; the token is
// fixed per Client, so a new login means a new Client (see WithToken).
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a new API client.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Auth ---

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	var u domain.User
	if err := c.post(ctx, "/auth/register", creds, &u); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return &u, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := c.post(ctx, "/auth/login", creds, &resp); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	if resp.SessionToken == "" {
		return nil, fmt.Errorf("client.Login: response missing session_token")
	}
	return &resp, nil
}

// Logout invalidates the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}

// --- Todos ---

// ListTodos returns the caller's todos in server order.
func (c *Client) ListTodos(ctx context.Context, f TodoFilter) ([]domain.Todo, error) {
	var todos []domain.Todo
	if err := c.get(ctx, "/api/todos"+f.query(), &todos); err != nil {
		return nil, fmt.Errorf("client.ListTodos: %w", err)
	}
	if todos == nil {
		todos = []domain.Todo{}
	}
	return todos, nil
}

// CountTodos returns how many todos match f.
func (c *Client) CountTodos(ctx context.Context, f TodoFilter) (int64, error) {
	var n int64
	if err := c.get(ctx, "/api/todos/count"+f.query(), &n); err != nil {
		return 0, fmt.Errorf("client.CountTodos: %w", err)
	}
	return n, nil
}

// GetTodo fetches a single todo by ID.
func (c *Client) GetTodo(ctx context.Context, id domain.ID) (*domain.Todo, error) {
	var todo domain.Todo
	if err := c.get(ctx, "/api/todos/"+url.PathEscape(id.String()), &todo); err != nil {
		return nil, fmt.Errorf("client.GetTodo: %w", err)
	}
	return &todo, nil
}

// CreateTodo adds a todo with the given description.
func (c *Client) CreateTodo(ctx context.Context, description string) (*domain.Todo, error) {
	var created domain.Todo
	if err := c.post(ctx, "/api/todos", map[string]string{"description": description}, &created); err != nil {
		return nil, fmt.Errorf("client.CreateTodo: %w", err)
	}
	return &created, nil
}

// CompleteTodo marks a todo complete.
func (c *Client) CompleteTodo(ctx context.Context, id domain.ID) error {
	if err := c.doRequest(ctx, http.MethodPut, "/api/todos/"+url.PathEscape(id.String())+"/complete", nil, nil); err != nil {
		return fmt.Errorf("client.CompleteTodo: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("api request", "method", method, "path", path, "request_id", reqID,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Body:       string(respBody),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}
