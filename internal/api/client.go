package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/deepfinance/chat-client/internal/models"
	"go.uber.org/zap"
)

// Client talks to the directory service: authentication plus thread
// listing, creation and history. It performs no retries; a failed call is
// reported to the caller and leaves no partial state behind.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type User struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Login exchanges credentials for a session token. The token is returned to
// the caller; it is not installed on the client automatically.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result); err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	if result.Token == "" {
		return LoginResult{}, fmt.Errorf("login: no token in response")
	}
	return result, nil
}

// ListThreads fetches all threads for the authenticated user, in server
// order. The order is authoritative; no client-side sorting happens.
func (c *Client) ListThreads(ctx context.Context) ([]models.Thread, error) {
	var threads []models.Thread
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &threads); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

// CreateThread creates a new thread seeded with a first message.
func (c *Client) CreateThread(ctx context.Context, initialMessage string) (models.Thread, error) {
	body := map[string]string{"initialMessage": initialMessage}

	var thread models.Thread
	if err := c.do(ctx, http.MethodPost, "/chats", body, &thread); err != nil {
		return models.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

// History fetches the message history of one thread, ascending.
func (c *Client) History(ctx context.Context, threadID string) ([]models.Message, error) {
	var messages []models.Message
	path := "/chats/" + url.PathEscape(threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("thread history: %w", err)
	}
	for i := range messages {
		messages[i].Status = models.StatusConfirmed
	}
	return messages, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Directory request failed",
			zap.Error(err),
			zap.String("method", method),
			zap.String("path", path))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFrom(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorFrom extracts the optional {message} body the backend attaches to
// failed requests.
func (c *Client) errorFrom(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Message)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
