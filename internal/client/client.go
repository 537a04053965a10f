// Package client は Todo API を呼び出す HTTP クライアントです。
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

	"go-todo-app/internal/models"
)

// StatusError は API が 2xx 以外を返した場合のエラーです。
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client は Todo API 用の JSON クライアントです。
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New は baseURL (例: http://localhost:8080) に対するクライアントを作成します。
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// List は GET /api/todos を呼び出します。
func (c *Client) List(ctx context.Context) ([]models.Todo, error) {
	var todos []models.Todo
	if err := c.do(ctx, http.MethodGet, "/api/todos", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Create は POST /api/todos を呼び出し、サーバーが採番したTodoを返します。
func (c *Client) Create(ctx context.Context, title string, description *string) (models.Todo, error) {
	var created models.Todo
	req := models.CreateTodoRequest{Title: title, Description: description}
	if err := c.do(ctx, http.MethodPost, "/api/todos", req, &created); err != nil {
		return models.Todo{}, err
	}
	return created, nil
}

// MarkDone は PATCH /api/todos/{id} を呼び出します。
func (c *Client) MarkDone(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/todos/"+url.PathEscape(id), nil, nil)
}

// Delete は DELETE /api/todos/{id} を呼び出します。
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/todos/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("could not decode response: %w", err)
		}
	}
	return nil
}
