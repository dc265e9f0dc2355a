// Package client talks to the comment API over HTTP.
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

	"chronicle/discuss/internal/comment"
)

// APIError is a non-2xx response from the comment API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("comment api: %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

func (c *Client) List(ctx context.Context, key comment.Key) ([]comment.Comment, error) {
	var out struct {
		Items []comment.Comment `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, commentsPath(key), nil, &out); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if out.Items == nil {
		out.Items = []comment.Comment{}
	}
	return out.Items, nil
}

func (c *Client) Create(ctx context.Context, input comment.CreateInput) (comment.Comment, error) {
	var out comment.Comment
	if err := c.do(ctx, http.MethodPost, commentsPath(input.Key()), input, &out); err != nil {
		return comment.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, key comment.Key, id string, input comment.UpdateInput) (comment.Comment, error) {
	var out comment.Comment
	if err := c.do(ctx, http.MethodPatch, commentsPath(key)+"/"+url.PathEscape(id), input, &out); err != nil {
		return comment.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, key comment.Key, id string) error {
	if err := c.do(ctx, http.MethodDelete, commentsPath(key)+"/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// Identity is the caller as seen by the API.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	Role          string `json:"role"`
}

// Whoami resolves the client's token. An unknown or missing token is not an
// error and yields Authenticated=false.
func (c *Client) Whoami(ctx context.Context) (Identity, error) {
	var out Identity
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &out); err != nil {
		return Identity{}, fmt.Errorf("resolve session: %w", err)
	}
	return out, nil
}

// SearchHit is one row of a search response.
type SearchHit struct {
	ID      string `json:"id"`
	Scope   string `json:"scope"`
	ItemID  string `json:"itemId"`
	Snippet string `json:"snippet"`
	Author  string `json:"author"`
}

func (c *Client) Search(ctx context.Context, query string, key comment.Key) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	if key.Scope != "" {
		params.Set("scope", key.Scope)
	}
	if key.ItemID != "" {
		params.Set("item", key.ItemID)
	}
	var out struct {
		Results []SearchHit `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("search comments: %w", err)
	}
	return out.Results, nil
}

func commentsPath(key comment.Key) string {
	return fmt.Sprintf("/api/scopes/%s/items/%s/comments", url.PathEscape(key.Scope), url.PathEscape(key.ItemID))
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
