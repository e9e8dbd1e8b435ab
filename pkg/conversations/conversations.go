// Package conversations is the client for conversation history:
// listing, saving and deleting past analysis sessions.
package conversations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Gateway issues authenticated requests. *session.Manager satisfies it.
type Gateway interface {
	Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error)
}

// Message is a single exchange within a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a stored analysis session.
type Conversation struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt string    `json:"created_at,omitempty"`
	UpdatedAt string    `json:"updated_at,omitempty"`
}

// Config holds conversations client configuration.
type Config struct {
	// BaseURL is the auth-side API base.
	BaseURL string

	// Gateway issues the authenticated calls. Required.
	Gateway Gateway
}

// Client calls the conversation endpoints.
type Client struct {
	baseURL string
	gateway Gateway
}

// New creates a conversations client.
func New(cfg Config) (*Client, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	return &Client{baseURL: cfg.BaseURL, gateway: cfg.Gateway}, nil
}

// List returns all stored conversations.
func (c *Client) List(ctx context.Context) ([]Conversation, error) {
	resp, err := c.gateway.Do(ctx, http.MethodGet, c.baseURL+"/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out []Conversation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out, nil
}

// Save stores a conversation and returns the stored copy.
func (c *Client) Save(ctx context.Context, conv Conversation) (*Conversation, error) {
	body, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}

	resp, err := c.gateway.Do(ctx, http.MethodPost, c.baseURL+"/conversations", bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var saved Conversation
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return nil, fmt.Errorf("decode saved conversation: %w", err)
	}
	return &saved, nil
}

// Delete removes a conversation by ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("conversation id is required")
	}

	resp, err := c.gateway.Do(ctx, http.MethodDelete, c.baseURL+"/conversations/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("conversation request failed: status %d", resp.StatusCode)
}
