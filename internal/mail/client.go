package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/splitbill/splitbill-server/internal/config"
)

// Message is a mail message as returned by the provider API
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to,omitempty"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet,omitempty"`
	Body       string    `json:"body,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Client is the mail provider API surface used by the server
type Client interface {
	// ListMessages searches the inbox with a provider query string
	ListMessages(ctx context.Context, token, query string, max int) ([]Message, error)
	// GetMessage fetches one message with its full body
	GetMessage(ctx context.Context, token, id string) (*Message, error)
	// SendMessage sends a plain-text message from the token owner's address
	SendMessage(ctx context.Context, token, to, subject, body string) error
}

// HTTPClient talks to a Gmail-style REST mail API
type HTTPClient struct {
	base       string
	fromName   string
	httpClient *http.Client
}

// NewHTTPClient creates a mail API client
func NewHTTPClient(cfg *config.MailConfig) *HTTPClient {
	return &HTTPClient{
		base:     cfg.APIBase,
		fromName: cfg.FromName,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ListMessages searches the inbox
func (c *HTTPClient) ListMessages(ctx context.Context, token, query string, max int) ([]Message, error) {
	u := fmt.Sprintf("%s/messages?q=%s&maxResults=%s",
		c.base, url.QueryEscape(query), strconv.Itoa(max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("list messages: mail API returned %d", resp.StatusCode)
	}

	var result struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}

	return result.Messages, nil
}

// GetMessage fetches one message
func (c *HTTPClient) GetMessage(ctx context.Context, token, id string) (*Message, error) {
	u := fmt.Sprintf("%s/messages/%s", c.base, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("message %s not found", id)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("get message: mail API returned %d", resp.StatusCode)
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	return &msg, nil
}

// SendMessage sends a plain-text message
func (c *HTTPClient) SendMessage(ctx context.Context, token, to, subject, body string) error {
	payload := map[string]string{
		"to":       to,
		"subject":  subject,
		"body":     body,
		"fromName": c.fromName,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	u := c.base + "/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("to", to).
			Msg("Mail send failed")
		return fmt.Errorf("send message: mail API returned %d", resp.StatusCode)
	}

	log.Debug().
		Str("to", to).
		Str("subject", subject).
		Msg("Mail sent")

	return nil
}
