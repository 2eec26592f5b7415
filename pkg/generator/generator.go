// Package generator drafts letter bodies through an OpenAI-compatible chat completions API.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultInitDelay  = time.Second
)

// ErrEmptyCompletion means the model answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Request is everything the model sees about a letter.
type Request struct {
	Title             string
	LetterType        string
	Priority          string
	SenderName        string
	SenderAddress     string
	RecipientName     string
	RecipientAddress  string
	Matter            string
	DesiredResolution string
}

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client calls the chat completions endpoint with retry on 429 and 5xx.
type Client struct {
	cfg        Config
	http       *http.Client
	maxRetries int
	initDelay  time.Duration
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: defaultMaxRetries,
		initDelay:  defaultInitDelay,
	}
}

// WithRetry overrides retry behaviour; mostly for tests.
func (c *Client) WithRetry(maxRetries int, initDelay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.initDelay = initDelay
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are a professional legal correspondence writer. Write a formal, firm and ` +
	`professional letter on attorney letterhead style. Use the facts given, do not invent facts, ` +
	`state the requested resolution and a reasonable deadline. Return only the letter body in Markdown.`

// GenerateLetter returns the drafted letter text.
func (c *Client) GenerateLetter(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("ai api key not configured")
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0.4,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.initDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)
			continue
		}
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("ai api error (%d)", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var out chatResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
			return "", ErrEmptyCompletion
		}
		return strings.TrimSpace(out.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// BuildPrompt renders the user message for a letter request.
func BuildPrompt(r Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Letter type: %s\n", r.LetterType)
	fmt.Fprintf(&b, "Subject: %s\n", r.Title)
	if r.Priority != "" {
		fmt.Fprintf(&b, "Urgency: %s\n", r.Priority)
	}
	fmt.Fprintf(&b, "\nFrom: %s\n%s\n", r.SenderName, r.SenderAddress)
	fmt.Fprintf(&b, "\nTo: %s\n%s\n", r.RecipientName, r.RecipientAddress)
	fmt.Fprintf(&b, "\nMatter:\n%s\n", r.Matter)
	if r.DesiredResolution != "" {
		fmt.Fprintf(&b, "\nRequested resolution:\n%s\n", r.DesiredResolution)
	}
	return b.String()
}
