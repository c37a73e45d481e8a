// Package summarize calls an external chat-completions style service to
// condense a transcript into a short summary.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/koememo/koememo/internal/config"
)

// Client posts transcripts to a chat-completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKeyEnv  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a summarization client from resolved configuration.
func NewClient(cfg config.SummarizerConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKeyEnv:  cfg.APIKeyEnv,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize sends the transcript with the active profile instructions and
// returns the model's summary text.
func (c *Client) Summarize(ctx context.Context, instructions, transcript string) (string, error) {
	apiKey, err := c.resolveAPIKey()
	if err != nil {
		return "", err
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: transcript},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode summarization request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summarization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarization request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read summarization response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("summarizer returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode summarization response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("summarizer response contained no choices")
	}

	summary := strings.TrimSpace(decoded.Choices[0].Message.Content)
	c.logger.Info("summarization complete",
		"model", c.model,
		"chars", len([]rune(summary)),
		"elapsed", time.Since(started).Round(time.Millisecond).String())
	return summary, nil
}

func (c *Client) resolveAPIKey() (string, error) {
	if strings.TrimSpace(c.apiKeyEnv) == "" {
		return "", nil
	}
	key := strings.TrimSpace(os.Getenv(c.apiKeyEnv))
	if key == "" {
		return "", fmt.Errorf("summarizer credential env %s is not set", c.apiKeyEnv)
	}
	return key, nil
}
