// Package transcribe calls an external speech-to-text HTTP service.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/koememo/koememo/internal/config"
)

// Client uploads recorded audio and returns the raw transcript text.
type Client struct {
	endpoint   string
	healthPath string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a transcription client from resolved configuration.
func NewClient(cfg config.TranscriberConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		healthPath: cfg.HealthPath,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
	}
}

// Language reports the configured transcription language tag.
func (c *Client) Language() string {
	return c.language
}

// Warmup probes the service health endpoint so the first real upload does
// not pay model cold-start latency.
func (c *Client) Warmup(ctx context.Context) error {
	if strings.TrimSpace(c.healthPath) == "" {
		return nil
	}

	url := strings.TrimRight(c.endpoint, "/") + c.healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcriber health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transcriber health check: HTTP %d", resp.StatusCode)
	}

	c.logger.Debug("transcriber warm", "endpoint", c.endpoint)
	return nil
}

// Transcribe uploads the WAV file at path and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	body, contentType, err := c.buildUpload(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcriber returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	text, err := decodeTranscript(resp.Header.Get("Content-Type"), respBody)
	if err != nil {
		return "", err
	}

	c.logger.Info("transcription complete",
		"file", filepath.Base(path),
		"chars", len([]rune(text)),
		"elapsed", time.Since(started).Round(time.Millisecond).String())
	return text, nil
}

func (c *Client) buildUpload(path string) (io.Reader, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio %q: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy audio into form: %w", err)
	}

	if c.language != "" {
		if err := writer.WriteField("language", c.language); err != nil {
			return nil, "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return nil, "", fmt.Errorf("write format field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// decodeTranscript accepts either a JSON object with a "text" field or a
// bare text body, matching the two response shapes whisper-style servers
// produce.
func decodeTranscript(contentType string, body []byte) (string, error) {
	if strings.Contains(contentType, "application/json") || bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", fmt.Errorf("decode transcription response: %w", err)
		}
		return payload.Text, nil
	}
	return string(body), nil
}
