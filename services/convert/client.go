// Package convert talks to the external file-to-markdown converter service.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

const toMarkdownPath = "/to_markdown"

// Converter turns raw document bytes into markdown text. The gateway treats
// conversion as one blocking call against an external collaborator.
type Converter interface {
	Convert(ctx context.Context, filename string, content []byte) (string, error)
}

// Client is the HTTP implementation of Converter
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a converter client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Convert uploads the file to the converter and returns the markdown text
func (c *Client) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", services.NewInternalError("failed to build conversion request", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", services.NewInternalError("failed to build conversion request", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.NewInternalError("failed to build conversion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+toMarkdownPath, &body)
	if err != nil {
		return "", services.NewInternalError("failed to build conversion request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.NewTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.NewTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("conversion failed",
			zap.String("filename", filename),
			zap.Int("status", resp.StatusCode))
		return "", services.NewInternalError("file conversion failed: "+strings.TrimSpace(string(respBody)), nil)
	}

	var result struct {
		Markdown string `json:"markdown"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", services.NewInternalError("invalid converter response", err)
	}

	return result.Markdown, nil
}
