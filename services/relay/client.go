package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/upb/llm-gateway/routing"
	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

const (
	chatCompletionsPath = "/chat/completions"

	// sseDataPrefix frames each event payload on the wire
	sseDataPrefix = "data:"

	// doneMarker is the terminal sentinel of an OpenAI-compatible stream
	doneMarker = "[DONE]"

	// maxEventSize bounds a single upstream SSE event
	maxEventSize = 1 << 20
)

// Client issues outbound HTTP calls to resolved backends. It is stateless and
// performs no retries: at most one backend side effect is attempted per
// caller request.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client. The underlying http.Client carries no
// request timeout: streams are open-ended and bounded only by the backend's
// behavior and the caller's connection lifetime.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Complete issues a unary chat completion and blocks until the backend
// returns a complete result. The returned body is the backend's response
// byte-for-byte. Non-2xx answers become a backend error preserving the
// upstream status and message; anything that prevents an answer at all
// becomes a transport fault.
func (c *Client) Complete(ctx context.Context, endpoint routing.Endpoint, credential string, req *OutboundRequest) ([]byte, error) {
	resp, err := c.post(ctx, endpoint, credential, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.NewTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.NewBackendError(resp.StatusCode, upstreamErrorMessage(body))
	}

	return body, nil
}

// Stream opens a streaming chat completion and returns a lazy, finite,
// non-restartable event source. Cancelling ctx aborts the upstream
// connection.
func (c *Client) Stream(ctx context.Context, endpoint routing.Endpoint, credential string, req *OutboundRequest) (*EventSource, error) {
	resp, err := c.post(ctx, endpoint, credential, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, services.NewBackendError(resp.StatusCode, upstreamErrorMessage(body))
	}

	return newEventSource(resp.Body), nil
}

func (c *Client) post(ctx context.Context, endpoint routing.Endpoint, credential string, req *OutboundRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, services.NewTransportError(fmt.Errorf("encode outbound request: %w", err))
	}

	url := strings.TrimRight(endpoint.BaseURL, "/") + chatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, services.NewTransportError(fmt.Errorf("build outbound request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if credential != "" {
		// the caller's bearer credential becomes this backend's own key
		httpReq.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.NewTransportError(err)
	}
	return resp, nil
}

// upstreamErrorMessage extracts the human-readable message from a backend
// error body, accepting both `{"message": ...}` and the OpenAI
// `{"error": {"message": ...}}` envelope. Unparseable bodies pass through raw
// so the backend's words are never lost.
func upstreamErrorMessage(body []byte) string {
	var flat struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Message != "" {
		return flat.Message
	}

	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}

	return strings.TrimSpace(string(body))
}

// EventSource produces the raw event payloads of one backend stream as the
// backend emits them. The sequence is finite and non-restartable: it ends
// when the backend closes the connection or emits its own terminal marker.
type EventSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newEventSource(body io.ReadCloser) *EventSource {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &EventSource{body: body, scanner: scanner}
}

// Next blocks until the backend emits the next event and returns its raw
// payload. It returns io.EOF when the stream is exhausted and a transport
// fault when the connection breaks mid-stream.
func (s *EventSource) Next() ([]byte, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if !bytes.HasPrefix(line, []byte(sseDataPrefix)) {
			continue
		}
		payload := bytes.TrimSpace(line[len(sseDataPrefix):])
		if len(payload) == 0 {
			continue
		}
		if string(payload) == doneMarker {
			return nil, io.EOF
		}
		// copy out of the scanner's reusable buffer
		event := make([]byte, len(payload))
		copy(event, payload)
		return event, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, services.NewTransportError(err)
	}
	return nil, io.EOF
}

// Close releases the upstream connection
func (s *EventSource) Close() error {
	return s.body.Close()
}
