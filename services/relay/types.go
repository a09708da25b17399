package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-gateway/routing"
)

// ChatCompletionRequest is the caller-supplied payload for
// POST /v1/chat/completions. Every optional tuning field is a pointer so
// "the caller set it" and "the caller omitted it" are distinct states; an
// omitted field must never reach the backend as an explicit default, since
// backends assign their own defaults. Messages are kept as raw JSON so their
// shape passes through the gateway unaltered.
type ChatCompletionRequest struct {
	Model    string            `json:"model,omitempty"`
	Messages []json.RawMessage `json:"messages" validate:"required,min=1"`
	Stream   bool              `json:"stream,omitempty"`

	Temperature         *float64 `json:"temperature,omitempty"`
	TopP                *float64 `json:"top_p,omitempty"`
	MaxTokens           *int     `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int     `json:"max_completion_tokens,omitempty"`
	PresencePenalty     *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64 `json:"frequency_penalty,omitempty"`

	Tools      []json.RawMessage `json:"tools,omitempty"`
	ToolChoice json.RawMessage   `json:"tool_choice,omitempty"`
}

// OutboundRequest is the normalized backend-bound payload. Optional fields
// are present only when the caller supplied them.
type OutboundRequest struct {
	Model    string            `json:"model"`
	Messages []json.RawMessage `json:"messages"`
	Stream   bool              `json:"stream,omitempty"`

	Temperature         *float64 `json:"temperature,omitempty"`
	TopP                *float64 `json:"top_p,omitempty"`
	MaxTokens           *int     `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int     `json:"max_completion_tokens,omitempty"`
	PresencePenalty     *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64 `json:"frequency_penalty,omitempty"`

	Tools      []json.RawMessage `json:"tools,omitempty"`
	ToolChoice json.RawMessage   `json:"tool_choice,omitempty"`
}

// Session is the transient per-request relay state. It lives exactly as long
// as the relay, is never shared across requests, and the cursor is used for
// logging only, not for resumption.
type Session struct {
	ID         uuid.UUID
	Model      string
	Endpoint   routing.Endpoint
	Credential string
	StartTime  time.Time
	Cursor     int
}

// completionEnvelope is the minimal view of a backend completion object the
// gateway inspects for logging; the full body is forwarded byte-for-byte.
type completionEnvelope struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// toolCall is a structured invocation request returned by a backend
type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// finishReasonToolCalls is the finish_reason signalling a tool invocation
const finishReasonToolCalls = "tool_calls"
