package relay

import (
	"github.com/upb/llm-gateway/services"
)

// Normalize assembles the backend-bound payload from the caller's request and
// the resolved model identifier. It is a pure transformation: optional tuning
// fields are copied over only when the caller set them, and tools are
// forwarded only together with tool_choice. Tools without a choice are
// dropped, mirroring the upstream trigger asymmetry on purpose.
func Normalize(req *ChatCompletionRequest, resolvedModel string) (*OutboundRequest, error) {
	if len(req.Messages) == 0 {
		return nil, services.NewInvalidRequestError("messages must not be empty")
	}

	out := &OutboundRequest{
		Model:    resolvedModel,
		Messages: req.Messages,
		Stream:   req.Stream,

		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxTokens:           req.MaxTokens,
		MaxCompletionTokens: req.MaxCompletionTokens,
		PresencePenalty:     req.PresencePenalty,
		FrequencyPenalty:    req.FrequencyPenalty,
	}

	if len(req.ToolChoice) > 0 {
		out.Tools = req.Tools
		out.ToolChoice = req.ToolChoice
	}

	return out, nil
}
