package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/llm-gateway/middleware"
	"github.com/upb/llm-gateway/routing"
	"github.com/upb/llm-gateway/services/relay"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// RelayEngine is the handler-facing slice of the relay engine
type RelayEngine interface {
	Complete(ctx context.Context, credential string, req *relay.ChatCompletionRequest) ([]byte, error)
	Stream(ctx context.Context, credential string, req *relay.ChatCompletionRequest) (*relay.Stream, error)
}

// ChatHandler serves the OpenAI-compatible completion and model endpoints
type ChatHandler struct {
	engine RelayEngine
	table  *routing.Table
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(engine RelayEngine, table *routing.Table, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		table:  table,
		logger: logger,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions. The response is the
// backend's, unchanged in shape: a single JSON object for unary calls, a
// text/event-stream of the backend's chunks plus a final [DONE] for streams.
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	credential := middleware.GetCredentialFromContext(ctx)

	var req relay.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		WriteValidationError(w, err, h.logger)
		return
	}

	h.logger.Debug("relaying chat completion",
		zap.String("request_id", requestID),
		zap.String("model", req.Model),
		zap.Bool("stream", req.Stream))

	if req.Stream {
		h.relayStream(w, r, credential, &req, requestID)
		return
	}

	body, err := h.engine.Complete(ctx, credential, &req)
	if err != nil {
		h.logger.Warn("unary relay failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write relay response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// relayStream drains a streaming relay into the caller's connection
func (h *ChatHandler) relayStream(w http.ResponseWriter, r *http.Request, credential string, req *relay.ChatCompletionRequest, requestID string) {
	stream, err := h.engine.Stream(r.Context(), credential, req)
	if err != nil {
		// nothing has been forwarded yet; a plain error response is still possible
		h.logger.Warn("failed to open stream",
			zap.String("request_id", requestID),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing",
			zap.String("request_id", requestID))
		_ = utils.WriteInternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := stream.Run(r.Context(), &sseWriter{w: w, flusher: flusher}); err != nil {
		// headers are out; the stream already carries its terminal error event
		h.logger.Warn("streaming relay ended with error",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// sseWriter frames relay events as server-sent events and flushes each one
// immediately, so no event waits behind the next
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) WriteEvent(data []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// modelList is the response shape of GET /v1/models
type modelList struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// HandleListModels handles GET /v1/models, listing every routable model.
// Created is the response time, not a stored value.
func (h *ChatHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()

	models := h.table.Models()
	list := modelList{
		Object: "list",
		Data:   make([]modelInfo, 0, len(models)),
	}
	for _, model := range models {
		list.Data = append(list.Data, modelInfo{
			ID:      model,
			Object:  "model",
			Created: now,
			OwnedBy: "system",
		})
	}

	if err := utils.WriteJSON(w, http.StatusOK, list); err != nil {
		h.logger.Error("failed to write model list", zap.Error(err))
	}
}
