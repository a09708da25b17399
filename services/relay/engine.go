package relay

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-gateway/internal/observability"
	"github.com/upb/llm-gateway/routing"
	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

// EventWriter is the downstream half of a streaming relay: each payload
// handed to WriteEvent must reach the caller before the next one is produced.
type EventWriter interface {
	WriteEvent(data []byte) error
}

// Engine drives a relay from routing resolution to the last byte written.
// Unary calls pass the backend's body through unchanged; streaming calls pump
// events one at a time from the backend to the caller and append the
// gateway's own terminal event.
type Engine struct {
	table   *routing.Table
	client  *Client
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEngine creates a relay engine
func NewEngine(table *routing.Table, client *Client, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		table:   table,
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

// Complete relays a unary chat completion. The returned body is the
// backend's response byte-for-byte; tool-call inspection is a logging side
// effect only and never alters the payload.
func (e *Engine) Complete(ctx context.Context, credential string, req *ChatCompletionRequest) ([]byte, error) {
	session, outbound, err := e.dispatch(credential, req, false)
	if err != nil {
		return nil, err
	}

	body, err := e.client.Complete(ctx, session.Endpoint, session.Credential, outbound)
	if err != nil {
		e.observe(session, "error", err)
		return nil, err
	}

	e.inspectToolCalls(session, body)
	e.observe(session, "ok", nil)

	e.logger.Info("unary relay completed",
		zap.String("session_id", session.ID.String()),
		zap.String("model", session.Model),
		zap.String("backend", session.Endpoint.BaseURL),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(session.StartTime)))

	return body, nil
}

// Stream opens a streaming relay. Errors returned here happen before any
// event has been forwarded, so the caller can still receive a plain HTTP
// error response. Once a Stream is returned, Run must be called to drain it.
func (e *Engine) Stream(ctx context.Context, credential string, req *ChatCompletionRequest) (*Stream, error) {
	session, outbound, err := e.dispatch(credential, req, true)
	if err != nil {
		return nil, err
	}

	src, err := e.client.Stream(ctx, session.Endpoint, session.Credential, outbound)
	if err != nil {
		e.observe(session, "error", err)
		return nil, err
	}

	return &Stream{engine: e, session: session, src: src}, nil
}

// dispatch resolves the backend and normalizes the outbound payload
func (e *Engine) dispatch(credential string, req *ChatCompletionRequest, streaming bool) (*Session, *OutboundRequest, error) {
	model, endpoint, err := e.table.Resolve(req.Model)
	if err != nil {
		e.logger.Warn("no routing entry for model", zap.String("model", req.Model))
		return nil, nil, err
	}

	outbound, err := Normalize(req, model)
	if err != nil {
		return nil, nil, err
	}
	outbound.Stream = streaming

	session := &Session{
		ID:         uuid.New(),
		Model:      model,
		Endpoint:   endpoint,
		Credential: credential,
		StartTime:  time.Now(),
	}

	e.logger.Debug("dispatching relay",
		zap.String("session_id", session.ID.String()),
		zap.String("model", model),
		zap.String("backend", endpoint.BaseURL),
		zap.Bool("streaming", streaming))

	return session, outbound, nil
}

// inspectToolCalls records requested tool invocations from a unary result
func (e *Engine) inspectToolCalls(session *Session, body []byte) {
	var envelope completionEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Choices) == 0 {
		return
	}

	choice := envelope.Choices[0]
	if choice.FinishReason != finishReasonToolCalls {
		return
	}

	for _, call := range choice.Message.ToolCalls {
		e.logger.Info("backend requested tool invocation",
			zap.String("session_id", session.ID.String()),
			zap.String("tool_call_id", call.ID),
			zap.String("tool_name", call.Function.Name),
			zap.String("arguments", call.Function.Arguments))
	}
}

func (e *Engine) observe(session *Session, outcome string, err error) {
	if err != nil {
		outcome = string(services.KindOf(err))
	}
	e.metrics.ObserveRequest(session.Model, session.Endpoint.BaseURL, outcome, time.Since(session.StartTime))
}

// Stream is one open streaming relay: a single-producer/single-consumer
// pipeline from the backend's event source to the caller's connection.
type Stream struct {
	engine  *Engine
	session *Session
	src     *EventSource
}

// streamItem carries one produced event or the producer's terminal error
type streamItem struct {
	data []byte
	err  error
}

// Run pumps every upstream event downstream in order and appends exactly one
// terminal event. The channel between producer and consumer holds a single
// event, so the gateway never buffers more than one event ahead of a stalled
// caller. Cancelling ctx (the caller disconnecting) aborts the upstream
// request; the producer goroutine stops whenever Run returns, whether or not
// ctx can be cancelled.
//
// If the upstream connection fails after events have been forwarded, Run
// writes one terminal error event instead of [DONE] and returns the fault;
// partial output already sent to the caller is left standing.
func (s *Stream) Run(ctx context.Context, w EventWriter) error {
	defer s.src.Close()

	e := s.engine
	events := make(chan streamItem, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(events)
		for {
			data, err := s.src.Next()
			if err != nil {
				if err != io.EOF {
					select {
					case events <- streamItem{err: err}:
					case <-done:
					}
				}
				return
			}
			select {
			case events <- streamItem{data: data}:
			case <-done:
				return
			}
		}
	}()

	for item := range events {
		if item.err != nil {
			if ctx.Err() != nil {
				// the caller cancelled; the upstream fault is our own teardown
				e.observe(s.session, "caller_disconnect", nil)
				e.logger.Warn("caller disconnected mid-stream",
					zap.String("session_id", s.session.ID.String()),
					zap.Int("events_forwarded", s.session.Cursor))
				return ctx.Err()
			}

			e.observe(s.session, "error", item.err)
			e.logger.Error("upstream stream failed mid-relay",
				zap.String("session_id", s.session.ID.String()),
				zap.Int("events_forwarded", s.session.Cursor),
				zap.Error(item.err))
			_ = w.WriteEvent(terminalErrorEvent(item.err))
			return item.err
		}

		if err := w.WriteEvent(item.data); err != nil {
			// caller is gone; returning tears down the producer
			e.observe(s.session, "caller_disconnect", nil)
			e.logger.Warn("caller disconnected mid-stream",
				zap.String("session_id", s.session.ID.String()),
				zap.Int("events_forwarded", s.session.Cursor),
				zap.Error(err))
			return err
		}

		s.session.Cursor++
		e.metrics.AddStreamEvent(s.session.Model)
		s.logDelta(item.data)
	}

	if err := w.WriteEvent([]byte(doneMarker)); err != nil {
		return err
	}

	e.observe(s.session, "ok", nil)
	e.logger.Info("streaming relay completed",
		zap.String("session_id", s.session.ID.String()),
		zap.String("model", s.session.Model),
		zap.Int("events_forwarded", s.session.Cursor),
		zap.Duration("latency", time.Since(s.session.StartTime)))

	return nil
}

// logDelta logs the chunk's delta text fragment as it passes through; the
// parse runs only when debug logging is enabled.
func (s *Stream) logDelta(data []byte) {
	entry := s.engine.logger.Check(zap.DebugLevel, "forwarded stream event")
	if entry == nil {
		return
	}

	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	delta := ""
	if err := json.Unmarshal(data, &chunk); err == nil && len(chunk.Choices) > 0 {
		delta = chunk.Choices[0].Delta.Content
	}

	entry.Write(
		zap.String("session_id", s.session.ID.String()),
		zap.Int("cursor", s.session.Cursor),
		zap.String("delta", delta))
}

// terminalErrorEvent builds the payload of the error event that ends a
// stream which failed after partial output was already forwarded
func terminalErrorEvent(err error) []byte {
	kind := services.KindOf(err)
	message := "stream interrupted"
	if gwErr, ok := services.AsGatewayError(err); ok {
		message = gwErr.Message
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"type":    string(kind),
			"message": message,
		},
	})
	return payload
}
