package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/routing"
	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

func outbound(t *testing.T, model string) *OutboundRequest {
	t.Helper()
	return &OutboundRequest{
		Model:    model,
		Messages: []json.RawMessage{userMessage(t, "hi")},
	}
}

func TestClientCompleteForwardsBodyVerbatim(t *testing.T) {
	upstream := `{"id":"chatcmpl-1","choices":[{"message":{"content":"hello"},"finish_reason":"stop"}]}`

	var gotAuth, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstream))
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())
	body, err := client.Complete(context.Background(), routing.Endpoint{BaseURL: server.URL}, "sk-test", outbound(t, "llama3.3:70b"))
	require.NoError(t, err)

	assert.Equal(t, upstream, string(body))
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.JSONEq(t, `{"model":"llama3.3:70b","messages":[{"role":"user","content":"hi"}]}`, string(gotBody))
}

func TestClientCompleteOmitsAuthorizationWithoutCredential(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())
	_, err := client.Complete(context.Background(), routing.Endpoint{BaseURL: server.URL}, "", outbound(t, "llama3.3:70b"))
	require.NoError(t, err)
	assert.False(t, sawAuth)
}

func TestClientCompletePreservesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited, slow down"}}`))
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())
	_, err := client.Complete(context.Background(), routing.Endpoint{BaseURL: server.URL}, "", outbound(t, "llama3.3:70b"))
	require.Error(t, err)

	gwErr, ok := services.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, services.ErrorKindBackend, gwErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, gwErr.Status)
	assert.Equal(t, "rate limited, slow down", gwErr.Message)
}

func TestClientCompleteTransportFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := NewClient(zap.NewNop())
	_, err := client.Complete(context.Background(), routing.Endpoint{BaseURL: server.URL}, "", outbound(t, "llama3.3:70b"))
	assert.True(t, services.IsTransportError(err))
}

func TestClientCompleteUnbuildableRequestIsTransportFault(t *testing.T) {
	// a control character in the base URL makes the outbound request
	// unbuildable; faults on the relay path belong to the 502 class
	client := NewClient(zap.NewNop())
	_, err := client.Complete(context.Background(), routing.Endpoint{BaseURL: "http://127.0.0.1\x00"}, "", outbound(t, "llama3.3:70b"))
	require.Error(t, err)
	assert.True(t, services.IsTransportError(err))
}

func TestClientStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"n\":1}\n\n")
		io.WriteString(w, ": heartbeat comment\n\n")
		io.WriteString(w, "data: {\"n\":2}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())
	src, err := client.Stream(context.Background(), routing.Endpoint{BaseURL: server.URL}, "", outbound(t, "llama3.3:70b"))
	require.NoError(t, err)
	defer src.Close()

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(first))

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, string(second))

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestClientStreamEndsOnConnectionClose(t *testing.T) {
	// a backend that closes without [DONE] still ends the sequence cleanly
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"n\":1}\n\n")
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())
	src, err := client.Stream(context.Background(), routing.Endpoint{BaseURL: server.URL}, "", outbound(t, "llama3.3:70b"))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestClientStreamRejectedBeforeFirstEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())
	_, err := client.Stream(context.Background(), routing.Endpoint{BaseURL: server.URL}, "bad-key", outbound(t, "llama3.3:70b"))
	require.Error(t, err)

	gwErr, ok := services.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, gwErr.Status)
	assert.Equal(t, "invalid api key", gwErr.Message)
}

func TestUpstreamErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"flat message", `{"message":"boom"}`, "boom"},
		{"openai envelope", `{"error":{"message":"boom"}}`, "boom"},
		{"unparseable body", "plain text failure\n", "plain text failure"},
		{"empty body", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, upstreamErrorMessage([]byte(tc.body)))
		})
	}
}
