// AngelaMos | 2026
// client_test.go

package assistant

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.AssistantConfig{
		BaseURL:    srv.URL,
		APIKey:     "sk-test",
		Model:      "test-model",
		MaxRetries: 2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const completionBody = `{"choices":[{"message":{"role":"assistant","content":"  Release on a Friday.  "}}]}`

func TestCompleteSendsModelAndMessages(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, completionBody)
	})

	reply, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "When should I release?"}},
		JSON:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Release on a Friday.", reply)
	assert.Equal(t, "test-model", payload["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, payload["response_format"])
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"message":"overloaded"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody)
	})

	reply, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Release on a Friday.", reply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model"}}`)
	})

	_, err := client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Contains(t, err.Error(), "bad model")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteUnconfigured(t *testing.T) {
	client := NewClient(config.AssistantConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, core.ErrUnavailable)
}
