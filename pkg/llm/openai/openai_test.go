package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/pkg/types"
)

// sseServer serves a canned chat-completions SSE stream and records the last
// request body.
func sseServer(t *testing.T, deltas []string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	lastBody := make(map[string]interface{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"role":"assistant","content":""}}]}`+"\n\n")
		for _, d := range deltas {
			chunk := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]string{"content": d}},
				},
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func TestComplete_AccumulatesStream(t *testing.T) {
	srv, _ := sseServer(t, []string{"BUI", "LD"})
	provider, err := NewProvider("test-key", WithBaseURL(srv.URL), WithModel("test-model"))
	require.NoError(t, err)

	msg, err := provider.Complete(context.Background(), []*types.Message{
		{Role: types.RoleUser, Content: "classify this"},
	})
	require.NoError(t, err)

	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, "BUILD", msg.Content)
}

func TestStreamCompletion_EmitsDeltas(t *testing.T) {
	srv, _ := sseServer(t, []string{"hello", " world"})
	provider, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	stream, err := provider.StreamCompletion(context.Background(), []*types.Message{
		{Role: types.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)

	var content string
	finished := false
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Finished {
			finished = true
		}
	}
	assert.Equal(t, "hello world", content)
	assert.True(t, finished)
}

func TestSendRequest_IncludesModelAndTemperature(t *testing.T) {
	srv, lastBody := sseServer(t, []string{"ok"})
	provider, err := NewProvider("test-key",
		WithBaseURL(srv.URL),
		WithModel("gpt-4o-mini"),
		WithTemperature(0.1),
	)
	require.NoError(t, err)

	_, err = provider.Complete(context.Background(), []*types.Message{
		{Role: types.RoleSystem, Content: "be terse"},
		{Role: types.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", (*lastBody)["model"])
	assert.Equal(t, 0.1, (*lastBody)["temperature"])
	assert.Equal(t, true, (*lastBody)["stream"])
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("")
	assert.Error(t, err)
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	provider, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = provider.Complete(context.Background(), []*types.Message{
		{Role: types.RoleUser, Content: "hi"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
