package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/config"
	"docextract/internal/llm"
	"docextract/internal/llm/claude"
	"docextract/internal/port"
)

func newTestClient(serverURL string) *claude.Client {
	cfg := &config.ModelProviderConfig{
		Provider: "claude",
		APIKey:   "test-claude-key",
	}
	return claude.NewClientWithEndpoint(cfg, serverURL)
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-claude-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, "system instruction", reqBody["system"])

		messages := reqBody["messages"].([]interface{})
		assert.Len(t, messages, 1)
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		assert.Len(t, content, 2)

		img := content[0].(map[string]interface{})
		assert.Equal(t, "image", img["type"])
		source := img["source"].(map[string]interface{})
		assert.Equal(t, "base64", source["type"])
		assert.Equal(t, "image/png", source["media_type"])
		assert.Equal(t, "iVBORw==", source["data"])

		text := content[1].(map[string]interface{})
		assert.Equal(t, "cue", text["text"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]interface{}{
				{"type": "text", "text": "```json\n"},
				{"type": "text", "text": `{"po_number":"PO-1"}` + "\n```"},
			},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Complete(context.Background(), port.VisionRequest{
		SystemPrompt: "system instruction",
		UserPrompt:   "cue",
		Image:        []byte{0x89, 'P', 'N', 'G'},
		ContentType:  "image/png",
	})

	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"po_number\":\"PO-1\"}\n```", resp.Text)
	assert.Equal(t, "claude", resp.Provider)
}

func TestClient_Complete_NoTextContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.VisionRequest{ContentType: "image/png"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestClient_Complete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`overloaded`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.VisionRequest{ContentType: "image/png"})

	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "claude", apiErr.Provider)
	assert.True(t, llm.IsRetryable(err))
}
