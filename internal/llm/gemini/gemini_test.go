package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantumtrader/quantumtrader/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "")
	assert.Error(t, err)
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("test-key", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-1.5-flash", p.model)
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
		require.NotNil(t, req.SystemInstruction)

		resp := geminiResponse{}
		resp.Candidates = []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{
			{
				Content:      geminiContent{Role: "model", Parts: []geminiPart{{Text: `{"action":"BUY"}`}}},
				FinishReason: "STOP",
			},
		}
		resp.UsageMetadata.PromptTokenCount = 12
		resp.UsageMetadata.CandidatesTokenCount = 6
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := New("test-key", "test-model")
	require.NoError(t, err)
	p.baseURL = server.URL

	resp, err := p.Complete(context.Background(), llm.Request{
		System:   "you are a test",
		Prompt:   "analyze",
		JSONMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"action":"BUY"}`, resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, "STOP", resp.FinishReason)
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p, err := New("bad-key", "test-model")
	require.NoError(t, err)
	p.baseURL = server.URL

	_, err = p.Complete(context.Background(), llm.Request{Prompt: "analyze"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
