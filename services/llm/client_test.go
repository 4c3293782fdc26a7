package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent() models.Event {
	return models.NewFTPClearCreds(
		time.Date(2025, 3, 14, 8, 46, 53, 0, time.UTC),
		models.FiveTuple{SrcIP: "10.0.0.5", SrcPort: 51234, DstIP: "198.51.100.7", DstPort: 21})
}

func newTestClient(url string) *OllamaClient {
	return NewOllamaClient(OllamaConfig{
		Model:   "llama3",
		BaseURL: url,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestGenerateSendsModelAndPrompt(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"response": "  analysis text  "})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "why is this bad")
	require.NoError(t, err)
	assert.Equal(t, "analysis text", out, "completion is trimmed")
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "why is this bad", got.Prompt)
	assert.False(t, got.Stream)
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestGenerateMissingCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "oom"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing completion")
}

func TestAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.True(t, newTestClient(server.URL).Available(context.Background()))

	server.Close()
	assert.False(t, newTestClient(server.URL).Available(context.Background()))
}

func TestExplainEventEmbedsEventJSON(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Prompt
		json.NewEncoder(w).Encode(map[string]string{"response": "triage"})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).ExplainEvent(context.Background(), sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "triage", out)
	assert.Contains(t, prompt, `"ftp.clear_creds"`)
	assert.Contains(t, prompt, "198.51.100.7")
	assert.Contains(t, prompt, "Impact Assessment")
}

func TestSummarizePromptListsEvents(t *testing.T) {
	events := []models.Event{sampleEvent(), models.NewTelnetClearLogin(
		time.Now(), models.FiveTuple{SrcIP: "10.0.0.9", SrcPort: 40000, DstIP: "198.51.100.2", DstPort: 23})}

	prompt, err := summaryPrompt(events)
	require.NoError(t, err)
	assert.Contains(t, prompt, "ftp.clear_creds")
	assert.Contains(t, prompt, "telnet.clear_login")
	assert.Contains(t, prompt, "Executive Summary")
}
