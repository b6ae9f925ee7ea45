package story

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerator_SendsPromptAndBudget(t *testing.T) {
	var captured openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Once upon a time."}}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("sk-test", srv.URL, "gpt-4o-mini", time.Second)
	out, err := gen.GenerateText("Write a story.", 300)
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time.", out)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 300, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "Write a story.", captured.Messages[1].Content)
}

func TestOpenAIGenerator_ErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("sk-test", srv.URL, "gpt-4o-mini", time.Second)
	_, err := gen.GenerateText("prompt", 300)
	require.Error(t, err)
}

func TestOpenAIGenerator_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("sk-test", srv.URL, "gpt-4o-mini", time.Second)
	_, err := gen.GenerateText("prompt", 300)
	require.Error(t, err)
}
