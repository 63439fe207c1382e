package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdrag/internal/logger"
)

func testContext(t *testing.T) context.Context {
	return logger.ContextWithLogger(t.Context(), logger.NewLogger(logger.TestConfig()))
}

func newClient(t *testing.T, handler http.HandlerFunc) *Ollama {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	o, err := NewOllama(Options{URL: server.URL, Model: "test-embed", Retries: 2})
	require.NoError(t, err)
	return o
}

func TestOllama_Embed(t *testing.T) {
	t.Run("Should convert the embedding to float32", func(t *testing.T) {
		o := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embeddings", r.URL.Path)
			var req api.EmbeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-embed", req.Model)
			assert.Equal(t, "hello", req.Prompt)
			json.NewEncoder(w).Encode(api.EmbeddingResponse{Embedding: []float64{0.5, -1, 2}})
		})

		vector, err := o.Embed(testContext(t), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, -1, 2}, vector)
		assert.Equal(t, "test-embed", o.Model())
	})

	t.Run("Should retry server errors", func(t *testing.T) {
		var calls atomic.Int32
		o := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, `{"error":"busy"}`, http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(api.EmbeddingResponse{Embedding: []float64{1}})
		})

		vector, err := o.Embed(testContext(t), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, vector)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("Should not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		o := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		})

		_, err := o.Embed(testContext(t), "hello")
		assert.ErrorContains(t, err, "model not found")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should reject empty embeddings", func(t *testing.T) {
		o := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(api.EmbeddingResponse{})
		})
		_, err := o.Embed(testContext(t), "hello")
		assert.ErrorIs(t, err, ErrEmptyEmbedding)
	})
}

func TestOllama_EnsureModels(t *testing.T) {
	t.Run("Should pull only missing models", func(t *testing.T) {
		var pulled []string
		o := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/tags":
				json.NewEncoder(w).Encode(api.ListResponse{Models: []api.ListModelResponse{
					{Name: "present:latest", Model: "present:latest"},
				}})
			case "/api/pull":
				var req api.PullRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				pulled = append(pulled, req.Model)
				fmt.Fprintln(w, `{"status":"downloading","total":10,"completed":5}`)
				fmt.Fprintln(w, `{"status":"success"}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		require.NoError(t, o.EnsureModels(testContext(t), "present", "missing"))
		assert.Equal(t, []string{"missing"}, pulled)
	})

	t.Run("Should fail when ollama is unreachable", func(t *testing.T) {
		o, err := NewOllama(Options{URL: "http://127.0.0.1:1", Model: "m"})
		require.NoError(t, err)
		assert.ErrorContains(t, o.EnsureModels(testContext(t), "m"), "not reachable")
	})
}

func TestHasModel(t *testing.T) {
	models := []api.ListModelResponse{{Name: "nomic-embed-text:latest"}, {Name: "llama3:8b"}}
	assert.True(t, hasModel(models, "nomic-embed-text"))
	assert.True(t, hasModel(models, "nomic-embed-text:latest"))
	assert.True(t, hasModel(models, "llama3:8b"))
	assert.False(t, hasModel(models, "llama3"))
}
