package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:1b", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 2048, req.Options.NumCtx)

		require.NoError(t, json.NewEncoder(w).Encode(GenerateResponse{
			Model:    req.Model,
			Response: `{"icp_match": true}`,
			Done:     true,
		}))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	resp, err := client.Generate(context.Background(), GenerateRequest{
		Model:   "gemma3:1b",
		Prompt:  "classify this",
		Options: Options{Temperature: 0.1, TopP: 0.9, TopK: 40, NumCtx: 2048},
	})
	require.NoError(t, err)
	assert.True(t, resp.Done)
	assert.Equal(t, `{"icp_match": true}`, resp.Response)
}

func TestGenerate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGenerate_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json")) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "gemma3:1b"})
	require.Error(t, err)
}

func TestGenerate_ConnectionRefused(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:1"))
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "gemma3:1b"})
	require.Error(t, err)
}

func TestGenerate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Generate(ctx, GenerateRequest{Model: "gemma3:1b"})
	require.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(GenerateResponse{Done: true}))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Generate(context.Background(), GenerateRequest{Model: "gemma3:1b"})
		require.NoError(t, err)
	}
	// Burst 1 at 20 rps: two of the three calls wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
