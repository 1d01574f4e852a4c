package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/audit"
)

func TestOllamaAssess(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "FAIL: cables exposed."})
	}))
	defer server.Close()

	auditor := NewOllamaAuditor(server.URL, "llava")
	images := []audit.Image{{Data: []byte{0xFF, 0xD8}}, {Data: []byte{0xFF, 0xD9}}}

	text, err := auditor.Assess(context.Background(), audit.Prompt, images)
	require.NoError(t, err)
	assert.Equal(t, "FAIL: cables exposed.", text)

	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, audit.Prompt, got.Prompt)
	assert.Equal(t, []string{"/9g=", "/9k="}, got.Images)
	assert.False(t, got.Stream)
}

func TestOllamaAssessNetworkError(t *testing.T) {
	auditor := NewOllamaAuditor("http://127.0.0.1:1", "llava")

	_, err := auditor.Assess(context.Background(), audit.Prompt, nil)
	assert.Error(t, err)
}

func TestOllamaAssessBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaAuditor(server.URL, "llava").Assess(context.Background(), audit.Prompt, nil)
	assert.Error(t, err)
}

func TestOllamaAssessInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewOllamaAuditor(server.URL, "llava").Assess(context.Background(), audit.Prompt, nil)
	assert.Error(t, err)
}
