package providers

import (
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// NewOllama creates a client for a local Ollama or LM Studio server using
// the OpenAI-compatible endpoint. OLLAMA_HOST overrides the address; no API
// key is needed unless AIREVIEW_OLLAMA_API_KEY is set.
func NewOllama() *OpenAI {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &OpenAI{
		name:    "ollama",
		apiKey:  os.Getenv("AIREVIEW_OLLAMA_API_KEY"),
		baseURL: baseURL + "/v1/chat/completions",
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}
