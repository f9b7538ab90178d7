package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is the HTTP client for OpenAI-style chat completion APIs. It also
// serves Ollama and LM Studio, which expose the same wire format.
type OpenAI struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates an OpenAI client from OPENAI_API_KEY. The endpoint can
// be overridden with AIREVIEW_OPENAI_BASE_URL.
func NewOpenAI() (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	baseURL := os.Getenv("AIREVIEW_OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAI{
		name:    "openai",
		apiKey:  key,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OpenAI) Name() string     { return o.name }
func (o *OpenAI) Endpoint() string { return o.baseURL }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := openaiRequest{
		Model:     req.Model,
		Messages:  []openaiMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens: maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp Response
	err = retryWithBackoff(ctx, 3, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		httpResp, err := o.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if err := classifyStatus(httpResp.StatusCode, respBody); err != nil {
			return err
		}

		var result openaiResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		if len(result.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}

		resp = Response{
			Content:    result.Choices[0].Message.Content,
			TokensUsed: result.Usage.TotalTokens,
		}
		return nil
	})

	return resp, err
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	TotalTokens int `json:"total_tokens"`
}
