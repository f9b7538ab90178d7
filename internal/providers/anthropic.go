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

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic is the HTTP client for Anthropic's Messages API.
type Anthropic struct {
	apiKey string
	client *http.Client
}

// NewAnthropic creates an Anthropic client from ANTHROPIC_API_KEY.
func NewAnthropic() (*Anthropic, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	return &Anthropic{
		apiKey: key,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Anthropic) Name() string     { return "anthropic" }
func (a *Anthropic) Endpoint() string { return anthropicAPIURL }

func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp Response
	err = retryWithBackoff(ctx, 3, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

		httpResp, err := a.client.Do(httpReq)
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

		var result anthropicResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		var content string
		for _, block := range result.Content {
			if block.Type == "text" {
				content += block.Text
			}
		}

		resp = Response{
			Content:    content,
			TokensUsed: result.Usage.InputTokens + result.Usage.OutputTokens,
		}
		return nil
	})

	return resp, err
}

// classifyStatus maps an HTTP status to the retry error types.
func classifyStatus(code int, body []byte) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &rateLimitError{}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &authError{message: string(body)}
	case code >= 500:
		return &serverError{statusCode: code, body: string(body)}
	default:
		return fmt.Errorf("API error (status %d): %s", code, string(body))
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
