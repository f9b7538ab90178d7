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

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini is the HTTP client for Google's Gemini API.
type Gemini struct {
	apiKey string
	client *http.Client
}

// NewGemini creates a Gemini client from GEMINI_API_KEY or GOOGLE_API_KEY.
func NewGemini() (*Gemini, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set")
	}
	return &Gemini{
		apiKey: key,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (g *Gemini) Name() string     { return "gemini" }
func (g *Gemini) Endpoint() string { return geminiAPIURL }

func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	url := fmt.Sprintf("%s/%s:generateContent", geminiAPIURL, req.Model)

	body := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: req.Prompt}},
			},
		},
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if body.GenerationConfig.MaxOutputTokens == 0 {
		body.GenerationConfig.MaxOutputTokens = defaultMaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp Response
	err = retryWithBackoff(ctx, 3, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", g.apiKey)

		httpResp, err := g.client.Do(httpReq)
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

		var result geminiResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("no content in response")
		}

		var content string
		for _, part := range result.Candidates[0].Content.Parts {
			content += part.Text
		}

		resp = Response{
			Content:    content,
			TokensUsed: result.UsageMetadata.TotalTokenCount,
		}
		return nil
	})

	return resp, err
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}
