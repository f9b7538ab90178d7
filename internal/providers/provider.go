package providers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dshills/aireview/internal/logging"
	"github.com/dshills/aireview/internal/verdict"
)

// Provider is a reviewer backend. Analyze never fails: vendor errors and
// missing credentials come back as a JSON-encoded FAIL verdict.
type Provider interface {
	Analyze(ctx context.Context, model, prompt string) string
	Metadata(model string) map[string]any
}

// Request is one completion sent to a vendor API.
type Request struct {
	Model     string
	Prompt    string
	MaxTokens int
}

// Response is the raw completion returned by a vendor API.
type Response struct {
	Content    string
	TokensUsed int
}

// completer is implemented by each vendor HTTP client.
type completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
	Endpoint() string
}

const defaultMaxTokens = 4096

// modelPrefixes are routing prefixes removed before a model name is sent
// to its vendor.
var modelPrefixes = []string{"anthropic:", "google:", "ollama:", "lmstudio:", "openai:"}

// VendorModel strips a routing prefix such as "anthropic:" from model.
// Prefixes match case-insensitively, as they do in routing.
func VendorModel(model string) string {
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.HasPrefix(lower, p) {
			return model[len(p):]
		}
	}
	return model
}

// vendor adapts a completer to the Provider interface.
type vendor struct {
	client completer
	logger *slog.Logger
}

func newVendor(client completer, logger *slog.Logger) *vendor {
	return &vendor{client: client, logger: logging.OrDiscard(logger)}
}

func (v *vendor) Analyze(ctx context.Context, model, prompt string) string {
	name := v.client.Name()
	resp, err := v.client.Complete(ctx, Request{
		Model:     VendorModel(model),
		Prompt:    prompt,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		v.logger.Warn("provider request failed", "provider", name, "model", model, "error", err)
		msg := name + " request failed: " + err.Error()
		if IsAuthError(err) {
			msg += " (check the credentials listed by 'aireview models list')"
		}
		return verdict.FailureJSON(msg)
	}
	v.logger.Debug("provider response", "provider", name, "model", model, "tokens", resp.TokensUsed)
	return resp.Content
}

func (v *vendor) Metadata(model string) map[string]any {
	return map[string]any{
		"provider":   v.client.Name(),
		"model":      VendorModel(model),
		"endpoint":   v.client.Endpoint(),
		"max_tokens": defaultMaxTokens,
	}
}

// unavailable stands in for a backend that could not be constructed.
type unavailable struct {
	name   string
	reason string
}

func (u *unavailable) Analyze(_ context.Context, model, _ string) string {
	return verdict.FailureJSON(u.name + " provider unavailable for model " + model + ": " + u.reason)
}

func (u *unavailable) Metadata(model string) map[string]any {
	return map[string]any{
		"provider":    u.name,
		"model":       VendorModel(model),
		"unavailable": u.reason,
	}
}

// DryRunFeedback is the feedback returned by the dry-run provider.
const DryRunFeedback = "Dry Run Successful"

// Mock is the dry-run provider. It never touches the network.
type Mock struct{}

func (Mock) Analyze(context.Context, string, string) string {
	return `{"status":"PASS","feedback":"` + DryRunFeedback + `"}`
}

func (Mock) Metadata(model string) map[string]any {
	return map[string]any{
		"provider": "mock",
		"model":    model,
		"dry_run":  true,
	}
}
