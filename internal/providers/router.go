package providers

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dshills/aireview/internal/logging"
)

// Routing keys for the built-in backends.
const (
	KeyAnthropic = "anthropic"
	KeyGemini    = "gemini"
	KeyOllama    = "ollama"
	KeyOpenAI    = "openai"
)

// Rule routes model names matching Match to the backend named Key.
type Rule struct {
	Key   string
	Match func(model string) bool
}

func hasAnyPrefix(prefixes ...string) func(string) bool {
	return func(model string) bool {
		m := strings.ToLower(model)
		for _, p := range prefixes {
			if strings.HasPrefix(m, p) {
				return true
			}
		}
		return false
	}
}

// DefaultRules returns the built-in routing table, evaluated top to bottom.
// Models matching no rule go to OpenAI.
func DefaultRules() []Rule {
	return []Rule{
		{Key: KeyAnthropic, Match: hasAnyPrefix("claude", "anthropic:")},
		{Key: KeyGemini, Match: hasAnyPrefix("gemini", "google:")},
		{Key: KeyOllama, Match: hasAnyPrefix("ollama:", "lmstudio:")},
	}
}

// Factory constructs the backend for one routing key.
type Factory func(logger *slog.Logger) Provider

// DefaultFactories returns constructors for the built-in backends. A
// backend whose credentials are missing is built as an unavailable
// provider that answers every request with a FAIL verdict.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		KeyAnthropic: func(l *slog.Logger) Provider {
			c, err := NewAnthropic()
			if err != nil {
				return &unavailable{name: KeyAnthropic, reason: err.Error()}
			}
			return newVendor(c, l)
		},
		KeyGemini: func(l *slog.Logger) Provider {
			c, err := NewGemini()
			if err != nil {
				return &unavailable{name: KeyGemini, reason: err.Error()}
			}
			return newVendor(c, l)
		},
		KeyOllama: func(l *slog.Logger) Provider {
			return newVendor(NewOllama(), l)
		},
		KeyOpenAI: func(l *slog.Logger) Provider {
			c, err := NewOpenAI()
			if err != nil {
				return &unavailable{name: KeyOpenAI, reason: err.Error()}
			}
			return newVendor(c, l)
		},
	}
}

// Router maps model names to backends. Each backend is built on first use
// and reused for the router's lifetime. It is safe for concurrent use.
type Router struct {
	rules      []Rule
	defaultKey string
	factories  map[string]Factory
	dryRun     bool
	logger     *slog.Logger

	mu        sync.Mutex
	instances map[string]Provider
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithDryRun makes every lookup return the Mock provider.
func WithDryRun(dryRun bool) RouterOption {
	return func(r *Router) { r.dryRun = dryRun }
}

// WithFactories replaces the backend constructors.
func WithFactories(f map[string]Factory) RouterOption {
	return func(r *Router) { r.factories = f }
}

// WithRules replaces the routing table and the fallback key.
func WithRules(rules []Rule, defaultKey string) RouterOption {
	return func(r *Router) {
		r.rules = rules
		r.defaultKey = defaultKey
	}
}

// WithRouterLogger sets the logger handed to backends.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a router with the default rules and factories.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		rules:      DefaultRules(),
		defaultKey: KeyOpenAI,
		factories:  DefaultFactories(),
		instances:  make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// Route returns the routing key for model.
func (r *Router) Route(model string) string {
	for _, rule := range r.rules {
		if rule.Match(model) {
			return rule.Key
		}
	}
	return r.defaultKey
}

// Get returns the backend for model, constructing it on first use.
func (r *Router) Get(model string) Provider {
	if r.dryRun {
		return Mock{}
	}
	key := r.Route(model)

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[key]; ok {
		return p
	}
	factory, ok := r.factories[key]
	if !ok {
		return &unavailable{name: key, reason: "no backend registered for routing key " + key}
	}
	p := factory(r.logger)
	r.logger.Debug("constructed provider", "key", key, "model", model)
	r.instances[key] = p
	return p
}
