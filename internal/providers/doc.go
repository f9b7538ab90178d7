// Package providers routes reviewer models to AI backends.
//
// A [Router] maps a model name to a routing key with an ordered rule
// table (claude* to Anthropic, gemini* to Gemini, ollama:/lmstudio: to a
// local OpenAI-compatible server, everything else to OpenAI) and builds
// one [Provider] per key on first use.
//
// Providers never return errors. A missing API key or a failed request
// becomes a JSON-encoded FAIL verdict, so callers handle every outcome
// through the normal response parser. Rate-limited and 5xx responses are
// retried with exponential backoff; authentication failures are not.
package providers
