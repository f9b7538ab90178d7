package review

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/aireview/internal/cache"
	"github.com/dshills/aireview/internal/config"
	"github.com/dshills/aireview/internal/contextprov"
	"github.com/dshills/aireview/internal/dump"
	"github.com/dshills/aireview/internal/logging"
	"github.com/dshills/aireview/internal/patch"
	"github.com/dshills/aireview/internal/providers"
	"github.com/dshills/aireview/internal/redact"
	"github.com/dshills/aireview/internal/tokens"
	"github.com/dshills/aireview/internal/verdict"
)

// ProviderSource hands out the provider for a model. *providers.Router
// satisfies it.
type ProviderSource interface {
	Get(model string) providers.Provider
}

// Engine runs checks one at a time: build context, call the model, parse
// the verdict, and act on it.
type Engine struct {
	cfg       *config.Config
	runner    contextprov.Runner
	providers ProviderSource

	cache       *cache.Cache
	patches     *patch.Manager
	dumper      *dump.Dumper
	report      *Reporter
	logger      *slog.Logger
	contextFile string
	verbose     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables the response cache.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithPatches sets the manager that saves FIX suggestions.
func WithPatches(m *patch.Manager) Option {
	return func(e *Engine) { e.patches = m }
}

// WithDumper sets the request/response dumper.
func WithDumper(d *dump.Dumper) Option {
	return func(e *Engine) { e.dumper = d }
}

// WithOutput sets where the report is printed.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.report = NewReporter(w) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithContextFile replaces context assembly with the content of path.
func WithContextFile(path string) Option {
	return func(e *Engine) { e.contextFile = path }
}

// WithVerbose prints backend metadata and the full payload for each check.
func WithVerbose(v bool) Option {
	return func(e *Engine) { e.verbose = v }
}

// New creates an Engine over a loaded configuration.
func New(cfg *config.Config, runner contextprov.Runner, src ProviderSource, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		runner:    runner,
		providers: src,
		report:    NewReporter(io.Discard),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// Payload joins a prompt and assembled context into the text sent to a model.
func Payload(prompt, context string) string {
	return prompt + "\n\n" + context
}

// Run executes the named checks in order, or every configured check when
// ids is empty, and prints a summary. A failing check does not stop the run.
func (e *Engine) Run(ctx context.Context, ids []string) Summary {
	if len(ids) == 0 {
		for _, c := range e.cfg.Checks {
			ids = append(ids, c.ID)
		}
	}
	var s Summary
	for _, id := range ids {
		s.add(e.RunCheck(ctx, id))
	}
	e.report.Summary(s)
	return s
}

// RunCheck runs a single check to a terminal state. Context errors fail
// the check without calling the model; empty context skips it.
func (e *Engine) RunCheck(ctx context.Context, id string) Result {
	start := time.Now()
	res := Result{CheckID: id}
	res.enter(StatePending)

	check, ok := e.cfg.Check(id)
	if !ok {
		res.Err = fmt.Errorf("unknown check %q", id)
		e.report.Header(id)
		e.report.ContextError(res.Err)
		return e.finish(res, StateFailed, start)
	}
	res.Model = check.Model
	e.report.Header(id)
	log := e.logger.With("check", id, "model", check.Model)

	res.enter(StateContextBuilding)
	if err := ctx.Err(); err != nil {
		res.Err = err
		e.report.ContextError(err)
		return e.finish(res, StateFailed, start)
	}
	assembled, err := e.buildContext(ctx, check)
	if err != nil {
		log.Warn("context failed", "error", err)
		res.Err = err
		e.report.ContextError(err)
		return e.finish(res, StateFailed, start)
	}
	if strings.TrimSpace(assembled) == "" {
		log.Info("no context, skipping")
		e.report.Skipped()
		return e.finish(res, StateSkipped, start)
	}

	payload := Payload(e.cfg.Prompts[check.PromptID].Text, assembled)
	if e.cfg.Settings.RedactSecrets {
		var rep redact.Report
		payload, rep = redact.Payload(payload, e.cfg.Settings.RedactPaths)
		if !rep.Empty() {
			log.Info("redacted payload", "secrets", rep.Secrets, "files", rep.Files)
		}
	}
	res.Chars = utf8.RuneCountInString(payload)

	res.enter(StateInvoking)
	provider := e.providers.Get(check.Model)
	if e.verbose {
		md := map[string]any{}
		for k, v := range provider.Metadata(check.Model) {
			md[k] = v
		}
		md["chars"] = res.Chars
		md["tokens"] = tokens.Count(payload)
		e.report.Debug(md, payload)
	}
	if path, err := e.dumper.Request(id, payload); err != nil {
		log.Warn("request dump failed", "error", err)
	} else if path != "" {
		e.report.Note("Request dumped to: %s", path)
	}

	raw, cached := e.invoke(ctx, provider, check.Model, payload)
	res.Cached = cached

	res.enter(StateParsing)
	v := verdict.Parse(raw, e.parseOptions())
	res.Verdict = &v
	log.Debug("verdict parsed", "status", v.Status, "strategy", v.Strategy, "cached", cached)
	if path, err := e.dumper.Response(id, v); err != nil {
		log.Warn("response dump failed", "error", err)
	} else if path != "" {
		e.report.Note("Response dumped to: %s", path)
	}

	if !cached && v.Status == verdict.StatusPass && e.cache != nil {
		if err := e.cache.Put(cache.BuildKey(check.Model, payload), check.Model, raw); err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}

	e.report.Verdict(v, cached)
	outcome := stateFor(v.Status)
	if outcome == StateFix {
		res.Patch = e.savePatch(id, v, log)
	}
	return e.finish(res, outcome, start)
}

func (e *Engine) buildContext(ctx context.Context, check config.CheckDefinition) (string, error) {
	if e.contextFile != "" {
		return contextprov.BuildFromFile(e.contextFile, check, e.logger)
	}
	return contextprov.Build(ctx, e.runner, e.cfg.Definitions, check, e.logger)
}

// invoke returns the raw reply, from the cache when an identical payload
// already passed for this model. Only PASS replies are cached so that
// backend failures are retried on the next run.
func (e *Engine) invoke(ctx context.Context, p providers.Provider, model, payload string) (string, bool) {
	key := cache.BuildKey(model, payload)
	if e.cache != nil {
		if raw, ok := e.cache.Get(key); ok {
			return raw, true
		}
	}
	return p.Analyze(ctx, model, payload), false
}

func (e *Engine) parseOptions() verdict.Options {
	opts := verdict.DefaultOptions()
	if verdict.Status(e.cfg.Settings.UnparseableStatus) == verdict.StatusFail {
		opts.Unparseable = verdict.StatusFail
	}
	opts.Repair = e.cfg.Settings.RepairJSON
	return opts
}

func (e *Engine) savePatch(id string, v verdict.Verdict, log *slog.Logger) *patch.Patch {
	if e.patches == nil || len(v.ModifiedFiles) == 0 {
		return nil
	}
	p, err := e.patches.Save(id, v.ModifiedFiles)
	if err != nil {
		log.Error("saving patch failed", "error", err)
		e.report.Note("Could not save suggested fix: %v", err)
		return nil
	}
	if p == nil {
		e.report.Note("Suggested fix does not change any existing file")
		return nil
	}
	e.report.Patch(p)
	return p
}

func (e *Engine) finish(res Result, outcome State, start time.Time) Result {
	res.enter(outcome)
	res.enter(StateDone)
	res.State = outcome
	res.Passed = outcome.Passing()
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	res.Elapsed = time.Since(start)
	e.logger.Debug("check done", "check", res.CheckID, "state", outcome, "passed", res.Passed, "elapsed", res.Elapsed)
	return res
}
