package contextprov

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/dshills/aireview/internal/config"
	"github.com/dshills/aireview/internal/gitctx"
	"github.com/dshills/aireview/internal/logging"
)

// Runner produces the text output of one context definition.
type Runner interface {
	Run(ctx context.Context, def config.ContextDefinition, include, exclude []string) (string, error)
}

// Provider runs shell commands and internal actions against a ReviewContext.
type Provider struct {
	rc      gitctx.ReviewContext
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout bounds every command. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// WithLogger sets the logger used for filter and command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a Provider for the given review context.
func New(rc gitctx.ReviewContext, opts ...Option) *Provider {
	p := &Provider{
		rc:      rc,
		timeout: config.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDiscard(p.logger)
	return p
}

// Run executes def and returns its trimmed output. Include and exclude
// patterns apply to internal actions that work over the changed-file set.
func (p *Provider) Run(ctx context.Context, def config.ContextDefinition, include, exclude []string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if def.IsInternal() {
		action := strings.TrimPrefix(def.Command, config.InternalPrefix)
		fn, ok := registry[action]
		if !ok {
			return "", &CommandError{
				ContextID: def.ID,
				Command:   def.Command,
				Msg:       fmt.Sprintf("unknown internal command %q (valid: %s)", action, strings.Join(InternalActions(), ", ")),
			}
		}
		out, err := fn(ctx, p, include, exclude)
		if err != nil {
			return "", p.commandError(ctx, def, err)
		}
		return strings.TrimSpace(out), nil
	}

	return p.shell(ctx, def)
}

func (p *Provider) shell(ctx context.Context, def config.ContextDefinition) (string, error) {
	p.logger.Debug("running context command", "context", def.ID, "cmd", def.Command)

	cmd := exec.CommandContext(ctx, "sh", "-c", def.Command)
	cmd.Dir = p.rc.WorkDir
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cmdErr := p.commandError(ctx, def, err)
		if cmdErr.Stderr == "" {
			cmdErr.Stderr = strings.TrimSpace(stderr.String())
		}
		return "", cmdErr
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (p *Provider) commandError(ctx context.Context, def config.ContextDefinition, err error) *CommandError {
	cmdErr := &CommandError{
		ContextID: def.ID,
		Command:   def.Command,
		Msg:       "command failed",
		Err:       err,
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cmdErr.Msg = fmt.Sprintf("command timed out after %s", p.timeout)
		return cmdErr
	}
	var gitErr *gitctx.Error
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &gitErr):
		cmdErr.ExitCode = gitErr.ExitCode
		cmdErr.Stderr = gitErr.Stderr
	case errors.As(err, &exitErr):
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	return cmdErr
}
