package contextprov

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dshills/aireview/internal/config"
	"github.com/dshills/aireview/internal/logging"
)

const (
	// TruncatedMarker ends a block cut by the truncate policy.
	TruncatedMarker = "\n... [TRUNCATED]"
	// ContextFileTag labels the block built from --context-file.
	ContextFileTag = "context_file"
)

// FormatBlock renders one tagged context block.
func FormatBlock(tag, output string) string {
	return fmt.Sprintf("### Context: %s\n```text\n%s\n```\n", tag, output)
}

// Build runs the check's context ids in declared order and assembles the
// non-empty outputs into tagged blocks. Sizes are counted in runes of raw
// output. Under the reject policy an overflow fails with a *CommandError;
// under truncate the overflowing block is cut and later ids are dropped.
func Build(ctx context.Context, r Runner, defs map[string]config.ContextDefinition, check config.CheckDefinition, logger *slog.Logger) (string, error) {
	logger = logging.OrDiscard(logger)
	acc := newAccumulator(check, logger)

	for _, id := range check.ContextIDs {
		def, ok := defs[id]
		if !ok {
			return "", &CommandError{ContextID: id, Msg: "no such context definition"}
		}
		out, err := r.Run(ctx, def, check.IncludePatterns, check.ExcludePatterns)
		if err != nil {
			var cmdErr *CommandError
			if errors.As(err, &cmdErr) {
				return "", err
			}
			return "", &CommandError{ContextID: id, Command: def.Command, Msg: "command failed", Err: err}
		}
		if out == "" {
			logger.Debug("context output empty, skipping", "check", check.ID, "context", id)
			continue
		}
		if err := acc.add(id, def.Tag, out); err != nil {
			return "", err
		}
		if acc.full {
			break
		}
	}
	return acc.String(), nil
}

// BuildFromFile assembles a single block from a literal file, subject to
// the check's size ceiling and overflow policy.
func BuildFromFile(path string, check config.CheckDefinition, logger *slog.Logger) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &CommandError{ContextID: ContextFileTag, Command: path, Msg: "reading context file", Err: err}
	}
	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", nil
	}
	acc := newAccumulator(check, logging.OrDiscard(logger))
	if err := acc.add(ContextFileTag, ContextFileTag, out); err != nil {
		return "", err
	}
	return acc.String(), nil
}

type accumulator struct {
	checkID  string
	maxChars int
	policy   config.OverflowPolicy
	logger   *slog.Logger

	total  int
	blocks []string
	full   bool
}

func newAccumulator(check config.CheckDefinition, logger *slog.Logger) *accumulator {
	maxChars := check.MaxChars
	if maxChars <= 0 {
		maxChars = config.DefaultMaxChars
	}
	policy := check.Overflow
	if policy == "" {
		policy = config.OverflowReject
	}
	return &accumulator{checkID: check.ID, maxChars: maxChars, policy: policy, logger: logger}
}

func (a *accumulator) add(id, tag, out string) error {
	n := utf8.RuneCountInString(out)
	if a.total+n <= a.maxChars {
		a.total += n
		a.blocks = append(a.blocks, FormatBlock(tag, out))
		a.full = a.policy == config.OverflowTruncate && a.total >= a.maxChars
		return nil
	}

	if a.policy != config.OverflowTruncate {
		return &CommandError{
			ContextID: id,
			Msg: fmt.Sprintf("context overflow: %d chars would bring the total to %d, over the %d char limit of check '%s'",
				n, a.total+n, a.maxChars, a.checkID),
		}
	}

	remaining := a.maxChars - a.total
	a.full = true
	a.logger.Warn("context truncated", "check", a.checkID, "context", id, "chars", n, "kept", remaining)
	if remaining <= 0 {
		return nil
	}
	a.total += remaining
	a.blocks = append(a.blocks, FormatBlock(tag, truncateRunes(out, remaining)+TruncatedMarker))
	return nil
}

func (a *accumulator) String() string {
	return strings.Join(a.blocks, "\n")
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
