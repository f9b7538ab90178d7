package contextprov

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/aireview/internal/gitctx"
)

type internalFunc func(ctx context.Context, p *Provider, include, exclude []string) (string, error)

// registry is the closed set of internal:<action> commands.
var registry = map[string]internalFunc{
	"git_diff":              gitDiff,
	"changed_files_content": changedFilesContent,
	"push_diff":             pushDiff,
}

// InternalActions returns the registered internal action names, sorted.
func InternalActions() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func gitDiff(ctx context.Context, p *Provider, include, exclude []string) (string, error) {
	diff, err := gitctx.Diff(ctx, p.rc)
	if err != nil {
		return "", err
	}
	filtered, dropped := gitctx.FilterDiff(diff, include, exclude)
	for _, path := range dropped {
		p.logger.Debug("filtered file out of diff", "path", path)
	}
	p.logger.Debug("diff ready", "files", gitctx.DiffFiles(filtered), "dropped", len(dropped))
	return filtered, nil
}

func changedFilesContent(ctx context.Context, p *Provider, include, exclude []string) (string, error) {
	files, err := gitctx.ChangedFiles(ctx, p.rc)
	if err != nil {
		return "", err
	}

	kept := gitctx.FilterFiles(files, include, exclude)
	p.logger.Debug("filtered changed files", "total", len(files), "kept", len(kept))
	if len(kept) == 0 {
		return "", nil
	}

	var parts []string
	for _, path := range kept {
		data, err := os.ReadFile(filepath.Join(p.rc.WorkDir, path))
		if err != nil {
			p.logger.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		if bytes.IndexByte(data, 0) >= 0 {
			p.logger.Debug("skipping binary file", "path", path)
			continue
		}
		parts = append(parts, fmt.Sprintf("=== FILE: %s ===\n%s", path, strings.TrimRight(string(data), "\n")))
	}
	return strings.Join(parts, "\n\n"), nil
}

func pushDiff(ctx context.Context, p *Provider, include, exclude []string) (string, error) {
	diff, err := gitDiff(ctx, p, include, exclude)
	if err != nil {
		return "", err
	}
	content, err := changedFilesContent(ctx, p, include, exclude)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(diff) == "" && content == "" {
		return "", nil
	}
	return "=== GIT DIFF ===\n" + strings.TrimSpace(diff) + "\n\n=== FULL FILE CONTEXT ===\n" + content, nil
}
