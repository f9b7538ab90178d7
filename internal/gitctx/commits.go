package gitctx

import (
	"context"
	"strings"
)

// SkipTags are commit message markers that opt a push out of review.
var SkipTags = []string{"[skip-ai]", "[no-ai]", "no_ai", "[ci-skip]"}

// CommitInfo holds a commit SHA and its full message.
type CommitInfo struct {
	SHA     string
	Message string
}

// Commits returns the commits in the review target range, newest first.
// A target that names the index rather than commits yields no commits.
func Commits(ctx context.Context, rc ReviewContext) ([]CommitInfo, error) {
	if !rc.IsRange() {
		return nil, nil
	}
	args := append([]string{"log", "--format=%H%x00%B%x1e"}, rc.TargetArgs()...)
	out, err := Run(ctx, rc.WorkDir, args...)
	if err != nil {
		return nil, err
	}
	return parseCommits(out), nil
}

func parseCommits(out string) []CommitInfo {
	var commits []CommitInfo
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		sha, msg, ok := strings.Cut(record, "\x00")
		if !ok {
			continue
		}
		commits = append(commits, CommitInfo{
			SHA:     strings.TrimSpace(sha),
			Message: strings.TrimSpace(msg),
		})
	}
	return commits
}

// SkipTag returns the first skip tag found in any commit message,
// compared case-insensitively.
func SkipTag(commits []CommitInfo) (string, bool) {
	for _, c := range commits {
		msg := strings.ToLower(c.Message)
		for _, tag := range SkipTags {
			if strings.Contains(msg, tag) {
				return tag, true
			}
		}
	}
	return "", false
}
