package config

// DefaultYAML is the starter configuration written by `aireview init`.
const DefaultYAML = `# aireview checks.
# Each check binds a prompt, a model, and an ordered list of context ids.
# Context ids must match a definition below; nothing is defined implicitly.

definitions:
  - id: push_diff
    tag: changes
    cmd: internal:push_diff

prompts:
  - id: reviewer
    text: |
      You are a senior code reviewer. Look for bugs, security problems, and
      unclear code in the changes below. Be specific and brief.
      Return JSON with "status" (PASS, FAIL or FIX) and "feedback".

checks:
  - id: code-review
    prompt_id: reviewer
    model: gpt-4o-mini
    context: [push_diff]
    max_chars: 16000
    exclude_patterns:
      - "*.lock"
      - "**/vendor/**"

settings:
  overflow: reject
  unparseable_status: MANUAL
  command_timeout: 2m
  redact_secrets: true
  redact_paths:
    - "**/.env"
    - "**/*.pem"
`
