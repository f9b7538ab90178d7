package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is the config file looked up when --config is not given.
	DefaultPath = "ai-checks.yaml"

	DefaultMaxChars       = 16000
	DefaultModel          = "gpt-3.5-turbo"
	DefaultCommandTimeout = 2 * time.Minute
	DefaultCacheTTL       = 86400

	// InternalPrefix marks a definition command served by the built-in registry.
	InternalPrefix = "internal:"
)

// InternalCommands lists the built-in context actions, used for error hints.
var InternalCommands = []string{"push_diff", "git_diff", "changed_files_content"}

// jsonInstruction is appended to any prompt that does not mention JSON.
const jsonInstruction = "\n\nIMPORTANT: Return your response in raw JSON format: " +
	`{"status": "PASS" | "FAIL" | "FIX", "feedback": "...", "modified_files": [{"path": "...", "content": "..."}]}`

// OverflowPolicy decides what happens when assembled context exceeds a check's budget.
type OverflowPolicy string

const (
	// OverflowReject fails the check instead of sending partial context.
	OverflowReject OverflowPolicy = "reject"
	// OverflowTruncate cuts the overflowing block and drops later ones.
	OverflowTruncate OverflowPolicy = "truncate"
)

// ContextDefinition is a named command whose output becomes prompt context.
type ContextDefinition struct {
	ID      string
	Tag     string
	Command string
}

// IsInternal reports whether the command is an internal:<action> URI.
func (d ContextDefinition) IsInternal() bool {
	return strings.HasPrefix(d.Command, InternalPrefix)
}

// PromptDefinition is reviewer instruction text. Text always asks for JSON.
type PromptDefinition struct {
	ID   string
	Text string
}

// CheckDefinition binds a prompt, a model, and ordered context sources.
type CheckDefinition struct {
	ID              string
	PromptID        string
	Model           string
	ContextIDs      []string
	MaxChars        int
	IncludePatterns []string
	ExcludePatterns []string
	Overflow        OverflowPolicy
}

// CacheSettings controls the response cache.
type CacheSettings struct {
	Enabled    bool
	Dir        string
	TTLSeconds int
}

// Settings holds run-wide tuning from the optional settings block.
type Settings struct {
	Overflow          OverflowPolicy
	UnparseableStatus string
	CommandTimeout    time.Duration
	RedactSecrets     bool
	RedactPaths       []string
	RepairJSON        bool
	Cache             CacheSettings
}

// DefaultSettings returns the settings used when the block is absent.
func DefaultSettings() Settings {
	return Settings{
		Overflow:          OverflowReject,
		UnparseableStatus: "MANUAL",
		CommandTimeout:    DefaultCommandTimeout,
		RedactSecrets:     true,
		Cache: CacheSettings{
			TTLSeconds: DefaultCacheTTL,
		},
	}
}

// Config is the validated configuration. It is read-only after Load.
type Config struct {
	Definitions map[string]ContextDefinition
	Prompts     map[string]PromptDefinition
	Checks      []CheckDefinition
	Settings    Settings
}

// Check returns the check with the given id.
func (c *Config) Check(id string) (CheckDefinition, bool) {
	for _, ch := range c.Checks {
		if ch.ID == id {
			return ch, true
		}
	}
	return CheckDefinition{}, false
}

// Load reads and validates the config file at path. Prompt files are
// resolved relative to the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, configErrorf("config file %s not found (run 'aireview init' to create one)", path)
		}
		return nil, &ConfigError{Msg: "reading config file " + path, Cause: err}
	}
	return Parse(data, filepath.Dir(path))
}

// WriteDefault writes the default config to path unless a file already
// exists there. It reports whether a file was created.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0o644); err != nil {
		return false, fmt.Errorf("writing config: %w", err)
	}
	return true, nil
}

var (
	topLevelKeys  = []string{"definitions", "prompts", "checks", "settings"}
	definitionKey = []string{"id", "tag", "cmd"}
	promptKeys    = []string{"id", "text", "file"}
	checkKeys     = []string{
		"id", "prompt_id", "system_prompt", "model", "context", "max_chars",
		"include_patterns", "exclude_patterns", "overflow",
	}
	settingsKeys = []string{"overflow", "unparseable_status", "command_timeout", "redact_secrets", "redact_paths", "repair_json", "cache"}
	cacheKeys    = []string{"enabled", "dir", "ttl_seconds"}
)

type rawDefinition struct {
	ID  string `yaml:"id"`
	Tag string `yaml:"tag"`
	Cmd string `yaml:"cmd"`
}

type rawPrompt struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
	File string `yaml:"file"`
}

type rawCheck struct {
	ID              string     `yaml:"id"`
	PromptID        string     `yaml:"prompt_id"`
	SystemPrompt    string     `yaml:"system_prompt"`
	Model           string     `yaml:"model"`
	Context         stringList `yaml:"context"`
	MaxChars        *int       `yaml:"max_chars"`
	IncludePatterns []string   `yaml:"include_patterns"`
	ExcludePatterns []string   `yaml:"exclude_patterns"`
	Overflow        string     `yaml:"overflow"`
}

type rawSettings struct {
	Overflow          string     `yaml:"overflow"`
	UnparseableStatus string     `yaml:"unparseable_status"`
	CommandTimeout    string     `yaml:"command_timeout"`
	RedactSecrets     *bool      `yaml:"redact_secrets"`
	RedactPaths       stringList `yaml:"redact_paths"`
	RepairJSON        bool       `yaml:"repair_json"`
	Cache             *rawCache  `yaml:"cache"`
}

type rawCache struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// stringList accepts either a scalar or a sequence of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Parse validates raw YAML into a Config. baseDir anchors relative prompt files.
func Parse(data []byte, baseDir string) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Msg: "invalid YAML syntax", Cause: err}
	}

	cfg := &Config{
		Definitions: make(map[string]ContextDefinition),
		Prompts:     make(map[string]PromptDefinition),
		Settings:    DefaultSettings(),
	}
	if len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if isNull(root) {
		return cfg, nil
	}
	if err := validateKeys(root, topLevelKeys, "Config", ""); err != nil {
		return nil, err
	}
	sections := mappingValues(root)

	if err := parseSettings(sections["settings"], &cfg.Settings); err != nil {
		return nil, err
	}
	if err := parseDefinitions(sections["definitions"], cfg); err != nil {
		return nil, err
	}
	if err := parsePrompts(sections["prompts"], baseDir, cfg); err != nil {
		return nil, err
	}
	if err := parseChecks(sections["checks"], cfg); err != nil {
		return nil, err
	}
	if err := validateReferences(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSettings(node *yaml.Node, s *Settings) error {
	if node == nil || isNull(node) {
		return nil
	}
	if err := validateKeys(node, settingsKeys, "Settings", ""); err != nil {
		return err
	}
	if cacheNode := mappingValues(node)["cache"]; cacheNode != nil && !isNull(cacheNode) {
		if err := validateKeys(cacheNode, cacheKeys, "Settings cache", ""); err != nil {
			return err
		}
	}

	var raw rawSettings
	if err := node.Decode(&raw); err != nil {
		return &ConfigError{Msg: "decoding settings", Cause: err}
	}

	if raw.Overflow != "" {
		p, err := parseOverflow(raw.Overflow, "settings")
		if err != nil {
			return err
		}
		s.Overflow = p
	}
	if raw.UnparseableStatus != "" {
		status := strings.ToUpper(strings.TrimSpace(raw.UnparseableStatus))
		if status != "MANUAL" && status != "FAIL" {
			return configErrorf("settings: unparseable_status must be MANUAL or FAIL, got %q", raw.UnparseableStatus)
		}
		s.UnparseableStatus = status
	}
	if raw.CommandTimeout != "" {
		d, err := time.ParseDuration(raw.CommandTimeout)
		if err != nil || d <= 0 {
			return configErrorf("settings: command_timeout must be a positive duration (e.g. 90s), got %q", raw.CommandTimeout)
		}
		s.CommandTimeout = d
	}
	if raw.RedactSecrets != nil {
		s.RedactSecrets = *raw.RedactSecrets
	}
	if len(raw.RedactPaths) > 0 {
		s.RedactPaths = []string(raw.RedactPaths)
	}
	s.RepairJSON = raw.RepairJSON
	if raw.Cache != nil {
		s.Cache.Enabled = raw.Cache.Enabled
		s.Cache.Dir = raw.Cache.Dir
		if raw.Cache.TTLSeconds > 0 {
			s.Cache.TTLSeconds = raw.Cache.TTLSeconds
		}
	}
	return nil
}

func parseDefinitions(node *yaml.Node, cfg *Config) error {
	items, err := sequence(node, "definitions")
	if err != nil {
		return err
	}
	for _, item := range items {
		id := scalarValue(item, "id")
		if err := validateKeys(item, definitionKey, "Definition", id); err != nil {
			return err
		}
		var raw rawDefinition
		if err := item.Decode(&raw); err != nil {
			return &ConfigError{Msg: fmt.Sprintf("decoding definition at line %d", item.Line), Cause: err}
		}
		if raw.ID == "" {
			return configErrorf("Definition at line %d is missing 'id'", item.Line)
		}
		if strings.TrimSpace(raw.Cmd) == "" {
			return configErrorf("Definition '%s' is missing 'cmd'", raw.ID)
		}
		if _, dup := cfg.Definitions[raw.ID]; dup {
			return configErrorf("Definition '%s' is declared more than once", raw.ID)
		}
		tag := raw.Tag
		if tag == "" {
			tag = raw.ID
		}
		cfg.Definitions[raw.ID] = ContextDefinition{ID: raw.ID, Tag: tag, Command: strings.TrimSpace(raw.Cmd)}
	}
	return nil
}

func parsePrompts(node *yaml.Node, baseDir string, cfg *Config) error {
	items, err := sequence(node, "prompts")
	if err != nil {
		return err
	}
	for _, item := range items {
		id := scalarValue(item, "id")
		if err := validateKeys(item, promptKeys, "Prompt", id); err != nil {
			return err
		}
		var raw rawPrompt
		if err := item.Decode(&raw); err != nil {
			return &ConfigError{Msg: fmt.Sprintf("decoding prompt at line %d", item.Line), Cause: err}
		}
		if raw.ID == "" {
			return configErrorf("Prompt at line %d is missing 'id'", item.Line)
		}
		if _, dup := cfg.Prompts[raw.ID]; dup {
			return configErrorf("Prompt '%s' is declared more than once", raw.ID)
		}
		text, err := promptText(raw, baseDir)
		if err != nil {
			return err
		}
		cfg.Prompts[raw.ID] = PromptDefinition{ID: raw.ID, Text: ensureJSON(text)}
	}
	return nil
}

func promptText(raw rawPrompt, baseDir string) (string, error) {
	switch {
	case raw.File != "" && raw.Text != "":
		return "", configErrorf("Prompt '%s' sets both 'text' and 'file'", raw.ID)
	case raw.File != "":
		path := raw.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &ConfigError{Msg: fmt.Sprintf("Failed to load prompt file '%s'", raw.File), Cause: err}
		}
		return string(data), nil
	case strings.TrimSpace(raw.Text) != "":
		return raw.Text, nil
	default:
		return "", configErrorf("Prompt '%s' needs 'text' or 'file'", raw.ID)
	}
}

func parseChecks(node *yaml.Node, cfg *Config) error {
	items, err := sequence(node, "checks")
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, item := range items {
		id := scalarValue(item, "id")
		if err := validateKeys(item, checkKeys, "Check", id); err != nil {
			return err
		}
		var raw rawCheck
		if err := item.Decode(&raw); err != nil {
			return &ConfigError{Msg: fmt.Sprintf("decoding check at line %d", item.Line), Cause: err}
		}
		if raw.ID == "" {
			return configErrorf("Check at line %d is missing 'id'", item.Line)
		}
		if seen[raw.ID] {
			return configErrorf("Check '%s' is declared more than once", raw.ID)
		}
		seen[raw.ID] = true

		promptID, err := resolveCheckPrompt(raw, cfg)
		if err != nil {
			return err
		}

		maxChars := DefaultMaxChars
		if raw.MaxChars != nil {
			if *raw.MaxChars <= 0 {
				return configErrorf("Check '%s' has max_chars %d; it must be greater than zero", raw.ID, *raw.MaxChars)
			}
			maxChars = *raw.MaxChars
		}

		overflow := cfg.Settings.Overflow
		if raw.Overflow != "" {
			overflow, err = parseOverflow(raw.Overflow, fmt.Sprintf("Check '%s'", raw.ID))
			if err != nil {
				return err
			}
		}

		model := strings.TrimSpace(raw.Model)
		if model == "" {
			model = DefaultModel
		}

		cfg.Checks = append(cfg.Checks, CheckDefinition{
			ID:              raw.ID,
			PromptID:        promptID,
			Model:           model,
			ContextIDs:      []string(raw.Context),
			MaxChars:        maxChars,
			IncludePatterns: raw.IncludePatterns,
			ExcludePatterns: raw.ExcludePatterns,
			Overflow:        overflow,
		})
	}
	return nil
}

func resolveCheckPrompt(raw rawCheck, cfg *Config) (string, error) {
	switch {
	case raw.PromptID != "" && raw.SystemPrompt != "":
		return "", configErrorf("Check '%s' sets both 'prompt_id' and 'system_prompt'; use one", raw.ID)
	case raw.PromptID != "":
		if _, ok := cfg.Prompts[raw.PromptID]; !ok {
			return "", configErrorf("Check '%s' references undefined prompt '%s'", raw.ID, raw.PromptID)
		}
		return raw.PromptID, nil
	case strings.TrimSpace(raw.SystemPrompt) != "":
		virtualID := "inline_" + raw.ID
		if _, dup := cfg.Prompts[virtualID]; dup {
			return "", configErrorf("Check '%s' inline prompt collides with prompt '%s'", raw.ID, virtualID)
		}
		cfg.Prompts[virtualID] = PromptDefinition{ID: virtualID, Text: ensureJSON(raw.SystemPrompt)}
		return virtualID, nil
	default:
		return "", configErrorf("Check '%s' is missing 'prompt_id' or 'system_prompt'", raw.ID)
	}
}

func validateReferences(cfg *Config) error {
	for _, check := range cfg.Checks {
		for _, ctxID := range check.ContextIDs {
			if _, ok := cfg.Definitions[ctxID]; ok {
				continue
			}
			hint := ""
			for _, name := range InternalCommands {
				if ctxID == name {
					hint = fmt.Sprintf(" (You must define '%s' in 'definitions' with cmd: '%s%s')", name, InternalPrefix, name)
					break
				}
			}
			return configErrorf("Check '%s' references unknown context ID '%s'%s", check.ID, ctxID, hint)
		}
	}
	return nil
}

// Lint returns non-fatal warnings about a valid config, sorted by definition id.
func (c *Config) Lint() []string {
	used := make(map[string]bool)
	for _, ch := range c.Checks {
		for _, id := range ch.ContextIDs {
			used[id] = true
		}
	}

	ids := make([]string, 0, len(c.Definitions))
	for id := range c.Definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var warnings []string
	for _, id := range ids {
		def := c.Definitions[id]
		if !def.IsInternal() && strings.Contains(def.Command, "git diff") && strings.Contains(def.Command, "--name-only") {
			warnings = append(warnings, fmt.Sprintf("definition '%s' uses 'git diff --name-only': the model will see file names but no code", id))
		}
		if !used[id] {
			warnings = append(warnings, fmt.Sprintf("definition '%s' is not used by any check", id))
		}
	}
	return warnings
}

func parseOverflow(v, where string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case OverflowReject:
		return OverflowReject, nil
	case OverflowTruncate:
		return OverflowTruncate, nil
	default:
		return "", configErrorf("%s: overflow must be '%s' or '%s', got %q", where, OverflowReject, OverflowTruncate, v)
	}
}

func ensureJSON(text string) string {
	if strings.Contains(text, "JSON") {
		return text
	}
	return strings.TrimRight(text, "\n") + jsonInstruction
}

func validateKeys(node *yaml.Node, valid []string, kind, id string) error {
	label := kind
	if id != "" {
		label = fmt.Sprintf("%s '%s'", kind, id)
	}
	if node.Kind != yaml.MappingNode {
		return configErrorf("%s at line %d must be a mapping", label, node.Line)
	}
	allowed := make(map[string]bool, len(valid))
	for _, k := range valid {
		allowed[k] = true
	}
	var unknown []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	sortedValid := append([]string(nil), valid...)
	sort.Strings(sortedValid)
	return configErrorf("%s has unknown keys: %s. Valid: %s",
		label, strings.Join(unknown, ", "), strings.Join(sortedValid, ", "))
}

func sequence(node *yaml.Node, section string) ([]*yaml.Node, error) {
	if node == nil || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, configErrorf("'%s' must be a list (line %d)", section, node.Line)
	}
	return node.Content, nil
}

func mappingValues(node *yaml.Node) map[string]*yaml.Node {
	m := make(map[string]*yaml.Node)
	if node.Kind != yaml.MappingNode {
		return m
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		m[node.Content[i].Value] = node.Content[i+1]
	}
	return m
}

func scalarValue(node *yaml.Node, key string) string {
	if v, ok := mappingValues(node)[key]; ok && v.Kind == yaml.ScalarNode {
		return v.Value
	}
	return ""
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
