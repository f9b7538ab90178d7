package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/logging"
	"github.com/dshills/aireview/internal/providers"
	"github.com/dshills/aireview/internal/verdict"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect model routing and backend credentials",
}

type backendInfo struct {
	Key         string
	Prefixes    string
	Credentials []string
	Example     string
}

var backends = []backendInfo{
	{Key: providers.KeyAnthropic, Prefixes: "claude*, anthropic:", Credentials: []string{"ANTHROPIC_API_KEY"}, Example: "claude-sonnet-4-5"},
	{Key: providers.KeyGemini, Prefixes: "gemini*, google:", Credentials: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, Example: "gemini-2.5-flash"},
	{Key: providers.KeyOllama, Prefixes: "ollama:, lmstudio:", Credentials: []string{"OLLAMA_HOST", "AIREVIEW_OLLAMA_API_KEY"}, Example: "ollama:qwen2.5-coder"},
	{Key: providers.KeyOpenAI, Prefixes: "anything else", Credentials: []string{"OPENAI_API_KEY", "AIREVIEW_OPENAI_BASE_URL"}, Example: "gpt-4.1-mini"},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends, the model names routed to them, and their credentials",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, b := range backends {
			fmt.Fprintf(out, "%s:\n", b.Key)
			fmt.Fprintf(out, "  models:  %s (e.g. %s)\n", b.Prefixes, b.Example)
			for _, env := range b.Credentials {
				fmt.Fprintf(out, "  %-24s %s\n", env, credentialState(env))
			}
			fmt.Fprintln(out)
		}
	},
}

var modelsRouteCmd = &cobra.Command{
	Use:   "route <model>",
	Short: "Show which backend a model name routes to",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		model := args[0]
		router := providers.NewRouter(providers.WithRouterLogger(logger))
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "model:   %s\n", model)
		fmt.Fprintf(out, "backend: %s\n", router.Route(model))
		md := router.Get(model).Metadata(model)
		keys := make([]string, 0, len(md))
		for k := range md {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %v\n", k, md[k])
		}
	},
}

var doctorTimeout time.Duration

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor <model>",
	Short: "Send a ping to the backend serving a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model := args[0]
		router := providers.NewRouter(providers.WithRouterLogger(logger))
		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s via %s...\n", model, router.Route(model))

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		v := ping(ctx, router, model)
		if v.Status == verdict.StatusFail {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", v.Feedback)
			exitCode = ExitFailure
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", model)
		return nil
	},
}

// ping asks the model for a trivial PASS verdict. A reply that parses to
// anything but FAIL shows the backend is reachable.
func ping(ctx context.Context, src interface {
	Get(string) providers.Provider
}, model string) verdict.Verdict {
	raw := src.Get(model).Analyze(ctx, model, `Reply with exactly this JSON and nothing else: {"status": "PASS", "feedback": "pong"}`)
	return verdict.Parse(raw, verdict.DefaultOptions())
}

func credentialState(env string) string {
	v := os.Getenv(env)
	if v == "" {
		return "(not set)"
	}
	return logging.MaskKey(v)
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsRouteCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 30*time.Second, "How long to wait for the backend")
}
