package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/assistant"
	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
)

// reportedError has already been shown to the user through a sink; Execute
// only sets the exit status.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// normalizeProvider maps user spellings onto registered provider names.
func normalizeProvider(name string, cfg *cfgpkg.Global) string {
	p := strings.ToLower(strings.TrimSpace(name))
	if p == "" && cfg != nil {
		p = strings.ToLower(cfg.DefaultProvider)
	}
	switch p {
	case "":
		return ai.ProviderGroq
	case "local":
		return ai.ProviderOllama
	}
	return p
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 1
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := normalizeProvider(opts.ProviderFlag, cfg)
	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	if cfg != nil {
		rc.APIKey = cfg.ResolveAPIKey(providerName)
		rc.BaseURL = cfg.BaseURL
	} else if env := ai.APIKeyEnv(providerName); env != "" {
		rc.APIKey = os.Getenv(env)
	}

	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		rc.Host = host
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	return client, providerName, nil
}

// selectModel: explicit flag, then the configured default when it belongs to
// the chosen provider, then the provider's built-in default.
func selectModel(cfg *cfgpkg.Global, explicit, provider string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" && normalizeProvider("", cfg) == provider {
		return cfg.DefaultModel
	}
	return ai.DefaultModelFor(provider)
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// checkContextWindow warns when prompt plus completion may not fit the model.
// Local models fail hard instead, since Ollama silently truncates.
func checkContextWindow(w io.Writer, model, provider string, tokens, maxTokens int) error {
	mi, ok := ai.LookupModel(model)
	if !ok || tokens+maxTokens <= mi.ContextTokens {
		return nil
	}
	if provider == ai.ProviderOllama {
		avail := mi.ContextTokens - maxTokens
		if avail < 0 {
			avail = mi.ContextTokens / 2
		}
		return fmt.Errorf("context window exceeded for local model '%s'.\n"+
			"  Required: %d tokens (prompt) + %d (max-tokens) = %d total\n"+
			"  Available: %d tokens\n\n"+
			"Solutions:\n"+
			"  1. Use --prompt-limit %d to truncate the dataset summary\n"+
			"  2. Reduce --max-rows or --head\n"+
			"  3. Use a model with a larger context window",
			model, tokens, maxTokens, tokens+maxTokens, mi.ContextTokens, avail)
	}
	fmt.Fprintf(w, "⚠ Prompt (%d tokens) + max-tokens (%d) exceeds %s context window (~%d tokens).\n",
		tokens, maxTokens, mi.Name, mi.ContextTokens)
	return nil
}

// answerSink drops the final answer section once hide is set.
type answerSink struct {
	assistant.Sink
	w    io.Writer
	hide bool
}

func (s *answerSink) Section(title, body string) {
	if s.hide && title == assistant.TitleResults {
		fmt.Fprintln(s.w)
		return
	}
	s.Sink.Section(title, body)
}

type streamingOptions struct {
	Enabled     bool
	Quiet       bool
	Writer      io.Writer
	DeltaWriter io.Writer
}

// configureStreaming turns on delta forwarding when asked for and supported.
func configureStreaming(c *assistant.RuntimeCompleter, opts streamingOptions) bool {
	if !opts.Enabled {
		return false
	}
	if _, ok := c.Runtime.(ai.StreamRuntime); !ok {
		if !opts.Quiet {
			fmt.Fprintln(opts.Writer, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
		}
		return false
	}
	if !opts.Quiet {
		fmt.Fprintln(opts.Writer, "(streaming)")
	}
	dw := opts.DeltaWriter
	c.OnDelta = func(d string) { fmt.Fprint(dw, d) }
	return true
}

// providerHint returns an error with setup advice for failures that have an
// obvious local fix, or nil.
func providerHint(err error, provider, model string) error {
	if provider != ai.ProviderOllama {
		return nil
	}
	var (
		unreach *ai.UnreachableError
		nfErr   *ai.ModelNotFoundError
	)
	switch {
	case errors.As(err, &unreach):
		return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (DATALENS_OLLAMA_HOST or config 'ollama_host'): %w", unreach.Host, err)
	case errors.As(err, &nfErr):
		return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model: %w", model, model, err)
	}
	return nil
}

type outputOptions struct {
	JSON         bool
	Quiet        bool
	File         string
	Question     string
	Provider     string
	Model        string
	MaxTokens    int
	Temperature  float64
	PromptTokens int
	OutputPath   string
	OutputFormat string
	Streamed     bool
	Writer       io.Writer
}

func (o outputOptions) record(content string) map[string]any {
	return map[string]any{
		"file":          o.File,
		"question":      o.Question,
		"provider":      o.Provider,
		"model":         o.Model,
		"max_tokens":    o.MaxTokens,
		"temperature":   o.Temperature,
		"prompt_tokens": o.PromptTokens,
		"streamed":      o.Streamed,
		"content":       content,
	}
}

func formatAndWriteOutput(content string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	if opts.JSON {
		b, err := json.MarshalIndent(opts.record(content), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}

	if opts.OutputPath == "" {
		return nil
	}

	switch opts.OutputFormat {
	case "", "text", "markdown", "md":
		if err := os.WriteFile(opts.OutputPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	case "json":
		b, err := json.MarshalIndent(opts.record(content), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		if err := os.WriteFile(opts.OutputPath, b, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	default:
		return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", opts.OutputFormat)
	}

	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}

func withTimeout(ctx context.Context, sec int) (context.Context, context.CancelFunc) {
	if sec <= 0 {
		sec = 180
	}
	return context.WithTimeout(ctx, time.Duration(sec)*time.Second)
}
