package ai

import "sort"

// Model metadata used for context-window warnings and rough cost estimates.
// Prices are illustrative and should be verified against provider docs.

type ModelInfo struct {
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	ContextTokens int     `json:"context_tokens"` // approximate context window
	InputPerK     float64 `json:"input_per_1k"`   // USD per 1K input tokens
	OutputPerK    float64 `json:"output_per_1k"`  // USD per 1K output tokens
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "llama3-70b-8192"

var models = map[string]ModelInfo{
	"llama3-70b-8192": {
		Name:          "llama3-70b-8192",
		Provider:      ProviderGroq,
		ContextTokens: 8192,
		InputPerK:     0.00059,
		OutputPerK:    0.00079,
	},
	"llama3-8b-8192": {
		Name:          "llama3-8b-8192",
		Provider:      ProviderGroq,
		ContextTokens: 8192,
		InputPerK:     0.00005,
		OutputPerK:    0.00008,
	},
	"llama-3.3-70b-versatile": {
		Name:          "llama-3.3-70b-versatile",
		Provider:      ProviderGroq,
		ContextTokens: 131072,
		InputPerK:     0.00059,
		OutputPerK:    0.00079,
	},
	"mixtral-8x7b-32768": {
		Name:          "mixtral-8x7b-32768",
		Provider:      ProviderGroq,
		ContextTokens: 32768,
		InputPerK:     0.00024,
		OutputPerK:    0.00024,
	},
	"meta-llama/llama-3-70b-instruct": {
		Name:          "meta-llama/llama-3-70b-instruct",
		Provider:      ProviderOpenRouter,
		ContextTokens: 8192,
		InputPerK:     0.00051,
		OutputPerK:    0.00074,
	},
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		Provider:      ProviderOpenRouter,
		ContextTokens: 128000,
		InputPerK:     0.00015,
		OutputPerK:    0.0006,
	},
	"llama3:latest": {
		Name:          "llama3:latest",
		Provider:      ProviderOllama,
		ContextTokens: 8192,
	},
	"llama3.1:8b-instruct": {
		Name:          "llama3.1:8b-instruct",
		Provider:      ProviderOllama,
		ContextTokens: 8192,
	},
}

var providerDefaults = map[string]string{
	ProviderGroq:       DefaultModel,
	ProviderOpenRouter: "meta-llama/llama-3-70b-instruct",
	ProviderOllama:     "llama3:latest",
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// DefaultModelFor returns the suggested model for a provider, falling back to
// DefaultModel.
func DefaultModelFor(provider string) string {
	if m, ok := providerDefaults[provider]; ok {
		return m
	}
	return DefaultModel
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// Models returns the catalog sorted by provider then name, optionally limited
// to one provider.
func Models(provider string) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, mi := range models {
		if provider == "" || mi.Provider == provider {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
