package models

import "sort"

// Provider tags used for dispatch.
const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// Pricing holds per-model prices in USD per one million tokens.
type Pricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// ModelInfo describes one entry of the model registry.
type ModelInfo struct {
	ModelID        string  `json:"modelId"`
	Provider       string  `json:"provider"`
	DisplayName    string  `json:"displayName"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	SupportsImages bool    `json:"supportsImages"`
	MaxTokens      int     `json:"maxTokens"`
	Pricing        Pricing `json:"pricing"`
}

// Registry is the single source of truth for model dispatch and cost.
// The Bedrock entries use the cross-region inference profile form of
// the model id (us.*) and must be invoked against the region hosting
// the profiles. Prices must not change without a release note.
var Registry = map[string]ModelInfo{
	"us.anthropic.claude-sonnet-4-5-20250929-v1:0": {
		ModelID:        "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		Provider:       ProviderBedrock,
		DisplayName:    "Claude Sonnet 4.5",
		Description:    "Balanced Claude model for general assistant and RAG workloads",
		Category:       "standard",
		SupportsImages: true,
		MaxTokens:      8192,
		Pricing:        Pricing{Input: 3, Output: 15},
	},
	"us.anthropic.claude-opus-4-1-20250805-v1:0": {
		ModelID:        "us.anthropic.claude-opus-4-1-20250805-v1:0",
		Provider:       ProviderBedrock,
		DisplayName:    "Claude Opus 4.1",
		Description:    "Highest-capability Claude model for complex reasoning",
		Category:       "advanced",
		SupportsImages: true,
		MaxTokens:      8192,
		Pricing:        Pricing{Input: 15, Output: 75},
	},
	"us.anthropic.claude-3-5-haiku-20241022-v1:0": {
		ModelID:        "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		Provider:       ProviderBedrock,
		DisplayName:    "Claude 3.5 Haiku",
		Description:    "Fast, low-cost Claude model for lightweight turns",
		Category:       "fast",
		SupportsImages: true,
		MaxTokens:      4096,
		Pricing:        Pricing{Input: 0.8, Output: 4},
	},
	"gemini-3-flash-preview": {
		ModelID:        "gemini-3-flash-preview",
		Provider:       ProviderGemini,
		DisplayName:    "Gemini 3 Flash",
		Description:    "Fast Gemini model invoked through the direct SDK",
		Category:       "fast",
		SupportsImages: true,
		MaxTokens:      8192,
		Pricing:        Pricing{Input: 0.5, Output: 3},
	},
	"gemini-2.5-pro": {
		ModelID:        "gemini-2.5-pro",
		Provider:       ProviderGemini,
		DisplayName:    "Gemini 2.5 Pro",
		Description:    "High-capability Gemini model for long-context work",
		Category:       "advanced",
		SupportsImages: true,
		MaxTokens:      8192,
		Pricing:        Pricing{Input: 1.25, Output: 10},
	},
	"gemini-2.5-flash": {
		ModelID:        "gemini-2.5-flash",
		Provider:       ProviderGemini,
		DisplayName:    "Gemini 2.5 Flash",
		Description:    "Low-latency Gemini model for chat",
		Category:       "fast",
		SupportsImages: true,
		MaxTokens:      8192,
		Pricing:        Pricing{Input: 0.3, Output: 2.5},
	},
}

// LookupModel returns the registry entry for a model id.
func LookupModel(modelID string) (ModelInfo, bool) {
	info, ok := Registry[modelID]
	return info, ok
}

// ListModels returns every registry entry, for the /models endpoint.
func ListModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(Registry))
	for _, info := range Registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// Cost computes the USD cost of a turn from token counts and the
// model's per-million pricing.
func Cost(p Pricing, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*p.Input + float64(outputTokens)/1e6*p.Output
}
