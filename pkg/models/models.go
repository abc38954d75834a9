// Package models holds the static catalog of known LLM models and their
// providers.
package models

// Provider identifies an LLM backend with its own wire protocol.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
)

// Model describes one catalog entry. Identifier is the provider's wire-level
// model name.
type Model struct {
	DisplayName string   `json:"display_name"`
	Identifier  string   `json:"identifier"`
	Provider    Provider `json:"provider"`
}

// Catalog lists every known model. The first entry is the default: Resolve
// falls back to it for unknown identifiers, and the settings store uses it
// when no model has been chosen. Identifiers must be unique.
var Catalog = []Model{
	{DisplayName: "GPT-4o", Identifier: "gpt-4o", Provider: ProviderOpenAI},
	{DisplayName: "GPT-4o Mini", Identifier: "gpt-4o-mini", Provider: ProviderOpenAI},
	{DisplayName: "GPT-4.1", Identifier: "gpt-4.1", Provider: ProviderOpenAI},
	{DisplayName: "o1", Identifier: "o1", Provider: ProviderOpenAI},
	{DisplayName: "o3 Mini", Identifier: "o3-mini", Provider: ProviderOpenAI},
	{DisplayName: "Gemini Flash", Identifier: "gemini-2.0-flash", Provider: ProviderGemini},
	{DisplayName: "Gemini Flash Lite", Identifier: "gemini-2.0-flash-lite", Provider: ProviderGemini},
	{DisplayName: "Gemini 1.5 Pro", Identifier: "gemini-1.5-pro", Provider: ProviderGemini},
	{DisplayName: "Gemini 1.5 Flash", Identifier: "gemini-1.5-flash", Provider: ProviderGemini},
	{DisplayName: "Claude 3.5 Sonnet", Identifier: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter},
	{DisplayName: "Claude 3.5 Haiku", Identifier: "anthropic/claude-3.5-haiku", Provider: ProviderOpenRouter},
	{DisplayName: "Claude 3.7 Sonnet", Identifier: "anthropic/claude-3.7-sonnet", Provider: ProviderOpenRouter},
	{DisplayName: "Llama 3.3 70B", Identifier: "meta-llama/llama-3.3-70b-instruct", Provider: ProviderOpenRouter},
	{DisplayName: "Llama 3.1 405B", Identifier: "meta-llama/llama-3.1-405b-instruct", Provider: ProviderOpenRouter},
	{DisplayName: "DeepSeek V3", Identifier: "deepseek/deepseek-chat", Provider: ProviderOpenRouter},
	{DisplayName: "Mistral Large", Identifier: "mistralai/mistral-large", Provider: ProviderOpenRouter},
}

// Resolve returns the catalog entry with the given identifier. Unknown
// identifiers resolve to the catalog's first entry rather than an error.
func Resolve(identifier string) Model {
	for _, m := range Catalog {
		if m.Identifier == identifier {
			return m
		}
	}
	return Catalog[0]
}

// Providers returns the distinct providers present in the catalog, in
// catalog order.
func Providers() []Provider {
	seen := make(map[Provider]bool)
	var out []Provider
	for _, m := range Catalog {
		if !seen[m.Provider] {
			seen[m.Provider] = true
			out = append(out, m.Provider)
		}
	}
	return out
}

// ForProvider returns the catalog entries for one provider, preserving
// catalog order.
func ForProvider(p Provider) []Model {
	var out []Model
	for _, m := range Catalog {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return out
}
