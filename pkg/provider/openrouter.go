package provider

const openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouter is the OpenAI-compatible handler pointed at OpenRouter's base
// URL. Models on this provider are namespaced with a slash in their
// identifier (e.g. "anthropic/claude-3.5-sonnet").
type OpenRouter struct {
	OpenAI
}

func (OpenRouter) APIURL(modelID, apiKey string) string {
	return openRouterEndpoint
}
