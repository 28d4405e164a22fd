package domain

// PreferenceKey is the fixed key the provider preference is stored under.
const PreferenceKey = "llmConfig"

// Providers accepted by the backend. The client only checks for a non-empty
// value; the backend rejects anything else.
var Providers = []string{"openai", "gemini", "anthropic", "groq"}

type QueryRequest struct {
	QueryText string `json:"query_text"`
	Provider  string `json:"llm_provider"`
}

type ProviderPreference struct {
	Provider string `json:"provider"`
}

func IsKnownProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}
