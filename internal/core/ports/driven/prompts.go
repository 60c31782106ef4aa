package driven

// PromptStore supplies prompt text by name. Intent instruction frames are
// stored under the intent name (e.g. "method"); the system prompt under
// PromptSystem.
type PromptStore interface {
	// Load returns the prompt text for name.
	Load(name string) (string, error)
}

// PromptSystem names the system prompt for answer synthesis.
const PromptSystem = "system"
