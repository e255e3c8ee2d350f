package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return the
	// built-in default or an error when none exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptRAGSystem is the system prompt for grounded chat.
	// The template expects a %s placeholder for the retrieved context.
	PromptRAGSystem = "rag_system"

	// PromptEmptyContext replaces the context block when retrieval
	// returned nothing. It has no placeholders.
	PromptEmptyContext = "rag_empty_context"
)
