package ai

import "context"

// TextGenerator produces text from a system prompt and a user prompt.
// Generative providers implement this interface; consumers degrade to their
// documented fallbacks when a call fails.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
