package llm

import "context"

// Params tunes a single completion call. Nil fields fall back to
// backend-specific defaults.
type Params struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any text-generation backend.
// The system prompt carries the output contract (schema, constraints); the
// user prompt carries the request. Backends make no format guarantees —
// callers own response cleanup and validation.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, params Params) (string, error)
}
