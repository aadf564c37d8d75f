package nlu

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the external language-model oracle. Both methods make exactly
// one bounded attempt; retrying risks inconsistent extractions, so callers
// degrade instead.
type Provider interface {
	// Complete phrases a reply given a system prompt and conversation history.
	Complete(ctx context.Context, system string, history []Message) (string, error)
	// CompleteJSON asks for a strict JSON object and returns the raw payload.
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}
