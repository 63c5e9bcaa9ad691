// Package llm abstracts the chat-completion capability of AI vendors.
// Each provider translates a single prompt into its vendor wire format;
// everything above this layer is vendor-agnostic.
package llm

import "context"

// Provider defines the interface for LLM providers
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request holds the completion parameters
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Response holds the response from the LLM
type Response struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage tracks token consumption
type Usage struct {
	InputTokens  int
	OutputTokens int
}
