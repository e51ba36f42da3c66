// Package llm wraps the generation provider behind a small interface so
// services can be tested with stubs and the provider swapped in one place.
package llm

import "context"

// Request is a single generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	JSONOutput  bool
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
