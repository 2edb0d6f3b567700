// Package vision defines the client boundary to the vision-capable
// language model and its Ollama-backed implementation.
package vision

import "context"

// Client sends one frame plus a prompt to the vision model and
// returns its raw text. Implementations must honor context
// cancellation; the pipeline issues calls one frame at a time.
type Client interface {
	Query(ctx context.Context, image []byte, prompt string) (string, error)
}
