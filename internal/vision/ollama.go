package vision

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
)

// OllamaClient queries a vision model served by a local Ollama
// instance through the agent-api provider.
type OllamaClient struct {
	agent  *agent.Agent
	logger *slog.Logger
}

// OllamaOptions configures the Ollama connection.
type OllamaOptions struct {
	BaseURL string // default http://localhost
	Port    int    // default 11434
	Model   string // default llama3.2-vision:11b
}

// NewOllamaClient sets up the provider and agent. The model is pulled
// lazily by Ollama on first use.
func NewOllamaClient(ctx context.Context, opts OllamaOptions, logger *slog.Logger) (*OllamaClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost"
	}
	if opts.Port == 0 {
		opts.Port = 11434
	}
	if opts.Model == "" {
		opts.Model = "llama3.2-vision:11b"
	}

	lgr := logr.FromSlogHandler(logger.Handler())
	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &lgr,
		BaseURL: opts.BaseURL,
		Port:    opts.Port,
	})
	provider.UseModel(ctx, &core.Model{ID: opts.Model})

	visionAgent, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&lgr),
		bootstrap.WithSystemPrompt(SystemPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("vision: creating agent: %w", err)
	}

	return &OllamaClient{agent: visionAgent, logger: logger}, nil
}

// Query sends one frame and the prompt, returning the model's final
// message text. The agent API consumes images by path, so the payload
// is staged in a temp file for the duration of the call.
func (c *OllamaClient) Query(ctx context.Context, image []byte, prompt string) (string, error) {
	f, err := os.CreateTemp("", "cruxview-frame-*.jpg")
	if err != nil {
		return "", fmt.Errorf("vision: staging frame: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", fmt.Errorf("vision: staging frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("vision: staging frame: %w", err)
	}

	response, err := c.agent.Run(ctx,
		agent.WithInput(prompt),
		agent.WithImagePath(f.Name()),
	)
	if err != nil {
		return "", fmt.Errorf("vision: %w", err)
	}
	if len(response.Messages) == 0 {
		return "", fmt.Errorf("vision: no response messages from model")
	}

	content := response.Messages[len(response.Messages)-1].Content
	c.logger.Debug("vision response received", "bytes", len(content))
	return content, nil
}
