package port

import "context"

// Generator produces an answer for a fully built prompt.
type Generator interface {
	// Generate sends the prompt and returns the model's text.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
