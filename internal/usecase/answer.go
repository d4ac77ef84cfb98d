package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// NoContextAnswer is returned without calling the generator when retrieval
// finds nothing.
const NoContextAnswer = "I could not find relevant context in the indexed documents."

// AnswerService answers questions from retrieved context.
type AnswerService struct {
	retriever port.Retriever
	generator port.Generator
	topK      int
	logger    *slog.Logger
}

func NewAnswerService(retriever port.Retriever, generator port.Generator, topK int, logger *slog.Logger) *AnswerService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{
		retriever: retriever,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Ask retrieves context for question, prompts the generator and returns
// the reply with its provenance. Elapsed covers the whole round trip.
func (s *AnswerService) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	start := time.Now()

	result := s.retriever.Retrieve(ctx, question, s.topK)
	answer := &domain.Answer{
		Question:   question,
		Context:    result.Context,
		Sources:    result.Sources,
		Confidence: result.Confidence,
	}

	if result.Empty() {
		s.logger.Info("no context found", "question", question)
		answer.Text = NoContextAnswer
		answer.Elapsed = time.Since(start)
		return answer, nil
	}

	text, err := s.generator.Generate(ctx, BuildPrompt(question, result.Context))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer with %s: %w", s.generator.ModelName(), err)
	}
	answer.Text = text
	answer.Elapsed = time.Since(start)

	s.logger.Info("question answered",
		"sources", result.Sources,
		"confidence", result.Confidence,
		"elapsed", answer.Elapsed)
	return answer, nil
}
