package driving

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// QueryService runs the query path: classify, retrieve, synthesise.
type QueryService interface {
	// Classify infers the intent of a question.
	Classify(ctx context.Context, question string) (domain.Classification, error)

	// Retrieve returns ranked, deduplicated evidence for a question.
	Retrieve(ctx context.Context, question string, opts domain.RetrieveOptions) ([]domain.RetrievalResult, domain.Classification, error)

	// Ask answers a question with citations and a confidence score.
	Ask(ctx context.Context, question string, opts domain.RetrieveOptions) (*domain.Answer, error)
}
