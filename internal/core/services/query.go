package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService runs the query path: classify, retrieve, synthesise.
type QueryService struct {
	docStore    driven.DocumentStore
	classifier  *Classifier
	retriever   *Retriever
	synthesizer *Synthesizer
	topK        int
}

// NewQueryService creates a query service.
func NewQueryService(
	docStore driven.DocumentStore,
	classifier *Classifier,
	retriever *Retriever,
	synthesizer *Synthesizer,
	tun domain.Tunables,
) *QueryService {
	return &QueryService{
		docStore:    docStore,
		classifier:  classifier,
		retriever:   retriever,
		synthesizer: synthesizer,
		topK:        tun.TopKResults,
	}
}

// Classify infers the intent of question. It never fails on content; a
// catalogue that cannot be listed only disables document references.
func (s *QueryService) Classify(ctx context.Context, question string) (domain.Classification, error) {
	catalog, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		logger.Warn("List documents for classification: %v", err)
		catalog = nil
	}
	cls := s.classifier.Classify(question, catalog)
	logger.Debug("Classified %q as %s (%d referenced documents)", question, cls.Intent, len(cls.DocumentIDs))
	return cls, nil
}

// Retrieve classifies question and returns ranked evidence.
func (s *QueryService) Retrieve(
	ctx context.Context, question string, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, domain.Classification, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.Classification{Intent: domain.IntentGeneric},
			fmt.Errorf("retrieve: %w: empty question", domain.ErrInvalidInput)
	}
	cls, _ := s.Classify(ctx, question)
	results, err := s.retriever.Retrieve(ctx, question, cls, opts)
	if err != nil {
		return nil, cls, err
	}
	return results, cls, nil
}

// Ask answers question with citations and a confidence score.
func (s *QueryService) Ask(ctx context.Context, question string, opts domain.RetrieveOptions) (*domain.Answer, error) {
	results, cls, err := s.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}
	return s.synthesizer.Synthesize(ctx, question, cls.Intent, results, topK)
}
