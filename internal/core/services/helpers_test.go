package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	storemem "github.com/custodia-labs/paperlens/internal/adapters/driven/storage/memory"
	vecmem "github.com/custodia-labs/paperlens/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// vocabulary gives each listed word its own embedding axis.
var vocabulary = []string{
	"attention", "transformer", "accuracy", "dataset", "training", "residual",
	"image", "translation", "bleu", "layers", "protein", "folding",
}

// keywordEmbedder counts vocabulary words, so similarities in tests can be
// worked out by hand. Texts containing a key of fail return its error.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{fail: map[string]error{}}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	for marker, err := range e.fail {
		if strings.Contains(text, marker) {
			return nil, err
		}
	}
	return keywordVector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) Dimensions() int { return len(vocabulary) }
func (e *keywordEmbedder) ModelName() string { return "keywords" }
func (e *keywordEmbedder) Ping(context.Context) error { return nil }
func (e *keywordEmbedder) Close() error { return nil }

func keywordVector(text string) []float32 {
	vec := make([]float32, len(vocabulary))
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		for i, v := range vocabulary {
			if w == v {
				vec[i]++
			}
		}
	}
	return vec
}

// paragraphSegmenter makes one section and one chunk per paragraph.
// A paragraph opening with "<label>:" gets that section label.
type paragraphSegmenter struct{}

func (paragraphSegmenter) Segment(
	raw *domain.RawDocument, documentID string, generation int64,
) ([]domain.Section, []domain.Chunk, error) {
	text := raw.Text()
	var sections []domain.Section
	var chunks []domain.Chunk
	offset := 0
	for _, para := range strings.Split(text, "\n\n") {
		start := offset
		offset += len([]rune(para)) + 2
		if strings.TrimSpace(para) == "" {
			continue
		}
		label := domain.SectionUnknown
		if head, _, ok := strings.Cut(para, ":"); ok {
			label = domain.ParseSectionLabel(strings.TrimSpace(head))
		}
		end := start + len([]rune(para))
		sections = append(sections, domain.Section{Label: label, Text: para, Start: start, End: end})
		ordinal := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:           fmt.Sprintf("%s#%d#%d", documentID, generation, ordinal),
			DocumentID:   documentID,
			Section:      label,
			SectionIndex: len(sections) - 1,
			Ordinal:      ordinal,
			Text:         para,
			Start:        start,
			End:          end,
			Page:         1,
			Generation:   generation,
		})
	}
	return sections, chunks, nil
}

// stubLLM returns queued errors first, then text.
type stubLLM struct {
	mu        sync.Mutex
	text      string
	truncated bool
	errs      []error
	prompts   []string
	systems   []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (driven.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.systems = append(s.systems, opts.System)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return driven.Generation{}, err
	}
	return driven.Generation{Text: s.text, Truncated: s.truncated}, nil
}

func (s *stubLLM) ModelName() string { return "stub" }
func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Close() error { return nil }

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// stubExtractor serves RawDocuments keyed by path.
type stubExtractor struct {
	docs map[string]*domain.RawDocument
}

func (x *stubExtractor) Name() string { return "stub" }

func (x *stubExtractor) Supports(path string) bool {
	return strings.HasSuffix(path, ".txt")
}

func (x *stubExtractor) Extract(_ context.Context, path string) (*domain.RawDocument, error) {
	raw, ok := x.docs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

// testTunables keeps defaults but makes retries fast.
func testTunables() domain.Tunables {
	t := domain.DefaultTunables()
	t.EmbeddingDimension = len(vocabulary)
	for _, p := range []*domain.RetryPolicy{&t.EmbeddingRetry, &t.VectorStoreRetry, &t.GenerationRetry} {
		p.InitialBackoff = time.Millisecond
		p.MaxBackoff = time.Millisecond
	}
	return t
}

type fixture struct {
	docs     *storemem.DocumentStore
	vectors  *vecmem.VectorStore
	embedder *keywordEmbedder
	detector *DuplicateDetector
	tun      domain.Tunables
	indexer  *Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testTunables())
}

func newFixtureWith(t *testing.T, tun domain.Tunables) *fixture {
	t.Helper()
	f := &fixture{
		docs:     storemem.NewDocumentStore(),
		vectors:  vecmem.NewVectorStore(len(vocabulary)),
		embedder: newKeywordEmbedder(),
		detector: NewDuplicateDetector(tun.DuplicateThreshold, tun.RepresentativeRecomputeSize),
		tun:      tun,
	}
	f.indexer = NewIndexer(f.docs, f.vectors, f.embedder, paragraphSegmenter{}, f.detector, tun, paperID)
	f.indexer.now = tickingClock()
	return f
}

// tickingClock advances one second per call so timestamps are distinct.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func (f *fixture) retriever() *Retriever {
	return NewRetriever(f.embedder, f.vectors, f.docs, f.detector, f.tun)
}

// ingest indexes a document whose paragraphs are joined by blank lines.
func (f *fixture) ingest(t *testing.T, uri, title string, paragraphs ...string) *domain.IngestionStatus {
	t.Helper()
	status, err := f.indexer.Ingest(context.Background(), paper(uri, title, paragraphs...))
	require.NoError(t, err)
	return status
}

func paper(uri, title string, paragraphs ...string) *domain.RawDocument {
	return &domain.RawDocument{
		URI:   uri,
		Title: title,
		Pages: []domain.Page{{Number: 1, Text: strings.Join(paragraphs, "\n\n")}},
	}
}

func paperID(uri string) string {
	return strings.TrimPrefix(uri, "paper://")
}

// seedCorpus ingests two papers used across retrieval tests.
//
//	attention#0  abstract  attention transformer
//	attention#1  methods   training transformer attention layers
//	attention#2  results   transformer bleu translation
//	resnet#0     methods   residual layers training image dataset
//	resnet#1     results   residual image accuracy
func seedCorpus(t *testing.T, f *fixture) {
	t.Helper()
	f.ingest(t, "paper://attention", "Attention Is All You Need",
		"abstract: The transformer relies on attention.",
		"methods: Training the transformer with attention layers.",
		"results: The transformer reached 28.4 BLEU on translation.",
	)
	f.ingest(t, "paper://resnet", "Deep Residual Learning for Image Recognition",
		"methods: Residual layers ease training on an image dataset.",
		"results: Residual networks improve image accuracy.",
	)
}
