package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

type mockQuery struct {
	answer   *domain.Answer
	results  []domain.RetrievalResult
	cls      domain.Classification
	err      error
	question string
	opts     domain.RetrieveOptions
}

func (m *mockQuery) Classify(_ context.Context, q string) (domain.Classification, error) {
	m.question = q
	return m.cls, m.err
}

func (m *mockQuery) Retrieve(
	_ context.Context, q string, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, domain.Classification, error) {
	m.question, m.opts = q, opts
	return m.results, m.cls, m.err
}

func (m *mockQuery) Ask(_ context.Context, q string, opts domain.RetrieveOptions) (*domain.Answer, error) {
	m.question, m.opts = q, opts
	return m.answer, m.err
}

type mockIngest struct {
	failPaths map[string]error
	ingested  []string
	removed   []string
	statuses  []domain.IngestionStatus
	err       error
}

func (m *mockIngest) Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.IngestionStatus, error) {
	return m.IngestFile(ctx, raw.URI)
}

func (m *mockIngest) IngestFile(_ context.Context, path string) (*domain.IngestionStatus, error) {
	m.ingested = append(m.ingested, path)
	if err := m.failPaths[path]; err != nil {
		return nil, err
	}
	return &domain.IngestionStatus{DocumentID: "doc", URI: path, State: domain.IngestionIndexed, ChunksTotal: 3, ChunksIndexed: 3}, nil
}

func (m *mockIngest) Remove(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockIngest) Status(_ context.Context, id string) (*domain.IngestionStatus, error) {
	for i := range m.statuses {
		if m.statuses[i].DocumentID == id {
			return &m.statuses[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngest) ListStatus(_ context.Context) ([]domain.IngestionStatus, error) {
	return m.statuses, m.err
}

type mockLibrary struct {
	docs    []domain.Document
	reports []domain.ClusterReport
	stats   *domain.CollectionStats
	dups    *domain.DuplicateStats
	ids     []string
	err     error
}

func (m *mockLibrary) Documents(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockLibrary) Stats(_ context.Context) (*domain.CollectionStats, error) {
	return m.stats, m.err
}

func (m *mockLibrary) Duplicates(_ context.Context, ids []string) ([]domain.ClusterReport, error) {
	m.ids = ids
	return m.reports, m.err
}

func (m *mockLibrary) DuplicateStats(_ context.Context) (*domain.DuplicateStats, error) {
	return m.dups, m.err
}

type mockSettings struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error
	embedding   domain.AIProvider
	llm         domain.AIProvider
	model       string
	saved       bool
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(s *domain.AppSettings) error {
	m.settings = *s
	m.saved = true
	return nil
}

func (m *mockSettings) SetEmbeddingProvider(p domain.AIProvider, model string) error {
	m.embedding, m.model = p, model
	return nil
}

func (m *mockSettings) SetLLMProvider(p domain.AIProvider, model string) error {
	m.llm, m.model = p, model
	return nil
}

func (m *mockSettings) Validate() error { return m.validateErr }

func (m *mockSettings) ValidateEmbeddingConfig() error { return m.pingErr }

func (m *mockSettings) ValidateLLMConfig() error { return m.pingErr }

type testServices struct {
	query   *mockQuery
	ingest  *mockIngest
	library *mockLibrary
}

// setupTestServices installs mock services and restores global state after the test.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		query:   &mockQuery{},
		ingest:  &mockIngest{},
		library: &mockLibrary{},
	}
	services = &Services{
		Ingest:     ts.ingest,
		Query:      ts.query,
		Library:    ts.library,
		Supports:   func(p string) bool { return strings.HasSuffix(p, ".txt") || strings.HasSuffix(p, ".pdf") },
		DocumentID: func(uri string) string { return "id:" + uri },
	}
	t.Cleanup(func() {
		services = nil
		resetFlags()
	})
	return ts
}

// setupConfigPorts installs a mock settings service and feeds input to prompts.
func setupConfigPorts(t *testing.T, input string) *mockSettings {
	t.Helper()
	m := &mockSettings{settings: domain.DefaultAppSettings()}
	configPorts = &ConfigPorts{
		Settings: m,
		Tunables: func() (domain.Tunables, error) { return domain.DefaultTunables(), nil },
		Path:     "/tmp/paperlens/config.toml",
	}
	prev, prevInteractive := stdin, interactive
	stdin = bufio.NewReader(strings.NewReader(input))
	interactive = false
	t.Cleanup(func() {
		configPorts = nil
		stdin, interactive = prev, prevInteractive
		resetFlags()
	})
	return m
}

func resetFlags() {
	askFlags.reset()
	retrieveFlags.reset()
	classifyJSON = false
	ingestConcurrency = 4
	ingestJSON = false
	documentsJSON = false
	statusJSON = false
	statsJSON = false
	duplicatesJSON = false
	duplicatesDocs = nil
	configPing = false
	versionShort = false
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func requireContains(t *testing.T, out string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		require.Contains(t, out, p)
	}
}
