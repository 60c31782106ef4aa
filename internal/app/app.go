// Package app wires configuration, adapters and core services into one
// application context. It is built once at process start and closed at
// shutdown; nothing in the core holds a global client handle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/paperlens/internal/adapters/driven/ai"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/config/file"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/extractor"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/tokenizer/tiktoken"
	memvectors "github.com/custodia-labs/paperlens/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/vectorstore/postgres"
	"github.com/custodia-labs/paperlens/internal/adapters/driving/cli"
	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/core/services"
	"github.com/custodia-labs/paperlens/internal/logger"
	"github.com/custodia-labs/paperlens/internal/segmenter"
)

// Environment overrides.
const (
	EnvConfigDir   = "PAPERLENS_CONFIG_DIR"
	EnvDataDir     = "PAPERLENS_DATA_DIR"
	EnvOllamaHost  = "PAPERLENS_OLLAMA_HOST"
	EnvPostgresDSN = "PAPERLENS_PG_DSN"
)

// MemoryConfigDir selects an in-memory config store: nothing is read from
// or written to disk, so settings come from defaults and the environment.
const MemoryConfigDir = ":memory:"

// Config is the configuration side of the application. It never touches
// the network, so config commands work offline.
type Config struct {
	Store    driven.ConfigStore
	Settings *services.SettingsService
	dir      string
}

// LoadConfig opens the TOML config store in dir, or in
// PAPERLENS_CONFIG_DIR, or in ~/.paperlens. MemoryConfigDir keeps the
// configuration in memory, with prompts and uploads under the temp dir.
func LoadConfig(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvConfigDir)
	}
	if dir == MemoryConfigDir {
		store := memory.NewConfigStore(nil)
		return &Config{
			Store:    store,
			Settings: services.NewSettingsService(store, ai.NewConfigValidator()),
			dir:      filepath.Join(os.TempDir(), "paperlens"),
		}, nil
	}
	store, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, domain.NewConfigurationError("config", err)
	}
	return &Config{
		Store:    store,
		Settings: services.NewSettingsService(store, ai.NewConfigValidator()),
		dir:      filepath.Dir(store.Path()),
	}, nil
}

// Tunables loads and validates the core tunables.
func (c *Config) Tunables() (domain.Tunables, error) {
	t, err := file.LoadTunables(c.Store)
	if err != nil {
		return t, err
	}
	if err := file.ValidateTunables(t); err != nil {
		return t, err
	}
	return t, nil
}

// AppSettings returns the stored settings with environment overrides applied.
func (c *Config) AppSettings() (domain.AppSettings, error) {
	s, err := c.Settings.Get()
	if err != nil {
		return domain.AppSettings{}, err
	}
	applyEnv(s)
	return *s, nil
}

// Ports returns the ports used by the config commands.
func (c *Config) Ports() *cli.ConfigPorts {
	return &cli.ConfigPorts{
		Settings: c.Settings,
		Tunables: c.Tunables,
		Path:     c.Store.Path(),
	}
}

func applyEnv(s *domain.AppSettings) {
	if v := os.Getenv(EnvDataDir); v != "" {
		s.Storage.DataDir = v
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		s.Embedding.BaseURL = v
		s.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		s.Storage.PostgresDSN = v
		s.Storage.VectorBackend = domain.VectorBackendPostgres
	}
}

// App holds every long-lived component.
type App struct {
	Tunables  domain.Tunables
	Settings  domain.AppSettings
	DocStore  driven.DocumentStore
	Vectors   driven.VectorStore
	Extractor *extractor.Registry
	Detector  *services.DuplicateDetector
	Indexer   *services.Indexer
	Query     *services.QueryService
	Library   *services.LibraryService
	UploadDir string

	closers []func() error
}

// New builds the application from cfg. Invalid tunables or an unusable
// embedding provider are fatal; an unreachable language model only
// disables answer generation.
func New(ctx context.Context, cfg *Config) (*App, error) {
	tun, err := cfg.Tunables()
	if err != nil {
		return nil, err
	}
	settings, err := cfg.AppSettings()
	if err != nil {
		return nil, err
	}

	// The hashing embedder produces whatever dimension the tunables ask for.
	if settings.Embedding.Provider == domain.AIProviderHashing {
		settings.Embedding.Dimensions = tun.EmbeddingDimension
	}

	a := &App{Settings: settings}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	aiResult, err := ai.Initialise(settings)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { aiResult.Close(); return nil })
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}

	embedder := aiResult.EmbeddingService
	if dims := embedder.Dimensions(); dims != tun.EmbeddingDimension {
		if _, set := cfg.Store.Get(file.TunablesPrefix + "embedding_dimension"); set {
			return nil, domain.NewConfigurationError("embedding_dimension",
				fmt.Errorf("%w: configured %d, model %s produces %d",
					domain.ErrDimensionMismatch, tun.EmbeddingDimension, embedder.ModelName(), dims))
		}
		logger.Debug("Using embedding dimension %d from %s", dims, embedder.ModelName())
		tun.EmbeddingDimension = dims
	}
	a.Tunables = tun

	if err := a.openStorage(ctx, settings.Storage, tun.EmbeddingDimension); err != nil {
		return nil, err
	}

	a.UploadDir = filepath.Join(cfg.dir, "uploads")
	if err := os.MkdirAll(a.UploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	a.Extractor = extractor.Default()
	a.Detector = services.NewDuplicateDetector(tun.DuplicateThreshold, tun.RepresentativeRecomputeSize)

	seg := segmenter.New(segmenter.FromTunables(tun)...)
	a.Indexer = services.NewIndexer(a.DocStore, a.Vectors, embedder, seg, a.Detector, tun, segmenter.DocumentID)
	a.Indexer.SetExtractor(a.Extractor)

	prompts, err := file.NewPromptStore(filepath.Join(cfg.dir, "prompts"), services.DefaultPrompts())
	if err != nil {
		return nil, err
	}
	synth := services.NewSynthesizer(aiResult.LLMService, tiktoken.NewCounter(settings.LLM.Model), tun)
	synth.SetPromptStore(prompts)

	retriever := services.NewRetriever(embedder, a.Vectors, a.DocStore, a.Detector, tun)
	a.Query = services.NewQueryService(a.DocStore, services.NewClassifier(), retriever, synth, tun)
	a.Library = services.NewLibraryService(a.DocStore, a.Detector)

	if err := a.Indexer.RebuildDuplicates(ctx); err != nil {
		logger.Warn("Duplicate clusters unavailable: %v", err)
	}

	ok = true
	return a, nil
}

func (a *App) openStorage(ctx context.Context, st domain.StorageSettings, dims int) error {
	switch st.VectorBackend {
	case domain.VectorBackendMemory:
		a.DocStore = memory.NewDocumentStore()
		a.Vectors = memvectors.NewVectorStore(dims)
		return nil

	case domain.VectorBackendPostgres:
		store, err := sqlite.NewStore(st.DataDir)
		if err != nil {
			return fmt.Errorf("open metadata store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		vectors, err := postgres.NewVectorStore(ctx, postgres.Config{
			DSN:        st.PostgresDSN,
			Table:      st.PostgresTable,
			Dimensions: dims,
		})
		if err != nil {
			return fmt.Errorf("open pgvector store: %w", err)
		}
		a.closers = append(a.closers, vectors.Close)
		a.DocStore = store.DocumentStore()
		a.Vectors = vectors
		return nil

	default:
		store, err := sqlite.NewStore(st.DataDir)
		if err != nil {
			return fmt.Errorf("open metadata store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		vectors, err := store.VectorStore(ctx, dims)
		if err != nil {
			return fmt.Errorf("load vectors: %w", err)
		}
		a.DocStore = store.DocumentStore()
		a.Vectors = vectors
		return nil
	}
}

// Services exposes the application through the CLI's driving ports.
func (a *App) Services() *cli.Services {
	return &cli.Services{
		Ingest:     a.Indexer,
		Query:      a.Query,
		Library:    a.Library,
		Supports:   a.Extractor.Supports,
		DocumentID: segmenter.DocumentID,
		UploadDir:  a.UploadDir,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ServiceFactory returns a cli.ServiceFactory building the App from cfg.
func ServiceFactory(cfg *Config) cli.ServiceFactory {
	return func(ctx context.Context) (*cli.Services, func(), error) {
		a, err := New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return a.Services(), func() {
			if err := a.Close(); err != nil {
				logger.Warn("Shutdown: %v", err)
			}
		}, nil
	}
}
