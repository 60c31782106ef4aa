package cli

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

var errConfigNotConfigured = errors.New("settings service not configured")

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View, validate and change provider, storage and tuning settings.

Settings live in ~/.paperlens/config.toml. PAPERLENS_* environment
variables override the file.`,
	Annotations: offline(),
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Checks settings and tunables. With --ping, also contacts the embedding
and generation providers.`,
	RunE: runConfigValidate,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	RunE:  runConfigEmbedding,
}

var configLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure answer generation",
	RunE:  runConfigLLM,
}

var configStorageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Configure the vector backend",
	RunE:  runConfigStorage,
}

var configPing bool

// stdin is the prompt input; tests replace it.
var (
	stdin       = bufio.NewReader(os.Stdin)
	interactive = term.IsTerminal(int(os.Stdin.Fd()))
)

func init() {
	configValidateCmd.Flags().BoolVar(&configPing, "ping", false, "contact the configured providers")
	configCmd.AddCommand(configShowCmd, configValidateCmd, configEmbeddingCmd, configLLMCmd, configStorageCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configPorts == nil || configPorts.Settings == nil {
		return errConfigNotConfigured
	}

	settings, err := configPorts.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if configPorts.Path != "" {
		cmd.Printf("Config file: %s\n\n", configPorts.Path)
	}

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	if settings.Embedding.Provider == domain.AIProviderOllama {
		cmd.Printf("  Model: %s\n", settings.Embedding.Model)
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	printRate(cmd, settings.Embedding.RequestsPerSecond, settings.Embedding.Burst)
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	if settings.LLM.IsConfigured() {
		cmd.Printf("  Model: %s\n", settings.LLM.Model)
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
		cmd.Printf("  Max tokens: %d\n", settings.LLM.MaxTokens)
		cmd.Printf("  Temperature: %.2f\n", settings.LLM.Temperature)
	}
	printRate(cmd, settings.LLM.RequestsPerSecond, settings.LLM.Burst)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Data dir: %s\n", orDash(settings.Storage.DataDir))
	cmd.Printf("  Vector backend: %s\n", settings.Storage.VectorBackend)
	if settings.Storage.VectorBackend == domain.VectorBackendPostgres {
		cmd.Printf("  DSN: %s\n", maskDSN(settings.Storage.PostgresDSN))
		cmd.Printf("  Table: %s\n", settings.Storage.PostgresTable)
	}
	cmd.Println()

	if configPorts.Tunables != nil {
		t, err := configPorts.Tunables()
		if err != nil {
			cmd.Printf("Warning: %v\n\n", err)
		} else {
			cmd.Println("[Tunables]")
			cmd.Printf("  Chunk size: %d-%d (overlap %d)\n", t.MinChunkSize, t.MaxChunkSize, t.ChunkOverlap)
			cmd.Printf("  Top K: %d (over-fetch x%d)\n", t.TopKResults, t.OverFetchFactor)
			cmd.Printf("  Similarity threshold: %.2f\n", t.SimilarityThreshold)
			cmd.Printf("  Duplicate threshold: %.2f\n", t.DuplicateThreshold)
			cmd.Printf("  Section bonus: %.2f\n", t.SectionBonus)
			cmd.Printf("  Embedding dimension: %d\n", t.EmbeddingDimension)
			cmd.Printf("  Max context tokens: %d\n", t.MaxContextTokens)
			cmd.Println()
		}
	}

	if err := configPorts.Settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'paperlens config validate' for details.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func printRate(cmd *cobra.Command, rps float64, burst int) {
	if rps > 0 {
		cmd.Printf("  Rate limit: %.1f/s (burst %d)\n", rps, burst)
	}
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if configPorts == nil || configPorts.Settings == nil {
		return errConfigNotConfigured
	}

	var errs []error
	if err := configPorts.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	if configPorts.Tunables != nil {
		if _, err := configPorts.Tunables(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if configPing {
		cmd.Print("Embedding provider... ")
		if err := configPorts.Settings.ValidateEmbeddingConfig(); err != nil {
			cmd.Println("FAILED")
			return err
		}
		cmd.Println("OK")
		cmd.Print("LLM provider... ")
		if err := configPorts.Settings.ValidateLLMConfig(); err != nil {
			cmd.Println("FAILED")
			return err
		}
		cmd.Println("OK")
	}

	cmd.Println("Configuration is valid.")
	return nil
}

func runConfigEmbedding(cmd *cobra.Command, _ []string) error {
	if configPorts == nil || configPorts.Settings == nil {
		return errConfigNotConfigured
	}

	providers := []domain.AIProvider{domain.AIProviderHashing, domain.AIProviderOllama}
	cmd.Println("Select Embedding Provider")
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	selected := providers[parseChoice(readLine(stdin), len(providers), 1)-1]

	model := ""
	if selected == domain.AIProviderOllama {
		cmd.Printf("Enter model name [%s]: ", domain.DefaultOllamaEmbedModel)
		model = readLine(stdin)
	}

	if err := configPorts.Settings.SetEmbeddingProvider(selected, model); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := configPorts.Settings.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	cmd.Printf("Embedding provider configured: %s\n", selected.Description())
	cmd.Println("Re-ingest your papers: vectors from different models are not comparable.")
	return nil
}

func runConfigLLM(cmd *cobra.Command, _ []string) error {
	if configPorts == nil || configPorts.Settings == nil {
		return errConfigNotConfigured
	}

	providers := []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderNone}
	cmd.Println("Select LLM Provider")
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	selected := providers[parseChoice(readLine(stdin), len(providers), 1)-1]

	model := ""
	if selected == domain.AIProviderOllama {
		cmd.Printf("Enter model name [%s]: ", domain.DefaultOllamaLLMModel)
		model = readLine(stdin)
	}

	if err := configPorts.Settings.SetLLMProvider(selected, model); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}
	if selected == domain.AIProviderNone {
		cmd.Println("Answer generation disabled. Retrieval commands still work.")
		return nil
	}

	cmd.Print("Validating configuration... ")
	if err := configPorts.Settings.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	cmd.Printf("LLM provider configured: %s\n", selected.Description())
	return nil
}

func runConfigStorage(cmd *cobra.Command, _ []string) error {
	if configPorts == nil || configPorts.Settings == nil {
		return errConfigNotConfigured
	}

	settings, err := configPorts.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	backends := []domain.VectorBackend{domain.VectorBackendSQLite, domain.VectorBackendPostgres, domain.VectorBackendMemory}
	cmd.Println("Select Vector Backend")
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b)
	}
	cmd.Print("\nEnter choice [1]: ")
	settings.Storage.VectorBackend = backends[parseChoice(readLine(stdin), len(backends), 1)-1]

	if settings.Storage.VectorBackend == domain.VectorBackendPostgres {
		cmd.Print("Enter PostgreSQL DSN: ")
		dsn := readPassword()
		cmd.Println()
		if dsn == "" {
			return errors.New("a DSN is required for the postgres backend")
		}
		settings.Storage.PostgresDSN = dsn
	}

	if err := configPorts.Settings.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("Vector backend set to %s\n", settings.Storage.VectorBackend)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when stdin is a terminal.
func readPassword() string {
	if interactive {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(stdin)
}

// maskDSN hides the password of a URL or keyword/value connection string.
func maskDSN(dsn string) string {
	if dsn == "" {
		return "(not set)"
	}
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
