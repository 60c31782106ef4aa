// Package cli is the paperlens command line.
//
// Commands reach the core through package-level driving ports. Commands
// that touch the index build them lazily through the service factory, so
// version and config commands work without a model server or database.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// offlineAnnotation marks commands that do not need the services.
const offlineAnnotation = "paperlens/offline"

// version is set by SetVersion from build flags.
var version = "dev"

// Services are the driving ports used by commands.
type Services struct {
	Ingest  driving.IngestService
	Query   driving.QueryService
	Library driving.LibraryService

	// Supports reports whether a file has an extractor.
	Supports func(path string) bool

	// DocumentID derives a document ID from a URI.
	DocumentID func(uri string) string

	// UploadDir receives files uploaded over HTTP.
	UploadDir string
}

// ServiceFactory builds the services and returns a function releasing them.
type ServiceFactory func(ctx context.Context) (*Services, func(), error)

// ConfigPorts serve the config commands. They must not need the network.
type ConfigPorts struct {
	Settings driving.SettingsService

	// Tunables loads and validates the core tunables.
	Tunables func() (domain.Tunables, error)

	// Path is the config file location.
	Path string
}

var (
	services       *Services
	serviceFactory ServiceFactory
	releaseFn      func()
	configPorts    *ConfigPorts
	verbose        bool
)

var errNotConfigured = errors.New("services not configured")

var rootCmd = &cobra.Command{
	Use:   "paperlens",
	Short: "Question answering over scientific papers",
	Long: `paperlens indexes scientific papers and answers questions about them
with numbered citations back to the source sections.

Papers are split into labelled sections and chunks, embedded, and stored
in a vector index. Questions are classified, matched against the index
with a section-aware bonus, deduplicated, and answered by a language model
grounded on the retrieved evidence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepare,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServiceFactory configures how services are built on first use.
func SetServiceFactory(f ServiceFactory) {
	serviceFactory = f
}

// SetConfigPorts configures the ports used by config commands.
func SetConfigPorts(p *ConfigPorts) {
	configPorts = p
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer release()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

func prepare(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if isOffline(cmd) || services != nil || serviceFactory == nil {
		return nil
	}
	s, closeFn, err := serviceFactory(cmd.Context())
	if err != nil {
		return err
	}
	services = s
	releaseFn = closeFn
	return nil
}

func release() {
	if releaseFn != nil {
		releaseFn()
		releaseFn = nil
	}
}

func isOffline(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[offlineAnnotation] == "true" {
			return true
		}
	}
	return false
}

func offline() map[string]string {
	return map[string]string{offlineAnnotation: "true"}
}

func requireServices() (*Services, error) {
	if services == nil {
		return nil, errNotConfigured
	}
	return services, nil
}
