package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/paperlens/internal/adapters/driving/api"
	"github.com/custodia-labs/paperlens/internal/adapters/driving/watch"
)

var (
	serveAddr   string
	serveRoots  []string
	watchNoScan bool
	watchSettle time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the query, ingestion and library endpoints over HTTP.

Endpoints:
  GET    /check/healthy
  POST   /api/v1/query
  POST   /api/v1/retrieve
  POST   /api/v1/ingest
  GET    /api/v1/documents
  GET    /api/v1/documents/:id/status
  DELETE /api/v1/documents/:id
  GET    /api/v1/stats
  GET    /api/v1/duplicates

A JSON ingest request naming a path is accepted only for files under the
upload directory or a --root directory.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the index in step with a directory",
	Long: `Ingests every supported paper under dir, then watches it. New and
modified papers are re-ingested; deleted papers are removed from the index.
Hidden files and directories are ignored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().StringSliceVar(&serveRoots, "root", nil, "directory whose papers may be ingested by path")
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip the initial scan")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet period before a changed file is processed")
	rootCmd.AddCommand(serveCmd, watchCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	server, err := api.NewServer(serveAddr, &api.Ports{
		Query:     svc.Query,
		Ingest:    svc.Ingest,
		Library:   svc.Library,
		UploadDir: svc.UploadDir,
		Roots:     serveRoots,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "HTTP API listening on %s\n", serveAddr)
	return server.Run(cmd.Context())
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	w, err := watch.New(dir, svc.Ingest, svc.DocumentID,
		watch.WithFilter(svc.Supports),
		watch.WithSettle(watchSettle),
		watch.WithResults(func(r watch.Result) {
			printWatchResult(cmd, r)
		}),
	)
	if err != nil {
		return err
	}

	if !watchNoScan {
		cmd.Printf("Scanning %s\n", w.Root())
		// Failures were already printed per file.
		_ = w.Scan(cmd.Context())
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Root())
	return w.Run(cmd.Context())
}

func printWatchResult(cmd *cobra.Command, r watch.Result) {
	if r.Change.Type == watch.ChangeDeleted {
		st := newStyles(cmd.OutOrStdout())
		if r.Err != nil {
			cmd.Printf("  %s %s: %v\n", st.Error.Render("failed "), r.Change.Path, r.Err)
			return
		}
		cmd.Printf("  %s %s\n", st.Muted.Render("removed"), r.Change.Path)
		return
	}
	printIngestLine(cmd, r.Change.Path, r.Status, r.Err)
}
