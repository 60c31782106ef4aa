package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

var (
	ingestConcurrency int
	ingestJSON        bool
	documentsJSON     bool
	statusJSON        bool
	statsJSON         bool
	duplicatesJSON    bool
	duplicatesDocs    []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index papers",
	Long: `Indexes PDF, text and markdown papers. Directories are walked
recursively; hidden files and directories are skipped.

Re-ingesting a file replaces its previous version atomically. Chunks that
fail to embed are reported and the rest of the paper is still indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List indexed papers",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show ingestion status",
	Long:  `Shows the ingestion status of one paper, or of every known paper.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var removeCmd = &cobra.Command{
	Use:   "remove [doc-id...]",
	Short: "Remove papers from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the collection",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List near-duplicate passages",
	Long: `Lists clusters of near-identical chunks. With --document, clusters are
restricted to the given papers and annotated with the papers they span.`,
	Args: cobra.NoArgs,
	RunE: runDuplicates,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "j", 4, "papers ingested in parallel")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output statuses as JSON")
	documentsCmd.Flags().BoolVar(&documentsJSON, "json", false, "output as JSON")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	duplicatesCmd.Flags().BoolVar(&duplicatesJSON, "json", false, "output as JSON")
	duplicatesCmd.Flags().StringSliceVarP(&duplicatesDocs, "document", "d", nil, "restrict to document IDs")

	rootCmd.AddCommand(ingestCmd, documentsCmd, statusCmd, removeCmd, statsCmd, duplicatesCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	files, err := collectPapers(args, svc.Supports)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no supported papers found", domain.ErrInvalidInput)
	}

	var (
		mu       sync.Mutex
		statuses = make([]*domain.IngestionStatus, len(files))
		errs     = make([]error, len(files))
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(1, ingestConcurrency))
	for i, path := range files {
		g.Go(func() error {
			status, err := svc.Ingest.IngestFile(ctx, path)
			mu.Lock()
			defer mu.Unlock()
			statuses[i], errs[i] = status, err
			if !ingestJSON {
				printIngestLine(cmd, path, status, err)
			}
			// A failed paper does not stop the others.
			return nil
		})
	}
	_ = g.Wait()

	if ingestJSON {
		out := make([]*domain.IngestionStatus, 0, len(statuses))
		for _, s := range statuses {
			if s != nil {
				out = append(out, s)
			}
		}
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}

	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	if !ingestJSON {
		cmd.Printf("\nIngested %d of %d papers.\n", len(files)-failed, len(files))
	}
	return errors.Join(errs...)
}

func printIngestLine(cmd *cobra.Command, path string, status *domain.IngestionStatus, err error) {
	st := newStyles(cmd.OutOrStdout())
	switch {
	case err != nil:
		cmd.Printf("  %s %s: %v\n", st.Error.Render("failed "), path, err)
	case status.State == domain.IngestionPartial:
		cmd.Printf("  %s %s (%d/%d chunks)\n", st.Warning.Render("partial"), path, status.ChunksIndexed, status.ChunksTotal)
	default:
		cmd.Printf("  %s %s (%d chunks)\n", st.Success.Render("indexed"), path, status.ChunksIndexed)
	}
}

// collectPapers expands directories and resolves absolute paths so
// document IDs do not depend on the working directory.
func collectPapers(args []string, supports func(string) bool) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		root, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			// Explicitly named files are passed through so unsupported
			// types are reported by the ingest path.
			if path == root || supports == nil || supports(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
	}
	return files, nil
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	docs, err := svc.Library.Documents(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if documentsJSON {
		return printJSON(cmd.OutOrStdout(), docs)
	}
	if len(docs) == 0 {
		cmd.Println("No papers indexed.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for i := range docs {
		d := &docs[i]
		cmd.Printf("%s  %s\n", st.Label.Render(d.ID), orDash(d.Title))
		meta := []string{d.Reference()}
		if len(d.Authors) > 0 {
			meta = append(meta, strings.Join(d.Authors, ", "))
		}
		meta = append(meta, fmt.Sprintf("%d sections", len(d.Sections)))
		cmd.Printf("    %s\n", st.Muted.Render(strings.Join(meta, " | ")))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	var list []domain.IngestionStatus
	if len(args) == 1 {
		status, err := svc.Ingest.Status(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		list = []domain.IngestionStatus{*status}
	} else {
		list, err = svc.Ingest.ListStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list statuses: %w", err)
		}
	}

	if statusJSON {
		return printJSON(cmd.OutOrStdout(), list)
	}
	if len(list) == 0 {
		cmd.Println("No ingestion history.")
		return nil
	}
	for i := range list {
		s := &list[i]
		cmd.Printf("%-8s %s  %s (%d/%d chunks, %s)\n",
			s.State, s.DocumentID, orDash(s.URI), s.ChunksIndexed, s.ChunksTotal,
			s.UpdatedAt.Format("2006-01-02 15:04:05"))
		for _, f := range s.ChunkFailures {
			cmd.Printf("         chunk %d: %s\n", f.Ordinal, f.Error)
		}
		if s.Error != "" {
			cmd.Printf("         error: %s\n", s.Error)
		}
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range args {
		if err := svc.Ingest.Remove(cmd.Context(), id); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
			continue
		}
		cmd.Printf("Removed %s\n", id)
	}
	return errors.Join(errs...)
}

func runStats(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	collection, err := svc.Library.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	dups, err := svc.Library.DuplicateStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get duplicate stats: %w", err)
	}

	if statsJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"collection": collection,
			"duplicates": dups,
		})
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title.Render("[Collection]"))
	cmd.Printf("  Documents: %d\n", collection.UniqueDocuments)
	cmd.Printf("  Chunks: %d\n", collection.TotalChunks)
	for _, label := range sortedLabels(collection.SectionDistribution) {
		cmd.Printf("    %-15s %d\n", label, collection.SectionDistribution[label])
	}
	cmd.Println()
	cmd.Println(st.Title.Render("[Duplicates]"))
	cmd.Printf("  Clusters: %d\n", dups.TotalClusters)
	cmd.Printf("  Duplicate chunks: %d (%.1f%%)\n", dups.TotalDuplicateChunks, dups.DuplicatePercentage)
	cmd.Printf("  Affected documents: %d\n", dups.AffectedDocuments)
	for _, label := range sortedLabels(dups.SectionBreakdown) {
		b := dups.SectionBreakdown[label]
		cmd.Printf("    %-15s %d clusters, %d chunks\n", label, b.Clusters, b.Chunks)
	}
	return nil
}

func runDuplicates(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	reports, err := svc.Library.Duplicates(cmd.Context(), duplicatesDocs)
	if err != nil {
		return fmt.Errorf("failed to list duplicates: %w", err)
	}
	if duplicatesJSON {
		return printJSON(cmd.OutOrStdout(), reports)
	}
	if len(reports) == 0 {
		cmd.Println("No duplicate clusters.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for i := range reports {
		r := &reports[i]
		header := fmt.Sprintf("Cluster %d: %d chunks, avg similarity %.3f",
			r.Cluster.ID, r.Cluster.Size(), r.Cluster.AverageSimilarity())
		if r.SpansDocuments() {
			header += fmt.Sprintf(", spans %d papers", len(r.DocumentIDs))
		}
		cmd.Println(st.Label.Render(header))
		for _, m := range r.Cluster.Members {
			marker := " "
			if m.ChunkID == r.Cluster.Representative {
				marker = "*"
			}
			cmd.Printf("  %s %s  %s  %s %.3f\n", marker, m.DocumentID, m.ChunkID, m.Section, m.Similarity)
		}
	}
	return nil
}

func sortedLabels[V any](m map[domain.SectionLabel]V) []domain.SectionLabel {
	labels := make([]domain.SectionLabel, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
