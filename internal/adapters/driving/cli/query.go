package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// queryFlags are shared by ask and retrieve.
type queryFlags struct {
	topK      int
	documents []string
	sections  []string
	json      bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "number of evidence chunks (0 = configured default)")
	cmd.Flags().StringSliceVarP(&f.documents, "document", "d", nil, "restrict to document IDs")
	cmd.Flags().StringSliceVarP(&f.sections, "section", "s", nil, "restrict to section labels")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
}

func (f *queryFlags) options() (domain.RetrieveOptions, error) {
	opts := domain.RetrieveOptions{TopK: f.topK, DocumentIDs: f.documents}
	if f.topK < 0 {
		return opts, fmt.Errorf("%w: --top-k must not be negative", domain.ErrInvalidInput)
	}
	for _, s := range f.sections {
		label := domain.SectionLabel(strings.ToLower(strings.TrimSpace(s)))
		if !label.IsValid() {
			return opts, fmt.Errorf("%w: unknown section %q", domain.ErrInvalidInput, s)
		}
		opts.Sections = append(opts.Sections, label)
	}
	return opts, nil
}

func (f *queryFlags) reset() {
	*f = queryFlags{}
}

var (
	askFlags      queryFlags
	retrieveFlags queryFlags
	classifyJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed papers",
	Long: `Classifies the question, retrieves evidence with a section-aware bonus,
and asks the language model for an answer that cites the evidence by number.

The confidence score combines the best similarity, how many papers the
answer cites, and how much evidence was found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [question]",
	Short: "Show ranked evidence for a question",
	Long:  `Runs retrieval only and prints the ranked, deduplicated evidence chunks.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [question]",
	Short: "Show the intent inferred for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	askFlags.register(askCmd)
	retrieveFlags.register(retrieveCmd)
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(askCmd, retrieveCmd, classifyCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	opts, err := askFlags.options()
	if err != nil {
		return err
	}

	answer, err := svc.Query.Ask(cmd.Context(), strings.Join(args, " "), opts)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askFlags.json {
		return printJSON(cmd.OutOrStdout(), answer)
	}
	renderAnswer(cmd, answer)
	return nil
}

func renderAnswer(cmd *cobra.Command, answer *domain.Answer) {
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Body.Render(answer.Text))
	cmd.Println()

	if len(answer.Citations) > 0 {
		cmd.Println(st.Title.Render("Sources"))
		for _, c := range answer.Citations {
			loc := string(c.Section)
			if c.Page > 0 {
				loc += fmt.Sprintf(", p. %d", c.Page)
			}
			cmd.Printf("  %s %s %s\n",
				st.Marker.Render(fmt.Sprintf("[%d]", c.Marker)),
				orDash(c.Reference),
				st.Muted.Render("("+loc+")"))
		}
		cmd.Println()
	}

	conf := fmt.Sprintf("Confidence: %.2f", answer.Confidence)
	switch {
	case answer.NoEvidence:
		cmd.Println(st.Warning.Render(conf + " (no evidence found)"))
	case answer.Truncated:
		cmd.Println(st.Warning.Render(conf + " (answer truncated)"))
	case answer.Degraded:
		cmd.Println(st.Warning.Render(conf + " (answer cites no evidence)"))
	default:
		cmd.Println(st.Success.Render(conf))
	}
	cmd.Println(st.Muted.Render("Intent: " + answer.Intent.String()))
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	opts, err := retrieveFlags.options()
	if err != nil {
		return err
	}

	results, cls, err := svc.Query.Retrieve(cmd.Context(), strings.Join(args, " "), opts)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveFlags.json {
		return printJSON(cmd.OutOrStdout(), results)
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Muted.Render("Intent: " + cls.Intent.String()))
	if len(results) == 0 {
		cmd.Println("No evidence above the similarity threshold.")
		return nil
	}
	cmd.Println()
	for i := range results {
		r := &results[i]
		title := r.Document.Title
		if title == "" {
			title = r.Document.ID
		}
		cmd.Printf("  %s %s (%.3f)\n", st.Marker.Render(fmt.Sprintf("[%d]", r.Rank)), title, r.Score)
		meta := fmt.Sprintf("%s | similarity %.3f", r.Chunk.Section, r.Similarity)
		if r.StructuralBonus > 0 {
			meta += fmt.Sprintf(" + bonus %.2f", r.StructuralBonus)
		}
		if r.ClusterID >= 0 {
			meta += fmt.Sprintf(" | cluster %d", r.ClusterID)
		}
		cmd.Printf("      %s\n", st.Muted.Render(meta))
		cmd.Printf("      %s\n", snippet(r.Chunk.Text, 160))
		cmd.Println()
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}

	cls, err := svc.Query.Classify(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("classify failed: %w", err)
	}

	if classifyJSON {
		return printJSON(cmd.OutOrStdout(), cls)
	}
	cmd.Printf("Intent: %s (%s)\n", cls.Intent, cls.Intent.Description())
	if len(cls.DocumentIDs) > 0 {
		cmd.Printf("Referenced documents: %s\n", strings.Join(cls.DocumentIDs, ", "))
	}
	return nil
}
