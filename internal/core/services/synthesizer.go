package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// defaultPrompts are used when no prompt store is set or it has no
// entry. Intent frames are keyed by intent name.
var defaultPrompts = map[string]string{
	driven.PromptSystem: `You answer questions about scientific papers using only the numbered evidence provided.
Cite every claim with the evidence number in square brackets, for example [1] or [2, 3].
Do not cite numbers that are not in the evidence list.
If the evidence does not answer the question, say so plainly.`,

	domain.IntentMethod.String(): "Summarise the methodology described in the evidence: procedures, data, " +
		"settings and parameters.",
	domain.IntentResult.String(): "Report the findings stated in the evidence, including the quantitative " +
		"values given.",
	domain.IntentComparison.String(): "Compare the papers explicitly. Attribute every statement to its paper " +
		"by title and cite the evidence it comes from.",
	domain.IntentFigureTable.String(): "Answer with reference to the specific figure or table caption in the " +
		"evidence and name it, for example Figure 2 or Table 1.",
	domain.IntentGeneric.String(): "Answer the question concisely.",
}

// DefaultPrompts returns a copy of the built-in prompts, used to seed
// user-editable prompt files.
func DefaultPrompts() map[string]string {
	out := make(map[string]string, len(defaultPrompts))
	for k, v := range defaultPrompts {
		out[k] = v
	}
	return out
}

// citationMarker matches [1], [1, 2] and [1-3].
var citationMarker = regexp.MustCompile(`\[(\d+(?:\s*[,\-–]\s*\d+)*)\]`)

// maxMarkerRange bounds [a-b] expansion.
const maxMarkerRange = 50

// Synthesizer turns ranked evidence into a cited answer with a
// confidence score.
type Synthesizer struct {
	llm     driven.LLMService
	counter driven.TokenCounter
	prompts driven.PromptStore
	tun     domain.Tunables
}

// NewSynthesizer creates a synthesizer. The token counter is optional;
// without one, tokens are estimated from rune counts.
func NewSynthesizer(llm driven.LLMService, counter driven.TokenCounter, tun domain.Tunables) *Synthesizer {
	return &Synthesizer{llm: llm, counter: counter, tun: tun}
}

// SetPromptStore sets the source of user-editable prompts.
func (s *Synthesizer) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// prompt returns the named prompt from the store, falling back to the
// built-in text.
func (s *Synthesizer) prompt(name string) string {
	if s.prompts != nil {
		if p, err := s.prompts.Load(name); err == nil && strings.TrimSpace(p) != "" {
			return p
		}
	}
	return defaultPrompts[name]
}

// Synthesize answers question from results. topK is the number of
// results requested from retrieval, used for coverage.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	question string,
	intent domain.Intent,
	results []domain.RetrievalResult,
	topK int,
) (*domain.Answer, error) {
	logger.Section("Synthesis")
	defer logger.Timed("synthesis")()

	answer := &domain.Answer{Query: question, Intent: intent, Evidence: results}
	if len(results) == 0 {
		logger.Debug("No evidence, skipping generation")
		answer.Text = domain.NoEvidenceText
		answer.NoEvidence = true
		return answer, nil
	}
	if s.llm == nil {
		return nil, domain.NewGenerationError("synthesize", domain.ErrLLMUnavailable)
	}

	evidence, used := s.buildContext(results)
	logger.Debug("Context: %d of %d evidence chunks", used, len(results))
	frame := s.prompt(intent.String())
	if frame == "" {
		frame = s.prompt(domain.IntentGeneric.String())
	}
	prompt := buildPrompt(question, frame, evidence)
	system := s.prompt(driven.PromptSystem)

	var gen driven.Generation
	err := withRetry(ctx, s.tun.GenerationRetry, s.tun.GenerationTimeout, "generate",
		func(ctx context.Context) error {
			g, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{System: system})
			if err != nil {
				return err
			}
			gen = g
			return nil
		})
	if err != nil {
		logger.Warn("Generation failed: %v", err)
		return nil, domain.NewGenerationError("generate", err)
	}

	answer.Text = strings.TrimSpace(gen.Text)
	answer.Truncated = gen.Truncated

	for _, n := range parseCitations(answer.Text, used) {
		r := results[n-1]
		answer.Citations = append(answer.Citations, domain.Citation{
			Marker:     n,
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Document.ID,
			Reference:  r.Document.Reference(),
			Title:      r.Document.Title,
			Section:    r.Chunk.Section,
			Page:       r.Chunk.Page,
			Ordinal:    r.Chunk.Ordinal,
		})
	}

	answer.Degraded = answer.Truncated || len(answer.Citations) == 0
	answer.Confidence = s.confidence(results, answer.Citations, topK, answer.Degraded)
	logger.Debug("Citations: %d, confidence: %.3f, degraded: %t",
		len(answer.Citations), answer.Confidence, answer.Degraded)
	return answer, nil
}

// buildContext renders numbered evidence in rank order until the token
// budget is spent. The first item is always included.
func (s *Synthesizer) buildContext(results []domain.RetrievalResult) (string, int) {
	var b strings.Builder
	budget := s.tun.MaxContextTokens
	spent := 0
	used := 0
	for i, r := range results {
		block := evidenceBlock(i+1, r)
		cost := s.countTokens(block)
		if used > 0 && budget > 0 && spent+cost > budget {
			break
		}
		b.WriteString(block)
		spent += cost
		used++
	}
	return b.String(), used
}

func (s *Synthesizer) countTokens(text string) int {
	if s.counter != nil {
		return s.counter.Count(text)
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

func evidenceBlock(n int, r domain.RetrievalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", n, r.Document.Title)
	if ref := r.Document.Reference(); ref != "" && ref != r.Document.Title {
		fmt.Fprintf(&b, " (%s)", ref)
	}
	fmt.Fprintf(&b, ", %s", r.Chunk.Section.Description())
	if r.Chunk.Page > 0 {
		fmt.Fprintf(&b, ", page %d", r.Chunk.Page)
	}
	b.WriteString("\n")
	if a := r.Chunk.Anchor; a != nil && a.HasContext {
		fmt.Fprintf(&b, "Context for %s: %s\n", a.Label, a.Context)
	}
	b.WriteString(strings.TrimSpace(r.Chunk.Text))
	b.WriteString("\n\n")
	return b.String()
}

func buildPrompt(question, frame, evidence string) string {
	var b strings.Builder
	b.WriteString(frame)
	b.WriteString("\n\nEvidence:\n\n")
	b.WriteString(evidence)
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// parseCitations returns the evidence numbers referenced in text, in
// order of first reference. Numbers outside 1..limit are ignored.
func parseCitations(text string, limit int) []int {
	var out []int
	seen := map[int]bool{}
	add := func(n int) {
		if n >= 1 && n <= limit && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, match := range citationMarker.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(match[1], ",") {
			part = strings.TrimSpace(part)
			lo, hi, isRange := splitRange(part)
			if !isRange {
				if n, err := strconv.Atoi(part); err == nil {
					add(n)
				}
				continue
			}
			if hi < lo || hi-lo > maxMarkerRange {
				continue
			}
			for n := lo; n <= hi; n++ {
				add(n)
			}
		}
	}
	return out
}

func splitRange(part string) (int, int, bool) {
	i := strings.IndexAny(part, "-–")
	if i < 0 {
		return 0, 0, false
	}
	_, width := utf8.DecodeRuneInString(part[i:])
	lo, err1 := strconv.Atoi(strings.TrimSpace(part[:i]))
	hi, err2 := strconv.Atoi(strings.TrimSpace(part[i+width:]))
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// confidence combines the top fused score, corroboration by distinct
// cited documents and coverage of the requested result count.
func (s *Synthesizer) confidence(
	results []domain.RetrievalResult, citations []domain.Citation, topK int, degraded bool,
) float64 {
	if len(results) == 0 {
		return 0
	}
	w := s.tun.ConfidenceWeights
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}

	top := clamp01(results[0].Score)

	docs := map[string]bool{}
	for _, c := range citations {
		docs[c.DocumentID] = true
	}
	target := max(s.tun.CorroborationTarget, 1)
	corroboration := min(1, float64(len(docs))/float64(target))

	if topK <= 0 {
		topK = s.tun.TopKResults
	}
	coverage := 0.0
	if topK > 0 {
		coverage = min(1, float64(len(results))/float64(topK))
	}

	score := (w.TopScore*top + w.Corroboration*corroboration + w.Coverage*coverage) / sum
	if degraded {
		score /= 2
	}
	return clamp01(score)
}
