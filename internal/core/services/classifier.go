package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// marker is a weighted lexical cue for one intent.
type marker struct {
	re     *regexp.Regexp
	weight float64
}

func cue(pattern string, weight float64) marker {
	return marker{re: regexp.MustCompile(pattern), weight: weight}
}

// intentMarkers are matched against the lower-cased question.
var intentMarkers = map[domain.Intent][]marker{
	domain.IntentMethod: {
		cue(`\bhow (did|do|does|was|were|is|are)\b`, 2),
		cue(`\bmethod(s|ology|ologies)?\b`, 1),
		cue(`\b(procedure|protocol)s?\b`, 1.5),
		cue(`\bhyper-?parameters?\b`, 1.5),
		cue(`\bexperimental (design|setup|set-up)\b`, 2),
		cue(`\b(train|trained|training)\b`, 1),
		cue(`\b(measure|measured|measurement|measurements)\b`, 1),
		cue(`\b(implement|implemented|implementation)\b`, 1),
		cue(`\b(approach|technique|algorithm|pipeline|architecture)s?\b`, 1),
		cue(`\b(setup|set up|configured|calibrated)\b`, 1),
		cue(`\b(datasets?|data sets?|samples?)\b`, 0.5),
	},
	domain.IntentResult: {
		cue(`\bresults?\b`, 1.5),
		cue(`\b(find|finding|findings|found)\b`, 1.5),
		cue(`\b(accuracy|precision|recall|f1|auc|bleu|error rate|perplexity)\b`, 2),
		cue(`\b(achieve|achieved|achieves|obtain|obtained|reach|reached)\b`, 1.5),
		cue(`\b(outperform\w*|improve\w*|gains?)\b`, 1),
		cue(`\b(performance|performed|performs)\b`, 1),
		cue(`\b(significant|significantly|effects?|outcomes?)\b`, 1),
		cue(`\bhow (well|much|many)\b`, 1),
		cue(`\b(conclude\w*|shows? that|showed|demonstrated?)\b`, 1),
	},
	domain.IntentComparison: {
		cue(`\bcompar\w*`, 3),
		cue(`\b(versus|vs)\b`, 3),
		cue(`\b(differ|differs|difference|differences)\b`, 2),
		cue(`\b(better|worse) than\b`, 2),
		cue(`\bcontrast\w*`, 2),
		cue(`\b(relative to|in relation to)\b`, 1),
		cue(`\b(similarities|similar to)\b`, 1.5),
		cue(`\bboth\b`, 1),
		cue(`\bbetween\b`, 0.5),
	},
	domain.IntentFigureTable: {
		cue(`\b(fig(ure)?s?\.?|tables?|tab\.)\s*(\d+|[ivx]+)\b`, 4),
		cue(`\b(figures?|tables?|plots?|charts?|graphs?|diagrams?|captions?|panels?)\b`, 1.5),
	},
}

// referenceBonus is added to comparison when the question names two or
// more documents.
const referenceBonus = 2.0

// scoredIntents lists the intents that can win, in a fixed order.
var scoredIntents = []domain.Intent{
	domain.IntentMethod,
	domain.IntentResult,
	domain.IntentComparison,
	domain.IntentFigureTable,
}

var (
	doiPattern     = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[^\s"'<>]+`)
	arxivPattern   = regexp.MustCompile(`(?i)\b(\d{4}\.\d{4,5})(v\d+)?\b`)
	quotedPattern  = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
	titleWordSplit = func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' }
)

// stopwords are ignored when matching title words.
var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true,
	"also": true, "among": true, "analysis": true, "based": true, "being": true,
	"between": true, "both": true, "does": true, "each": true, "from": true,
	"have": true, "into": true, "more": true, "most": true, "over": true,
	"paper": true, "study": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "towards": true,
	"under": true, "using": true, "very": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "with": true, "within": true,
	"without": true, "your": true,
}

// Classifier infers query intent from lexical markers.
// It is stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the intent of question. For comparison intents the
// documents of catalog the question refers to are attached.
// Classification never fails; unmatched or tied questions are generic.
func (c *Classifier) Classify(question string, catalog []domain.Document) domain.Classification {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return domain.Classification{Intent: domain.IntentGeneric}
	}

	scores := make(map[domain.Intent]float64, len(scoredIntents))
	for _, intent := range scoredIntents {
		for _, mk := range intentMarkers[intent] {
			if mk.re.MatchString(q) {
				scores[intent] += mk.weight
			}
		}
	}

	refs := referencedDocuments(question, catalog)
	if len(refs) >= 2 {
		scores[domain.IntentComparison] += referenceBonus
	}

	best := domain.IntentGeneric
	bestScore := 0.0
	tied := false
	for _, intent := range scoredIntents {
		s := scores[intent]
		switch {
		case s > bestScore:
			best, bestScore, tied = intent, s, false
		case s == bestScore && s > 0:
			tied = true
		}
	}
	if tied || bestScore == 0 {
		return domain.Classification{Intent: domain.IntentGeneric}
	}

	out := domain.Classification{Intent: best}
	if best == domain.IntentComparison {
		out.DocumentIDs = refs
	}
	return out
}

// referencedDocuments returns the IDs of catalog documents the question
// names, in catalog order.
func referencedDocuments(question string, catalog []domain.Document) []string {
	if len(catalog) == 0 {
		return nil
	}
	lower := strings.ToLower(question)
	queryWords := wordSet(lower)

	var quoted []string
	for _, match := range quotedPattern.FindAllStringSubmatch(question, -1) {
		for _, g := range match[1:] {
			if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
				quoted = append(quoted, g)
			}
		}
	}

	dois := map[string]bool{}
	for _, d := range doiPattern.FindAllString(lower, -1) {
		dois[strings.TrimRight(d, ".,;:)?!]")] = true
	}
	arxivIDs := map[string]bool{}
	for _, match := range arxivPattern.FindAllStringSubmatch(lower, -1) {
		arxivIDs[match[1]] = true
	}

	var ids []string
	for _, doc := range catalog {
		if refersTo(doc, lower, queryWords, quoted, dois, arxivIDs) {
			ids = append(ids, doc.ID)
		}
	}
	return ids
}

func refersTo(
	doc domain.Document,
	lower string,
	queryWords map[string]bool,
	quoted []string,
	dois, arxivIDs map[string]bool,
) bool {
	if doc.DOI != "" && dois[strings.ToLower(doc.DOI)] {
		return true
	}
	if doc.ArxivID != "" {
		id := strings.TrimPrefix(strings.ToLower(doc.ArxivID), "arxiv:")
		if i := strings.Index(id, "v"); i > 0 {
			id = id[:i]
		}
		if arxivIDs[id] {
			return true
		}
	}

	title := strings.ToLower(strings.TrimSpace(doc.Title))
	if title == "" {
		return false
	}
	for _, q := range quoted {
		if strings.Contains(title, q) || strings.Contains(q, title) {
			return true
		}
	}
	if len([]rune(title)) >= 8 && strings.Contains(lower, title) {
		return true
	}

	// Implicit: most significant title words appear in the question.
	words := significantWords(title)
	if len(words) < 2 {
		return false
	}
	hits := 0
	for _, w := range words {
		if queryWords[w] {
			hits++
		}
	}
	return hits >= 2 && float64(hits)/float64(len(words)) >= 0.5
}

func significantWords(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range strings.FieldsFunc(s, titleWordSplit) {
		if len([]rune(w)) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.FieldsFunc(s, titleWordSplit) {
		set[w] = true
	}
	return set
}
