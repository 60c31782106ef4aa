package segmenter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// maxHeadingRunes bounds the length of a line that may be a heading.
const maxHeadingRunes = 80

// maxHeadingWords bounds the word count of a mixed-case heading.
const maxHeadingWords = 6

var (
	headingNumbering = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[IVXLC]+\.|[A-H]\.)\s+`)
	inlineAbstract   = regexp.MustCompile(`(?i)^abstract\s*[\x{2014}\x{2013}:.\-]\s*\S`)
	captionStart     = regexp.MustCompile(`^(?:(?i:figure)|Fig\.|FIG\.|(?i:table))\s*(\d+|[IVX]+)\s*(?:[.:|]|$)`)
)

// headingNames maps normalised mixed-case headings to labels.
var headingNames = map[string]domain.SectionLabel{
	"abstract": domain.SectionAbstract,

	"introduction":      domain.SectionIntroduction,
	"background":        domain.SectionIntroduction,
	"related work":      domain.SectionIntroduction,
	"literature review": domain.SectionIntroduction,
	"motivation":        domain.SectionIntroduction,

	"method":                  domain.SectionMethods,
	"methods":                 domain.SectionMethods,
	"methodology":             domain.SectionMethods,
	"materials and methods":   domain.SectionMethods,
	"methods and materials":   domain.SectionMethods,
	"data and methods":        domain.SectionMethods,
	"experimental setup":      domain.SectionMethods,
	"experimental design":     domain.SectionMethods,
	"experimental methods":    domain.SectionMethods,
	"approach":                domain.SectionMethods,
	"proposed method":         domain.SectionMethods,
	"our approach":            domain.SectionMethods,
	"study design":            domain.SectionMethods,
	"implementation details":  domain.SectionMethods,
	"experimental procedures": domain.SectionMethods,

	"results":                 domain.SectionResults,
	"experiments":             domain.SectionResults,
	"experimental results":    domain.SectionResults,
	"evaluation":              domain.SectionResults,
	"findings":                domain.SectionResults,
	"results and analysis":    domain.SectionResults,
	"empirical results":       domain.SectionResults,
	"results and discussion":  domain.SectionResults,
	"results and discussions": domain.SectionResults,

	"discussion":         domain.SectionDiscussion,
	"analysis":           domain.SectionDiscussion,
	"limitations":        domain.SectionDiscussion,
	"general discussion": domain.SectionDiscussion,

	"conclusion":                  domain.SectionConclusion,
	"conclusions":                 domain.SectionConclusion,
	"concluding remarks":          domain.SectionConclusion,
	"conclusion and future work":  domain.SectionConclusion,
	"conclusions and future work": domain.SectionConclusion,
	"future work":                 domain.SectionConclusion,
	"summary and conclusions":     domain.SectionConclusion,

	"references":       domain.SectionReferences,
	"bibliography":     domain.SectionReferences,
	"works cited":      domain.SectionReferences,
	"literature cited": domain.SectionReferences,

	"acknowledgments":        domain.SectionUnknown,
	"acknowledgements":       domain.SectionUnknown,
	"acknowledgment":         domain.SectionUnknown,
	"appendix":               domain.SectionUnknown,
	"supplementary material": domain.SectionUnknown,
}

// capsKeywords is checked in order against all-caps heading lines.
var capsKeywords = []struct {
	keyword string
	label   domain.SectionLabel
}{
	{"ABSTRACT", domain.SectionAbstract},
	{"INTRODUCTION", domain.SectionIntroduction},
	{"METHOD", domain.SectionMethods},
	{"RESULT", domain.SectionResults},
	{"EXPERIMENT", domain.SectionResults},
	{"DISCUSSION", domain.SectionDiscussion},
	{"CONCLUSION", domain.SectionConclusion},
	{"REFERENCE", domain.SectionReferences},
	{"BIBLIOGRAPHY", domain.SectionReferences},
	{"ACKNOWLEDG", domain.SectionUnknown},
	{"APPENDIX", domain.SectionUnknown},
}

// line is one line of the document, End includes the newline.
type line struct {
	start int
	end   int
	text  string
}

func splitLines(runes []rune) []line {
	var lines []line
	start := 0
	for i, r := range runes {
		if r == '\n' {
			lines = append(lines, line{start: start, end: i + 1, text: string(runes[start:i])})
			start = i + 1
		}
	}
	if start < len(runes) {
		lines = append(lines, line{start: start, end: len(runes), text: string(runes[start:])})
	}
	return lines
}

// classifyHeading reports whether a line opens a section and which label
// it carries.
func classifyHeading(text string) (domain.SectionLabel, string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", "", false
	}
	if inlineAbstract.MatchString(trimmed) {
		return domain.SectionAbstract, "Abstract", true
	}
	if len([]rune(trimmed)) > maxHeadingRunes {
		return "", "", false
	}

	name := headingNumbering.ReplaceAllString(trimmed, "")
	name = strings.TrimRight(name, ".:")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", "", false
	}

	if len(strings.Fields(name)) > maxHeadingWords {
		return "", "", false
	}

	if label, ok := headingNames[strings.ToLower(name)]; ok {
		return label, trimmed, true
	}

	// All-caps lines match by keyword, e.g. "2 MATERIALS AND METHODS".
	if isAllCaps(name) {
		for _, kw := range capsKeywords {
			if strings.Contains(name, kw.keyword) {
				return kw.label, trimmed, true
			}
		}
	}
	return "", "", false
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 4
}

// captionKind reports whether a line opens a figure or table caption and
// returns its normalised label, e.g. "Figure 3".
func captionKind(text string) (domain.AnchorKind, string, bool) {
	trimmed := strings.TrimSpace(text)
	m := captionStart.FindStringSubmatch(trimmed)
	if m == nil {
		return "", "", false
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "tab") {
		return domain.AnchorTable, "Table " + m[1], true
	}
	return domain.AnchorFigure, "Figure " + m[1], true
}

type boundary struct {
	start   int
	label   domain.SectionLabel
	heading string
	anchor  *domain.FigureAnchor
}

// detectSections splits runes into contiguous labelled sections that cover
// the whole text. It never fails: unlabelled text is SectionUnknown.
func detectSections(runes []rune, pages []pageOffset) ([]domain.Section, []*domain.FigureAnchor) {
	if len(runes) == 0 {
		return nil, nil
	}

	bounds := []boundary{{start: 0, label: domain.SectionUnknown}}
	current := domain.SectionUnknown
	inCaption := false
	var resume domain.SectionLabel

	open := func(b boundary) {
		last := &bounds[len(bounds)-1]
		if last.start == b.start {
			*last = b
			return
		}
		bounds = append(bounds, b)
	}

	for _, ln := range splitLines(runes) {
		blank := strings.TrimSpace(ln.text) == ""

		if label, heading, ok := classifyHeading(ln.text); ok {
			inCaption = false
			current = label
			open(boundary{start: ln.start, label: label, heading: heading})
			continue
		}

		if inCaption {
			if blank {
				inCaption = false
				current = resume
				open(boundary{start: ln.start, label: resume})
			}
			continue
		}

		if kind, label, ok := captionKind(ln.text); ok {
			sectionLabel := domain.SectionFigureCaption
			if kind == domain.AnchorTable {
				sectionLabel = domain.SectionTableCaption
			}
			resume = current
			inCaption = true
			open(boundary{
				start:   ln.start,
				label:   sectionLabel,
				heading: label,
				anchor:  &domain.FigureAnchor{Kind: kind, Label: label},
			})
		}
	}

	sections := make([]domain.Section, 0, len(bounds))
	anchors := make([]*domain.FigureAnchor, 0, len(bounds))
	for i, b := range bounds {
		end := len(runes)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		if end <= b.start {
			continue
		}
		sections = append(sections, domain.Section{
			Label:   b.label,
			Heading: b.heading,
			Text:    string(runes[b.start:end]),
			Start:   b.start,
			End:     end,
			Spans:   pageSpans(b.start, end, pages),
		})
		anchors = append(anchors, b.anchor)
	}

	attachContext(sections, anchors)
	return sections, anchors
}

// attachContext fills caption anchors with the caption text and the
// nearest preceding non-caption paragraph.
func attachContext(sections []domain.Section, anchors []*domain.FigureAnchor) {
	lastParagraph := ""
	for i := range sections {
		s := &sections[i]
		if anchors[i] != nil {
			anchors[i].Caption = strings.TrimSpace(s.Text)
			anchors[i].Context = lastParagraph
			anchors[i].HasContext = lastParagraph != ""
			continue
		}
		if p := lastParagraphOf(s.Text, s.Heading); p != "" {
			lastParagraph = p
		}
	}
}

func lastParagraphOf(text, heading string) string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	for i := len(paragraphs) - 1; i >= 0; i-- {
		p := strings.TrimSpace(paragraphs[i])
		if p == "" || p == strings.TrimSpace(heading) {
			continue
		}
		if heading != "" && strings.HasPrefix(p, heading) && i == 0 {
			p = strings.TrimSpace(strings.TrimPrefix(p, heading))
			if p == "" {
				continue
			}
		}
		return p
	}
	return ""
}

// pageOffset is the rune offset at which a page starts.
type pageOffset struct {
	number int
	start  int
	end    int
}

func pageOffsets(pages []domain.Page) []pageOffset {
	offsets := make([]pageOffset, 0, len(pages))
	pos := 0
	for _, p := range pages {
		n := len([]rune(p.Text))
		offsets = append(offsets, pageOffset{number: p.Number, start: pos, end: pos + n})
		pos += n
	}
	return offsets
}

// pageAt returns the page number containing offset, or 0 if unknown.
func pageAt(pages []pageOffset, offset int) int {
	for _, p := range pages {
		if offset >= p.start && offset < p.end {
			return p.number
		}
	}
	if len(pages) > 0 && offset >= pages[len(pages)-1].end {
		return pages[len(pages)-1].number
	}
	return 0
}

// pageSpans splits [start, end) at page boundaries.
func pageSpans(start, end int, pages []pageOffset) []domain.Span {
	var spans []domain.Span
	for _, p := range pages {
		lo := max(start, p.start)
		hi := min(end, p.end)
		if lo < hi {
			spans = append(spans, domain.Span{Page: p.number, Start: lo, End: hi})
		}
	}
	return spans
}
