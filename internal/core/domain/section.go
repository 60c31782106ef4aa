package domain

const unknownDescription = "Unknown"

// SectionLabel identifies the structural region of a paper a span belongs to.
// The set is closed; anything unrecognised is SectionUnknown.
type SectionLabel string

// Available section labels.
const (
	SectionAbstract      SectionLabel = "abstract"
	SectionIntroduction  SectionLabel = "introduction"
	SectionMethods       SectionLabel = "methods"
	SectionResults       SectionLabel = "results"
	SectionDiscussion    SectionLabel = "discussion"
	SectionConclusion    SectionLabel = "conclusion"
	SectionReferences    SectionLabel = "references"
	SectionFigureCaption SectionLabel = "figure_caption"
	SectionTableCaption  SectionLabel = "table_caption"
	SectionUnknown       SectionLabel = "unknown"
)

// sectionPriority orders labels for tie-breaking during ranking.
// Lower values win.
var sectionPriority = map[SectionLabel]int{
	SectionMethods:       0,
	SectionResults:       1,
	SectionDiscussion:    2,
	SectionFigureCaption: 3,
	SectionTableCaption:  4,
	SectionAbstract:      5,
	SectionConclusion:    6,
	SectionIntroduction:  7,
	SectionUnknown:       8,
	SectionReferences:    9,
}

// AllSectionLabels returns every label in document order.
func AllSectionLabels() []SectionLabel {
	return []SectionLabel{
		SectionAbstract,
		SectionIntroduction,
		SectionMethods,
		SectionResults,
		SectionDiscussion,
		SectionConclusion,
		SectionReferences,
		SectionFigureCaption,
		SectionTableCaption,
		SectionUnknown,
	}
}

// ParseSectionLabel converts a stored string back into a label.
// Unrecognised values map to SectionUnknown.
func ParseSectionLabel(s string) SectionLabel {
	l := SectionLabel(s)
	if l.IsValid() {
		return l
	}
	return SectionUnknown
}

// IsValid returns true if the label is recognised.
func (l SectionLabel) IsValid() bool {
	_, ok := sectionPriority[l]
	return ok
}

// IsCaption reports whether the label marks a figure or table caption.
func (l SectionLabel) IsCaption() bool {
	return l == SectionFigureCaption || l == SectionTableCaption
}

// Priority returns the tie-break rank of the label. Unknown labels sort
// after every recognised label.
func (l SectionLabel) Priority() int {
	if p, ok := sectionPriority[l]; ok {
		return p
	}
	return len(sectionPriority)
}

// String returns the string representation.
func (l SectionLabel) String() string {
	return string(l)
}

// Description returns a human-readable name of the section.
func (l SectionLabel) Description() string {
	switch l {
	case SectionAbstract:
		return "Abstract"
	case SectionIntroduction:
		return "Introduction"
	case SectionMethods:
		return "Methods"
	case SectionResults:
		return "Results"
	case SectionDiscussion:
		return "Discussion"
	case SectionConclusion:
		return "Conclusion"
	case SectionReferences:
		return "References"
	case SectionFigureCaption:
		return "Figure caption"
	case SectionTableCaption:
		return "Table caption"
	default:
		return unknownDescription
	}
}
