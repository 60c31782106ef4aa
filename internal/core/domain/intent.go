package domain

// Intent is the classified purpose of a query.
// The set is closed; ambiguous or unmatched queries are IntentGeneric.
type Intent string

// Available query intents.
const (
	// IntentMethod asks how something was done.
	IntentMethod Intent = "method"

	// IntentResult asks what was found or achieved.
	IntentResult Intent = "result"

	// IntentComparison asks how two or more papers or approaches differ.
	IntentComparison Intent = "comparison"

	// IntentFigureTable asks about a specific figure or table.
	IntentFigureTable Intent = "figure_table"

	// IntentGeneric is the fallback for everything else.
	IntentGeneric Intent = "generic"
)

// AllIntents returns every intent.
func AllIntents() []Intent {
	return []Intent{IntentMethod, IntentResult, IntentComparison, IntentFigureTable, IntentGeneric}
}

// IsValid returns true if the intent is recognised.
func (i Intent) IsValid() bool {
	switch i {
	case IntentMethod, IntentResult, IntentComparison, IntentFigureTable, IntentGeneric:
		return true
	default:
		return false
	}
}

// PreferredSections returns the sections that earn a structural bonus
// for this intent. Comparison and generic intents prefer nothing.
func (i Intent) PreferredSections() []SectionLabel {
	switch i {
	case IntentMethod:
		return []SectionLabel{SectionMethods}
	case IntentResult:
		return []SectionLabel{SectionResults, SectionDiscussion}
	case IntentFigureTable:
		return []SectionLabel{SectionFigureCaption, SectionTableCaption}
	default:
		return nil
	}
}

// Prefers reports whether label is in the preferred set of the intent.
func (i Intent) Prefers(label SectionLabel) bool {
	for _, l := range i.PreferredSections() {
		if l == label {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (i Intent) String() string {
	return string(i)
}

// Description returns a human-readable description of the intent.
func (i Intent) Description() string {
	switch i {
	case IntentMethod:
		return "Methodology question"
	case IntentResult:
		return "Results question"
	case IntentComparison:
		return "Comparison across papers"
	case IntentFigureTable:
		return "Figure or table question"
	case IntentGeneric:
		return "General question"
	default:
		return unknownDescription
	}
}

// Classification is the output of the query classifier.
type Classification struct {
	// Intent is the inferred query intent.
	Intent Intent

	// DocumentIDs are the documents a comparison query refers to,
	// explicitly or implicitly. Empty for other intents.
	DocumentIDs []string
}
