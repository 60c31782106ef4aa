package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionLabel_IsValid(t *testing.T) {
	for _, l := range AllSectionLabels() {
		assert.True(t, l.IsValid(), l)
		assert.NotEqual(t, unknownDescription, l.Description(), l)
	}
	assert.False(t, SectionLabel("appendix").IsValid())
	assert.Equal(t, unknownDescription, SectionLabel("appendix").Description())
}

func TestParseSectionLabel(t *testing.T) {
	assert.Equal(t, SectionMethods, ParseSectionLabel("methods"))
	assert.Equal(t, SectionUnknown, ParseSectionLabel("Methods"))
	assert.Equal(t, SectionUnknown, ParseSectionLabel(""))
}

func TestSectionLabel_Priority(t *testing.T) {
	assert.Less(t, SectionMethods.Priority(), SectionResults.Priority())
	assert.Less(t, SectionUnknown.Priority(), SectionReferences.Priority())
	assert.Greater(t, SectionLabel("bogus").Priority(), SectionReferences.Priority())
}

func TestSectionLabel_IsCaption(t *testing.T) {
	assert.True(t, SectionFigureCaption.IsCaption())
	assert.True(t, SectionTableCaption.IsCaption())
	assert.False(t, SectionResults.IsCaption())
}

func TestIntent_PreferredSections(t *testing.T) {
	tests := []struct {
		intent Intent
		want   []SectionLabel
	}{
		{IntentMethod, []SectionLabel{SectionMethods}},
		{IntentResult, []SectionLabel{SectionResults, SectionDiscussion}},
		{IntentFigureTable, []SectionLabel{SectionFigureCaption, SectionTableCaption}},
		{IntentComparison, nil},
		{IntentGeneric, nil},
	}

	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.intent.PreferredSections())
			for _, l := range tt.want {
				assert.True(t, tt.intent.Prefers(l))
			}
		})
	}
	assert.False(t, IntentMethod.Prefers(SectionResults))
}

func TestIntent_IsValid(t *testing.T) {
	for _, i := range AllIntents() {
		assert.True(t, i.IsValid())
	}
	assert.False(t, Intent("summary").IsValid())
}
