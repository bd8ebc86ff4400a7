package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carequery/decision-support/internal/domain/entities"
)

func TestParseCompletionWellFormed(t *testing.T) {
	p := parseCompletion(wellFormedCompletion)

	assert.Equal(t, "Start low dose and titrate.", p.Text)
	assert.Equal(t, []string{"Check renal function"}, p.Actions)
	assert.Equal(t, []string{"WHO-2024"}, p.Citations)
	assert.Equal(t, entities.ConfidenceHigh, p.Confidence)
	assert.False(t, p.Ambiguous)
}

func TestParseCompletionSufficiencyTiers(t *testing.T) {
	tests := []struct {
		statement string
		want      entities.Confidence
	}{
		{"sufficient", entities.ConfidenceHigh},
		{"partially sufficient", entities.ConfidenceModerate},
		{"insufficient", entities.ConfidenceLow},
		{"Sufficient", entities.ConfidenceHigh},
	}

	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			p := parseCompletion("RECOMMENDATION:\ntext\n\nEVIDENCE SUFFICIENCY: " + tt.statement)
			assert.Equal(t, tt.want, p.Confidence)
			assert.False(t, p.Ambiguous)
		})
	}
}

func TestParseCompletionMissingSufficiencyIsAmbiguous(t *testing.T) {
	p := parseCompletion("RECOMMENDATION:\nDo the thing.\n")

	assert.Equal(t, "Do the thing.", p.Text)
	assert.Equal(t, entities.ConfidenceLow, p.Confidence)
	assert.True(t, p.Ambiguous)
}

func TestParseCompletionUnstructuredOutput(t *testing.T) {
	raw := "The model ignored the format and just wrote prose about statins."
	p := parseCompletion(raw)

	// The clinician still sees what came back.
	assert.Equal(t, raw, p.Text)
	assert.True(t, p.Ambiguous)
	assert.Equal(t, entities.ConfidenceLow, p.Confidence)
	assert.Empty(t, p.Citations)
}

func TestParseCompletionMultipleCitations(t *testing.T) {
	raw := `RECOMMENDATION:
text

CITATIONS:
[1] WHO-2024
[2] https://pubmed.ncbi.nlm.nih.gov/123
not a citation line
[3] NICE NG136

EVIDENCE SUFFICIENCY: partially sufficient`

	p := parseCompletion(raw)
	assert.Equal(t, []string{"WHO-2024", "https://pubmed.ncbi.nlm.nih.gov/123", "NICE NG136"}, p.Citations)
	assert.Equal(t, entities.ConfidenceModerate, p.Confidence)
}

func TestVerifyCitations(t *testing.T) {
	evidence := &entities.RankedEvidenceSet{Items: []entities.EvidenceItem{
		{Source: entities.SourceVectorIndex, Citation: "WHO-2024"},
		{Source: entities.SourceLiveSearch, Citation: "https://cdc.gov/x"},
	}}

	citations := verifyCitations([]string{"who-2024", "https://cdc.gov/x", "Fabricated 2023"}, evidence)
	require.Len(t, citations, 3)

	assert.True(t, citations[0].Verified, "matching is case-insensitive")
	assert.Equal(t, string(entities.SourceVectorIndex), citations[0].Source)
	assert.True(t, citations[1].Verified)

	// Unknown references stay visible, flagged unverified.
	assert.False(t, citations[2].Verified)
	assert.Equal(t, "Fabricated 2023", citations[2].Reference)
}
