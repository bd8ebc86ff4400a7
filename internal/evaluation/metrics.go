package evaluation

import (
	"strings"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// CitationCoverage computes the fraction of cited sources that were verified
// against the retrieved evidence. Returns 0.0 when nothing was cited.
func CitationCoverage(citations []entities.Citation) float64 {
	if len(citations) == 0 {
		return 0.0
	}

	verified := 0
	for _, c := range citations {
		if c.Verified {
			verified++
		}
	}
	return float64(verified) / float64(len(citations))
}

// CitationRecall computes the fraction of expected sources that appear among
// the recommendation's citations. Returns 0.0 if expected is empty.
func CitationRecall(expected []string, citations []entities.Citation) float64 {
	if len(expected) == 0 {
		return 0.0
	}

	cited := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		cited[normalizeRef(c.Reference)] = struct{}{}
	}

	found := 0
	for _, e := range expected {
		if _, ok := cited[normalizeRef(e)]; ok {
			found++
		}
	}
	return float64(found) / float64(len(expected))
}

// EvidenceUtilization computes the fraction of retrieved evidence items whose
// source was cited by the recommendation. Low utilization means the pipeline
// retrieved far more than the model used.
func EvidenceUtilization(evidence *entities.RankedEvidenceSet, citations []entities.Citation) float64 {
	if evidence == nil || len(evidence.Items) == 0 {
		return 0.0
	}

	cited := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		cited[normalizeRef(c.Reference)] = struct{}{}
	}

	used := 0
	for _, item := range evidence.Items {
		if _, ok := cited[normalizeRef(item.Citation)]; ok {
			used++
		}
	}
	return float64(used) / float64(len(evidence.Items))
}

func normalizeRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
