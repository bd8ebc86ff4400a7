package pipeline

import (
	"fmt"
	"strings"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// The synthesis prompt is fixed. Provider choice never changes the prompt,
// only who answers it.
const synthesisPreamble = `You are a clinical decision support assistant. ` +
	`Answer the clinician's question using ONLY the numbered evidence below. ` +
	`Do not invent sources. Cite evidence by its bracketed number.

Respond in exactly this format:

RECOMMENDATION:
<your recommendation>

ACTIONS:
- <concrete next step>

CITATIONS:
[n] <source reference for each evidence item you relied on>

EVIDENCE SUFFICIENCY: <one of: sufficient, partially sufficient, insufficient>`

// BuildSynthesisPrompt renders the fact sheet, the question and the ranked
// evidence into the fixed prompt template.
func BuildSynthesisPrompt(sheet *entities.PatientFactSheet, question string, evidence *entities.RankedEvidenceSet) string {
	var sb strings.Builder

	sb.WriteString(synthesisPreamble)
	sb.WriteString("\n\nPATIENT:\n")
	writeFactSheet(&sb, sheet)

	sb.WriteString("\nQUESTION:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nEVIDENCE:\n")

	for i, item := range evidence.Items {
		sb.WriteString(fmt.Sprintf("[%d] (%s", i+1, item.Source))
		if item.Namespace != "" {
			sb.WriteString("/" + item.Namespace)
		}
		sb.WriteString(fmt.Sprintf(", source: %s) %s\n", item.Citation, item.Content))
	}

	if evidence.Degraded {
		sb.WriteString("\nNOTE: evidence retrieval was degraded (")
		sb.WriteString(strings.Join(evidence.DegradedReasons, ", "))
		sb.WriteString("). Weigh sufficiency accordingly.\n")
	}

	return sb.String()
}

func writeFactSheet(sb *strings.Builder, sheet *entities.PatientFactSheet) {
	fmt.Fprintf(sb, "- Age: %d\n", sheet.Age)
	if sheet.Gender != "" {
		fmt.Fprintf(sb, "- Gender: %s\n", sheet.Gender)
	}
	if sheet.Allergies != "" {
		fmt.Fprintf(sb, "- Allergies: %s\n", sheet.Allergies)
	}

	if len(sheet.Medications) > 0 {
		sb.WriteString("- Active medications:\n")
		for _, m := range sheet.Medications {
			fmt.Fprintf(sb, "  - %s %s %s\n", m.Name, m.Dosage, m.Frequency)
		}
	}

	if len(sheet.Conditions) > 0 {
		sb.WriteString("- Conditions:\n")
		for _, c := range sheet.Conditions {
			status := "resolved"
			if c.IsActive {
				status = "active"
			}
			fmt.Fprintf(sb, "  - %s (%s, diagnosed %s)\n", c.Name, status, c.DiagnosedAt.Format("2006-01"))
		}
	}

	if len(sheet.RecentRecords) > 0 {
		sb.WriteString("- Recent visits:\n")
		for _, r := range sheet.RecentRecords {
			fmt.Fprintf(sb, "  - %s: %s (%s)\n", r.DateOfVisit.Format("2006-01-02"), r.Title, r.Summary)
		}
	}

	if sheet.HistoryOmitted {
		sb.WriteString("- Visit history omitted\n")
	}
}
