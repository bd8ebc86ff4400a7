package pipeline

import (
	"regexp"
	"strings"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// parsedResponse is the structured form of a raw completion before citation
// verification.
type parsedResponse struct {
	Text       string
	Actions    []string
	Citations  []string
	Confidence entities.Confidence
	Ambiguous  bool
}

var citationLineRe = regexp.MustCompile(`^\[\d+\]\s*(.+)$`)

// parseCompletion extracts the structured sections from the model output.
// A malformed response never fails the invocation: whatever text exists is
// returned, confidence drops to low and the result is flagged ambiguous.
func parseCompletion(raw string) *parsedResponse {
	p := &parsedResponse{
		Confidence: entities.ConfidenceLow,
	}

	sections := splitSections(raw)

	if text, ok := sections["RECOMMENDATION"]; ok && strings.TrimSpace(text) != "" {
		p.Text = strings.TrimSpace(text)
	} else {
		// No recognizable recommendation section. Use the whole output so
		// the clinician still sees what the model said.
		p.Text = strings.TrimSpace(raw)
		p.Ambiguous = true
	}

	if actions, ok := sections["ACTIONS"]; ok {
		for _, line := range strings.Split(actions, "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
			if line != "" {
				p.Actions = append(p.Actions, line)
			}
		}
	}

	if citations, ok := sections["CITATIONS"]; ok {
		for _, line := range strings.Split(citations, "\n") {
			line = strings.TrimSpace(line)
			if m := citationLineRe.FindStringSubmatch(line); m != nil {
				p.Citations = append(p.Citations, strings.TrimSpace(m[1]))
			}
		}
	}

	confidence, ok := parseSufficiency(sections["EVIDENCE SUFFICIENCY"])
	if !ok {
		p.Ambiguous = true
	} else {
		p.Confidence = confidence
	}

	return p
}

// sectionHeaders are matched case-sensitively at line start, with or
// without trailing content on the same line.
var sectionHeaders = []string{"RECOMMENDATION", "ACTIONS", "CITATIONS", "EVIDENCE SUFFICIENCY"}

func splitSections(raw string) map[string]string {
	sections := make(map[string]string)
	current := ""
	var buf strings.Builder

	flush := func() {
		if current != "" {
			sections[current] = buf.String()
		}
		buf.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		header, rest, ok := matchHeader(line)
		if ok {
			flush()
			current = header
			if rest != "" {
				buf.WriteString(rest + "\n")
			}
			continue
		}
		if current != "" {
			buf.WriteString(line + "\n")
		}
	}
	flush()
	return sections
}

func matchHeader(line string) (header, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	for _, h := range sectionHeaders {
		if !strings.HasPrefix(trimmed, h) {
			continue
		}
		after := trimmed[len(h):]
		if after == "" || strings.HasPrefix(after, ":") {
			return h, strings.TrimSpace(strings.TrimPrefix(after, ":")), true
		}
	}
	return "", "", false
}

// parseSufficiency maps the model's sufficiency statement to confidence.
// An explicit statement is the only path to anything above low.
func parseSufficiency(raw string) (entities.Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sufficient":
		return entities.ConfidenceHigh, true
	case "partially sufficient":
		return entities.ConfidenceModerate, true
	case "insufficient":
		return entities.ConfidenceLow, true
	default:
		return entities.ConfidenceLow, false
	}
}

// verifyCitations cross-checks parsed citations against the evidence set.
// References that match no retrieved item are kept but marked unverified,
// so fabricated sources stay visible instead of silently vanishing.
func verifyCitations(refs []string, evidence *entities.RankedEvidenceSet) []entities.Citation {
	citations := make([]entities.Citation, 0, len(refs))
	for _, ref := range refs {
		c := entities.Citation{Reference: ref}
		for _, item := range evidence.Items {
			if strings.EqualFold(strings.TrimSpace(ref), strings.TrimSpace(item.Citation)) {
				c.Verified = true
				c.Source = string(item.Source)
				break
			}
		}
		citations = append(citations, c)
	}
	return citations
}
