package summarize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/talk-less/talkless/models"
)

var citationPattern = regexp.MustCompile(`\[Source:\s*([^\]]+)\]`)

// ExtractCitations parses every "[Source: <name>]" occurrence in text and
// resolves each name against knownSources (case-insensitive), returning a
// map of source name to a placeholder article id populated by the caller.
func ExtractCitations(text string, knownSourceNames map[string]string) map[string]string {
	citations := make(map[string]string)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		for known, articleID := range knownSourceNames {
			if strings.EqualFold(known, name) {
				citations[known] = articleID
				break
			}
		}
	}
	return citations
}

// ValidationResult carries the pass/fail outcome plus the human-readable
// reason for the most recent failure, fed back into the next retry's
// prompt.
type ValidationResult struct {
	Accepted bool
	Reason   string
}

// Validate applies the four acceptance rules from the Summarizer's
// contract: length bounds, per-source citation coverage, no long verbatim
// copied span, and a temperature ceiling.
func Validate(
	text string,
	group models.Group,
	articlesByID map[string]models.Article,
	minLen, maxLen int,
	requiredCitationCoverage int,
	minCopiedSpan int,
	temperature, maxTemperature float64,
) ValidationResult {
	if l := len(text); l < minLen || l > maxLen {
		return ValidationResult{Reason: fmt.Sprintf("length %d outside [%d, %d]", l, minLen, maxLen)}
	}

	sourceNames := map[string]string{}
	for _, id := range group.MemberArticleIDs {
		if a, ok := articlesByID[id]; ok {
			sourceNames[a.SourceName] = id
		}
	}
	citations := ExtractCitations(text, sourceNames)
	required := len(sourceNames)
	if requiredCitationCoverage > 0 && requiredCitationCoverage < required {
		required = requiredCitationCoverage
	}
	if len(citations) < required {
		return ValidationResult{Reason: fmt.Sprintf("citation coverage %d below required %d", len(citations), required)}
	}

	if span, ok := longestCopiedSpan(text, group, articlesByID, minCopiedSpan); ok {
		return ValidationResult{Reason: fmt.Sprintf("copied the phrase %q from a source article", span)}
	}

	if temperature > maxTemperature {
		return ValidationResult{Reason: fmt.Sprintf("temperature %.2f exceeds max %.2f", temperature, maxTemperature)}
	}

	return ValidationResult{Accepted: true}
}

// longestCopiedSpan reports whether text contains a run of at least
// minSpan consecutive words also found, in the same order, in any member
// article's body. Comparison is case-insensitive on whitespace-normalized
// tokens.
func longestCopiedSpan(text string, group models.Group, articlesByID map[string]models.Article, minSpan int) (string, bool) {
	if minSpan <= 0 {
		return "", false
	}
	summaryTokens := strings.Fields(strings.ToLower(text))

	for _, id := range group.MemberArticleIDs {
		a, ok := articlesByID[id]
		if !ok {
			continue
		}
		bodyTokens := strings.Fields(strings.ToLower(a.Content))
		if span, found := sharedRun(summaryTokens, bodyTokens, minSpan); found {
			return span, true
		}
	}
	return "", false
}

// sharedRun looks for a run of length >= minSpan common to both token
// slices, returning the first one found.
func sharedRun(a, b []string, minSpan int) (string, bool) {
	if len(a) < minSpan || len(b) < minSpan {
		return "", false
	}
	bodySet := make(map[string]bool, len(b))
	for i := 0; i+minSpan <= len(b); i++ {
		bodySet[strings.Join(b[i:i+minSpan], " ")] = true
	}
	for i := 0; i+minSpan <= len(a); i++ {
		window := strings.Join(a[i:i+minSpan], " ")
		if bodySet[window] {
			return window, true
		}
	}
	return "", false
}
