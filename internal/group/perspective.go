package group

import (
	"sort"
	"strings"

	"github.com/talk-less/talkless/models"
)

// framingVerbs is a small closed set of headline verbs used to derive a
// group's dominant framing; the original Python pipeline's comparison stub
// wanted headline-vs-headline framing comparison but never implemented it.
var framingVerbs = []string{
	"slams", "praises", "warns", "blasts", "defends", "denies", "accuses",
	"vows", "rejects", "urges", "claims", "condemns", "backs", "clashes",
}

// Perspective computes source-diversity, coverage gaps, and a dominant
// framing hint for a cluster of member articles, given the full set of
// enabled sources for the run.
func Perspective(memberIDs []string, articlesByID map[string]models.Article, allSources []models.Source) models.GroupMetrics {
	sourceIDs := sourceIDsOf(memberIDs, articlesByID)

	metrics := models.GroupMetrics{
		SourceDiversity: sourceDiversity(sourceIDs, len(memberIDs)),
		CoverageGaps:    coverageGaps(sourceIDs, allSources),
		DominantFraming: dominantFraming(memberIDs, articlesByID),
	}
	return metrics
}

// SourceIDs returns the distinct, sorted source ids represented in a group,
// used both for perspective analysis and for populating models.Group.SourceIDs.
func SourceIDs(memberIDs []string, articlesByID map[string]models.Article) []string {
	return sourceIDsOf(memberIDs, articlesByID)
}

func sourceIDsOf(memberIDs []string, articlesByID map[string]models.Article) []string {
	seen := map[string]bool{}
	for _, id := range memberIDs {
		if a, ok := articlesByID[id]; ok {
			seen[a.SourceID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sourceDiversity(sourceIDs []string, totalArticles int) float64 {
	if totalArticles == 0 {
		return 0
	}
	return float64(len(sourceIDs)) / float64(totalArticles)
}

// coverageGaps returns S \ G: enabled sources absent from the group.
func coverageGaps(groupSourceIDs []string, allSources []models.Source) []string {
	present := map[string]bool{}
	for _, id := range groupSourceIDs {
		present[id] = true
	}
	var gaps []string
	for _, s := range allSources {
		if s.Enabled && !present[s.ID] {
			gaps = append(gaps, s.ID)
		}
	}
	sort.Strings(gaps)
	return gaps
}

// dominantFraming finds the most common framing verb among member article
// titles (substring match on the whole lowercased title), returning "" when
// no framing verb is present in any title. Ties break on the verb's position in framingVerbs, keeping the
// result deterministic.
func dominantFraming(memberIDs []string, articlesByID map[string]models.Article) string {
	counts := make(map[string]int, len(framingVerbs))
	for _, id := range memberIDs {
		a, ok := articlesByID[id]
		if !ok {
			continue
		}
		title := strings.ToLower(a.Title)
		for _, verb := range framingVerbs {
			if strings.Contains(title, verb) {
				counts[verb]++
			}
		}
	}
	best, bestCount := "", 0
	for _, verb := range framingVerbs {
		if counts[verb] > bestCount {
			best, bestCount = verb, counts[verb]
		}
	}
	return best
}
