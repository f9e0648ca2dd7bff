package bias

import (
	"sort"

	"github.com/talk-less/talkless/models"
)

// SourceAggregate is one source's contribution to a transparency report.
type SourceAggregate struct {
	SourceID          string
	ArticleCount      int
	IndicatorCount    int
	MeanPerArticle    float64
	TopMatchedTokens  []string
}

// TransparencyReport is the per-run aggregation of every bias indicator
// found, deterministic from its inputs per spec.md §4.4.
type TransparencyReport struct {
	TotalIndicators   int
	ByKind            map[models.BiasIndicatorKind]int
	BySource          []SourceAggregate
	ArticlesAboveThreshold []string
}

// BuildReport aggregates a run's indicators (keyed by article id) plus each
// article's normalized score, filtering ArticlesAboveThreshold at
// rules.PerArticleThreshold. Indicators below rules.MinConfidence are
// excluded from the report's aggregates (but never from the raw indicator
// list the caller retains, per spec.md's "filters noise from reports but
// not from raw indicators").
func BuildReport(rules *RuleSet, indicatorsByArticle map[string][]models.BiasIndicator, articlesByID map[string]models.Article, scores map[string]float64) TransparencyReport {
	report := TransparencyReport{ByKind: map[models.BiasIndicatorKind]int{}}

	sourceCounts := map[string]int{}
	sourceIndicators := map[string]int{}
	sourceTokens := map[string]map[string]int{}

	for articleID, indicators := range indicatorsByArticle {
		article, ok := articlesByID[articleID]
		if !ok {
			continue
		}
		sourceCounts[article.SourceID]++

		for _, ind := range indicators {
			if !meetsMinConfidence(ind.Confidence, rules.MinConfidence) {
				continue
			}
			report.TotalIndicators++
			report.ByKind[ind.Kind]++
			sourceIndicators[article.SourceID]++
			if sourceTokens[article.SourceID] == nil {
				sourceTokens[article.SourceID] = map[string]int{}
			}
			sourceTokens[article.SourceID][ind.Match]++
		}

		if scores[articleID] > rules.PerArticleThreshold {
			report.ArticlesAboveThreshold = append(report.ArticlesAboveThreshold, articleID)
		}
	}
	sort.Strings(report.ArticlesAboveThreshold)

	for sourceID, count := range sourceCounts {
		agg := SourceAggregate{
			SourceID:       sourceID,
			ArticleCount:   count,
			IndicatorCount: sourceIndicators[sourceID],
		}
		if count > 0 {
			agg.MeanPerArticle = float64(sourceIndicators[sourceID]) / float64(count)
		}
		agg.TopMatchedTokens = topTokens(sourceTokens[sourceID], 5)
		report.BySource = append(report.BySource, agg)
	}
	sort.Slice(report.BySource, func(i, j int) bool { return report.BySource[i].SourceID < report.BySource[j].SourceID })

	return report
}

var confidenceRank = map[models.Confidence]int{
	models.ConfidenceLow:    0,
	models.ConfidenceMedium: 1,
	models.ConfidenceHigh:   2,
}

func meetsMinConfidence(c, min models.Confidence) bool {
	return confidenceRank[c] >= confidenceRank[min]
}

func topTokens(counts map[string]int, n int) []string {
	type kv struct {
		token string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for t, c := range counts {
		kvs = append(kvs, kv{t, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].token < kvs[j].token
	})
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]string, len(kvs))
	for i, k := range kvs {
		out[i] = k.token
	}
	return out
}
