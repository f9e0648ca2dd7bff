package bias

import (
	"regexp"
	"strings"

	"github.com/talk-less/talkless/models"
)

// Detector applies a compiled RuleSet to article text.
type Detector struct {
	Rules *RuleSet
}

// NewDetector wraps a compiled RuleSet.
func NewDetector(rules *RuleSet) *Detector {
	return &Detector{Rules: rules}
}

// Detect scans an article's title and body for every configured rule and
// returns one BiasIndicator per match. Per-rule regex panics cannot occur
// here (rules are pre-compiled at Compile time); a rule that cannot match
// anything simply contributes no indicators.
func (d *Detector) Detect(article models.Article) []models.BiasIndicator {
	var out []models.BiasIndicator

	for _, r := range d.Rules.LoadedWords {
		out = append(out, matchAll(article, r.pattern, r.scope, models.BiasKindLoadedLanguage, r.confidence, r.weight)...)
	}
	for _, r := range d.Rules.AttributionPatterns {
		out = append(out, matchAll(article, r.pattern, r.scope, models.BiasKindAttribution, r.confidence, r.weight)...)
	}
	for _, r := range d.Rules.FramingPatterns {
		if ind, ok := matchFraming(article, r); ok {
			out = append(out, ind)
		}
	}
	return out
}

func matchAll(article models.Article, pattern *regexp.Regexp, sc scope, kind models.BiasIndicatorKind, confidence models.Confidence, weight float64) []models.BiasIndicator {
	var out []models.BiasIndicator
	for _, text := range scopedTexts(article, sc) {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			out = append(out, models.BiasIndicator{
				ArticleID:  article.ID,
				Kind:       kind,
				Match:      text[loc[0]:loc[1]],
				Context:    contextSpan(text, loc[0], loc[1]),
				Confidence: confidence,
				Weight:     weight,
			})
		}
	}
	return out
}

// matchFraming reports a framing indicator when the headline pattern
// matches the title AND the body-absence pattern does not match the body —
// the paired headline-vs-body comparison spec.md's framing family describes.
func matchFraming(article models.Article, r framingRule) (models.BiasIndicator, bool) {
	loc := r.headline.FindStringIndex(article.Title)
	if loc == nil {
		return models.BiasIndicator{}, false
	}
	if r.bodyAbsent.MatchString(article.Content) {
		return models.BiasIndicator{}, false
	}
	return models.BiasIndicator{
		ArticleID:  article.ID,
		Kind:       models.BiasKindFraming,
		Match:      article.Title[loc[0]:loc[1]],
		Context:    contextSpan(article.Title, loc[0], loc[1]),
		Confidence: r.confidence,
		Weight:     r.weight,
	}, true
}

func scopedTexts(article models.Article, sc scope) []string {
	switch sc {
	case scopeTitle:
		return []string{article.Title}
	case scopeBody:
		return []string{article.Content}
	default:
		return []string{article.Title, article.Content}
	}
}

// contextSpan returns up to 120 characters of context around [start, end)
// in text.
func contextSpan(text string, start, end int) string {
	const maxLen = 120
	pad := (maxLen - (end - start)) / 2
	if pad < 0 {
		pad = 0
	}
	from := start - pad
	if from < 0 {
		from = 0
	}
	to := end + pad
	if to > len(text) {
		to = len(text)
	}
	return strings.TrimSpace(text[from:to])
}

// AggregateScore sums the weights of an article's indicators, normalized
// by body length in characters, per spec.md §4.4.
func AggregateScore(indicators []models.BiasIndicator, bodyLength int) float64 {
	if bodyLength == 0 {
		return 0
	}
	var sum float64
	for _, ind := range indicators {
		sum += ind.Weight
	}
	return sum / float64(bodyLength)
}
