package bias

import (
	"testing"

	"github.com/talk-less/talkless/config"
	"github.com/talk-less/talkless/models"
)

func testRules(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := Compile(config.BiasRulesConfig{
		LoadedWords: []config.BiasRuleEntry{
			{Pattern: "slammed", Scope: "any", Confidence: "medium", Weight: 1},
		},
		AttributionPatterns: []config.BiasRuleEntry{
			{Pattern: "sources say", Scope: "body", Confidence: "medium", Weight: 1},
		},
		FramingPatterns: []config.FramingRuleEntry{
			{HeadlinePattern: "shocking", BodyAbsent: "evidence", Confidence: "low", Weight: 0.5},
		},
		MinConfidence:       "low",
		PerArticleThreshold: 0.01,
	})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return rs
}

func TestDetect_MatchesLoadedWordOnWordBoundary(t *testing.T) {
	d := NewDetector(testRules(t))
	a := models.Article{ID: "a1", Title: "Officials slammed the decision", Content: "no further detail"}
	got := d.Detect(a)
	found := false
	for _, ind := range got {
		if ind.Kind == models.BiasKindLoadedLanguage && ind.Match == "slammed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a loaded_language indicator for 'slammed', got %+v", got)
	}
}

func TestDetect_DoesNotMatchSubstringInsideAnotherWord(t *testing.T) {
	d := NewDetector(testRules(t))
	a := models.Article{ID: "a1", Title: "unslammeded nonsense word", Content: ""}
	got := d.Detect(a)
	for _, ind := range got {
		if ind.Match == "slammed" {
			t.Fatalf("expected word-boundary matching to reject a substring hit, got %+v", got)
		}
	}
}

func TestDetect_AttributionScopedToBodyOnly(t *testing.T) {
	d := NewDetector(testRules(t))
	titleOnly := models.Article{ID: "a1", Title: "sources say something happened", Content: "nothing here"}
	got := d.Detect(titleOnly)
	for _, ind := range got {
		if ind.Kind == models.BiasKindAttribution {
			t.Fatalf("expected body-scoped rule not to match the title, got %+v", got)
		}
	}
}

func TestDetect_FramingRequiresHeadlineMatchAndBodyAbsence(t *testing.T) {
	d := NewDetector(testRules(t))
	withEvidence := models.Article{ID: "a1", Title: "Shocking new report released", Content: "the evidence clearly shows a trend"}
	withoutEvidence := models.Article{ID: "a2", Title: "Shocking new report released", Content: "no supporting detail given"}

	if got := d.Detect(withEvidence); containsKind(got, models.BiasKindFraming) {
		t.Fatalf("expected no framing indicator when body contains the absence pattern, got %+v", got)
	}
	if got := d.Detect(withoutEvidence); !containsKind(got, models.BiasKindFraming) {
		t.Fatalf("expected a framing indicator when body lacks the absence pattern, got %+v", got)
	}
}

func containsKind(indicators []models.BiasIndicator, kind models.BiasIndicatorKind) bool {
	for _, ind := range indicators {
		if ind.Kind == kind {
			return true
		}
	}
	return false
}

func TestBuildReport_AggregatesByKindAndSource(t *testing.T) {
	rules := testRules(t)
	articles := map[string]models.Article{
		"a1": {ID: "a1", SourceID: "s1"},
		"a2": {ID: "a2", SourceID: "s1"},
	}
	indicators := map[string][]models.BiasIndicator{
		"a1": {{ArticleID: "a1", Kind: models.BiasKindLoadedLanguage, Match: "slammed", Confidence: models.ConfidenceMedium, Weight: 1}},
		"a2": {{ArticleID: "a2", Kind: models.BiasKindLoadedLanguage, Match: "slammed", Confidence: models.ConfidenceMedium, Weight: 1}},
	}
	scores := map[string]float64{"a1": 0.02, "a2": 0.0}

	report := BuildReport(rules, indicators, articles, scores)
	if report.TotalIndicators != 2 {
		t.Fatalf("expected 2 total indicators, got %d", report.TotalIndicators)
	}
	if report.ByKind[models.BiasKindLoadedLanguage] != 2 {
		t.Fatalf("expected 2 loaded_language indicators, got %d", report.ByKind[models.BiasKindLoadedLanguage])
	}
	if len(report.BySource) != 1 || report.BySource[0].MeanPerArticle != 1 {
		t.Fatalf("expected mean 1 per article for s1, got %+v", report.BySource)
	}
	if len(report.ArticlesAboveThreshold) != 1 || report.ArticlesAboveThreshold[0] != "a1" {
		t.Fatalf("expected only a1 above threshold, got %v", report.ArticlesAboveThreshold)
	}
}
