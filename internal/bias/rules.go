// Package bias implements the BiasDetector: it applies auditable,
// configuration-driven rule sets to article text, producing typed
// indicators and aggregate transparency reports, with no learned
// component.
package bias

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/talk-less/talkless/config"
	"github.com/talk-less/talkless/models"
)

// scope enumerates where a rule is allowed to match.
type scope string

const (
	scopeTitle scope = "title"
	scopeBody  scope = "body"
	scopeAny   scope = "any"
)

// loadedWordRule matches a literal token or phrase on word boundaries.
type loadedWordRule struct {
	pattern    *regexp.Regexp
	raw        string
	scope      scope
	confidence models.Confidence
	weight     float64
}

// attributionRule matches a regex pattern indicating weak sourcing.
type attributionRule struct {
	pattern    *regexp.Regexp
	scope      scope
	confidence models.Confidence
	weight     float64
}

// framingRule pairs a headline pattern with an absence check in the body.
type framingRule struct {
	headline   *regexp.Regexp
	bodyAbsent *regexp.Regexp
	confidence models.Confidence
	weight     float64
}

// RuleSet is the compiled form of a BiasRulesConfig, ready to be matched
// against article text.
type RuleSet struct {
	LoadedWords         []loadedWordRule
	AttributionPatterns []attributionRule
	FramingPatterns     []framingRule
	MinConfidence       models.Confidence
	PerArticleThreshold float64
}

// Compile turns a validated BiasRulesConfig into a matchable RuleSet.
// Rule-file parse errors here are treated as configuration errors: the
// caller is expected to abort the run on a non-nil error, per spec.md
// §4.4's "configuration is a hard dependency".
func Compile(cfg config.BiasRulesConfig) (*RuleSet, error) {
	rs := &RuleSet{
		MinConfidence:       models.Confidence(orDefault(cfg.MinConfidence, "low")),
		PerArticleThreshold: cfg.PerArticleThreshold,
	}

	for i, r := range cfg.LoadedWords {
		pat, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(r.Pattern) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("bias: compiling loaded_words[%d] %q: %w", i, r.Pattern, err)
		}
		rs.LoadedWords = append(rs.LoadedWords, loadedWordRule{
			pattern:    pat,
			raw:        r.Pattern,
			scope:      scope(orDefault(r.Scope, string(scopeAny))),
			confidence: confidenceOrDefault(r.Confidence, models.ConfidenceMedium),
			weight:     r.Weight,
		})
	}

	for i, r := range cfg.AttributionPatterns {
		pat, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("bias: compiling attribution_patterns[%d] %q: %w", i, r.Pattern, err)
		}
		rs.AttributionPatterns = append(rs.AttributionPatterns, attributionRule{
			pattern:    pat,
			scope:      scope(orDefault(r.Scope, string(scopeAny))),
			confidence: confidenceOrDefault(r.Confidence, models.ConfidenceMedium),
			weight:     r.Weight,
		})
	}

	for i, r := range cfg.FramingPatterns {
		headline, err := regexp.Compile("(?i)" + r.HeadlinePattern)
		if err != nil {
			return nil, fmt.Errorf("bias: compiling framing_patterns[%d].headline_pattern %q: %w", i, r.HeadlinePattern, err)
		}
		bodyAbsent, err := regexp.Compile("(?i)" + r.BodyAbsent)
		if err != nil {
			return nil, fmt.Errorf("bias: compiling framing_patterns[%d].body_absent_pattern %q: %w", i, r.BodyAbsent, err)
		}
		rs.FramingPatterns = append(rs.FramingPatterns, framingRule{
			headline:   headline,
			bodyAbsent: bodyAbsent,
			confidence: confidenceOrDefault(r.Confidence, models.ConfidenceLow),
			weight:     r.Weight,
		})
	}

	return rs, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func confidenceOrDefault(s string, def models.Confidence) models.Confidence {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return models.Confidence(s)
}
