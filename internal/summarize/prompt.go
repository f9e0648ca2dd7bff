package summarize

import (
	"strings"
	"text/template"

	"github.com/talk-less/talkless/models"
)

// PromptVersion is logged with every generated Summary so a prompt change
// is traceable against past output.
const PromptVersion = "v1"

var promptTemplate = template.Must(template.New("summary").Parse(`Synthesize a multi-perspective news summary from the sources below.
Do not copy sentences verbatim from any source; write in your own words.
Cite every substantive claim as [Source: <source name>], using the exact
source names given below.
The summary must be between {{.MinLength}} and {{.MaxLength}} characters.
{{if .PriorViolation}}
The previous attempt failed validation: {{.PriorViolation}}
Rewrite to fix this specific problem.
{{end}}
Sources:
{{range .Articles}}
[Source: {{.SourceName}}] {{.Title}}
{{.Body}}
{{end}}`))

// PromptInput carries everything the template needs for one generation
// attempt, including the previous attempt's validation failure when this
// is a retry.
type PromptInput struct {
	MinLength      int
	MaxLength      int
	PriorViolation string
	Articles       []PromptArticle
}

// PromptArticle is one article's contribution to the prompt payload: source
// name, title, and body truncated to the per-article token budget.
type PromptArticle struct {
	SourceName string
	Title      string
	Body       string
}

// BuildPrompt renders the version-pinned template for a group's member
// articles.
func BuildPrompt(group models.Group, articlesByID map[string]models.Article, minLen, maxLen, perArticleTokenBudget int, priorViolation string) (string, error) {
	input := PromptInput{
		MinLength:      minLen,
		MaxLength:      maxLen,
		PriorViolation: priorViolation,
	}
	for _, id := range group.MemberArticleIDs {
		a, ok := articlesByID[id]
		if !ok {
			continue
		}
		input.Articles = append(input.Articles, PromptArticle{
			SourceName: a.SourceName,
			Title:      a.Title,
			Body:       truncateTokens(a.Content, perArticleTokenBudget),
		})
	}

	var b strings.Builder
	if err := promptTemplate.Execute(&b, input); err != nil {
		return "", err
	}
	return b.String(), nil
}

func truncateTokens(s string, n int) string {
	fields := strings.Fields(s)
	if n <= 0 || n >= len(fields) {
		return s
	}
	return strings.Join(fields[:n], " ")
}
