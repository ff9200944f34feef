// Package rewrite produces original body copy from the catalog description.
package rewrite

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"text/template"

	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
)

const (
	maxSourceRunes = 3000
	temperature    = 0.8
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	templates         = parseTemplates()
)

func parseTemplates() map[string]*template.Template {
	out := make(map[string]*template.Template, len(styleTemplates))
	for style, text := range styleTemplates {
		out[style] = template.Must(template.New(style).Parse(text))
	}
	return out
}

// Completer issues free-text completions.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Stage fills RewrittenContent.
type Stage struct {
	llm    Completer
	logger *slog.Logger
}

// NewStage constructs the rewrite stage.
func NewStage(completer Completer, logger *slog.Logger) *Stage {
	return &Stage{llm: completer, logger: logging.NewComponentLogger(logger, "rewrite")}
}

func (s *Stage) Name() string { return "rewrite" }

func (s *Stage) Applies(pc *pipeline.Context) bool {
	return pc.Options.EnableRewrite && pc.Subject != nil && pc.RewrittenContent == "" && sourceText(pc.Subject) != ""
}

func (s *Stage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	style := pc.Options.RewriteStyle
	tmpl, ok := templates[style]
	if !ok {
		style = pipeline.StyleResourceSite
		tmpl = templates[style]
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, map[string]string{
		"Name":        pc.Subject.Name,
		"Description": sourceText(pc.Subject),
	}); err != nil {
		return nil, fmt.Errorf("render rewrite prompt: %w", err)
	}

	content, err := s.llm.Complete(ctx, systemPrompt, prompt.String(), temperature)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("rewrite returned no content")
	}
	pc.RewrittenContent = content
	logging.WithContext(ctx, s.logger).Info("description rewritten",
		logging.String("style", style),
		logging.Int("chars", len([]rune(content))),
	)
	return pc, nil
}

// sourceText is the plain-text description handed to the model.
func sourceText(subject *pipeline.Subject) string {
	text := subject.DetailedDescription
	if strings.TrimSpace(text) == "" {
		text = subject.ShortDescription
	}
	return StripHTML(text, maxSourceRunes)
}

// StripHTML removes tags, unescapes entities and caps the result at limit runes.
func StripHTML(value string, limit int) string {
	value = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n\n").Replace(value)
	value = tagPattern.ReplaceAllString(value, "")
	value = html.UnescapeString(value)
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = blankLinesPattern.ReplaceAllString(value, "\n\n")
	value = strings.TrimSpace(value)
	if runes := []rune(value); limit > 0 && len(runes) > limit {
		value = string(runes[:limit])
	}
	return value
}
