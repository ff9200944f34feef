// Package analyze classifies a subject into a site category, tags and SEO
// metadata with one JSON completion.
package analyze

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/services/llm"
	"pressroom/internal/services/wordpress"
	"pressroom/internal/textutil"
)

//go:embed analysis.schema.json
var analysisSchemaJSON string

const (
	maxTags              = 8
	fallbackTagCount     = 5
	maxSEODescription    = 160
	fallbackCategoryName = "uncategorized"
	temperature          = 0.3
)

var promptTmpl = template.Must(template.New("analyze").Parse(userPromptTemplate))

// Completer issues JSON completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Categories lists the site's categories.
type Categories interface {
	Categories(ctx context.Context) ([]wordpress.Category, error)
}

// Stage fills CategoryID, Tags and SEO.
type Stage struct {
	llm        Completer
	categories Categories
	logger     *slog.Logger
}

// NewStage constructs the analyze stage. categories may be nil.
func NewStage(completer Completer, categories Categories, logger *slog.Logger) *Stage {
	return &Stage{llm: completer, categories: categories, logger: logging.NewComponentLogger(logger, "analyze")}
}

func (s *Stage) Name() string { return "analyze" }

func (s *Stage) Applies(pc *pipeline.Context) bool {
	return pc.Options.EnableAnalyze && pc.Subject != nil && !pc.Analyzed
}

type analysis struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	SEO      struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Keywords    json.RawMessage `json:"keywords"`
	} `json:"seo"`
}

func (s *Stage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	logger := logging.WithContext(ctx, s.logger)
	subject := pc.Subject

	var cats []wordpress.Category
	if s.categories != nil {
		list, err := s.categories.Categories(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(logger, "category list unavailable", "category_fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "post will be left uncategorized"),
			)
		}
		cats = list
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	if len(names) == 0 {
		names = []string{fallbackCategoryName}
	}

	prompt, err := renderPrompt(subject, names)
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.CompleteJSON(ctx, systemPrompt, prompt, temperature)
	if err != nil {
		return nil, err
	}

	result, err := parseAnalysis(raw)
	if err != nil {
		logging.WarnWithContext(logger, "analysis payload rejected; using fallback", "analysis_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "tags and SEO derived from catalog data"),
		)
		applyFallback(pc)
		return pc, nil
	}

	pc.CategoryID = wordpress.CategoryIDByName(cats, result.Category)
	pc.Tags = textutil.UniqueTags(result.Tags, maxTags)
	pc.SEO = pipeline.SEO{
		Title:       strings.TrimSpace(result.SEO.Title),
		Description: truncate(strings.TrimSpace(result.SEO.Description), maxSEODescription),
		Keywords:    parseKeywords(result.SEO.Keywords),
	}
	pc.Analyzed = true
	logger.Info("subject analyzed",
		logging.String("category", result.Category),
		logging.Int64("category_id", pc.CategoryID),
		logging.Int("tags", len(pc.Tags)),
	)
	return pc, nil
}

func renderPrompt(subject *pipeline.Subject, categories []string) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, map[string]any{
		"Name":        subject.Name,
		"Developers":  strings.Join(subject.Developers, ", "),
		"Genres":      strings.Join(subject.Genres, ", "),
		"Description": subject.ShortDescription,
		"Categories":  categories,
	})
	if err != nil {
		return "", fmt.Errorf("render analyze prompt: %w", err)
	}
	return buf.String(), nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func analysisSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("analysis.schema.json", strings.NewReader(analysisSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load analysis schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("analysis.schema.json")
	})
	return schema, schemaErr
}

func parseAnalysis(raw string) (*analysis, error) {
	var doc any
	if err := llm.DecodeJSON(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	sch, err := analysisSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate analysis: %w", err)
	}
	var out analysis
	if err := llm.DecodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &out, nil
}

func parseKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil
		}
		list = strings.Split(joined, ",")
	}
	out := make([]string, 0, len(list))
	for _, kw := range list {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// applyFallback derives tags and SEO from catalog data alone.
func applyFallback(pc *pipeline.Context) {
	subject := pc.Subject
	pc.CategoryID = 0
	pc.Tags = textutil.UniqueTags(subject.Genres, fallbackTagCount)
	pc.SEO = pipeline.SEO{
		Title:       subject.Name + " download",
		Description: truncate(subject.ShortDescription, maxSEODescription),
		Keywords: []string{
			subject.Name,
			subject.Name + " download",
			subject.Name + " free",
		},
	}
	pc.Analyzed = true
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
