package analyze_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"pressroom/internal/pipeline"
	"pressroom/internal/services/wordpress"
	"pressroom/internal/stages/analyze"
)

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) CompleteJSON(_ context.Context, _ string, user string, _ float64) (string, error) {
	f.prompt = user
	return f.response, f.err
}

type fakeCategories struct {
	list []wordpress.Category
	err  error
}

func (f fakeCategories) Categories(context.Context) ([]wordpress.Category, error) {
	return f.list, f.err
}

func newContext() *pipeline.Context {
	pc := pipeline.NewContext(1, 100, pipeline.DefaultOptions())
	pc.Subject = &pipeline.Subject{
		Name:             "Example",
		ShortDescription: "A short pitch",
		Developers:       []string{"Studio"},
		Genres:           []string{"Action", "Indie", "action"},
	}
	return pc
}

var siteCategories = fakeCategories{list: []wordpress.Category{{ID: 3, Name: "Action Games"}, {ID: 4, Name: "Puzzle"}}}

func TestAnalyzeAppliesResult(t *testing.T) {
	completer := &fakeLLM{response: "```json\n" + `{"category":"Action Games","tags":["shooter","Shooter","co-op"],
	  "seo":{"title":"Example download","description":"Grab it","keywords":"example, shooter ,"}}` + "\n```"}
	stage := analyze.NewStage(completer, siteCategories, nil)

	pc := newContext()
	if !stage.Applies(pc) {
		t.Fatal("expected stage to apply")
	}
	out, err := stage.Execute(context.Background(), pc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.CategoryID != 3 {
		t.Fatalf("expected category 3, got %d", out.CategoryID)
	}
	if !reflect.DeepEqual(out.Tags, []string{"Shooter", "Co-Op"}) && !reflect.DeepEqual(out.Tags, []string{"Shooter", "Co-op"}) {
		t.Fatalf("unexpected tags %v", out.Tags)
	}
	if out.SEO.Title != "Example download" || !reflect.DeepEqual(out.SEO.Keywords, []string{"example", "shooter"}) {
		t.Fatalf("unexpected seo %+v", out.SEO)
	}
	if !out.Analyzed || stage.Applies(out) {
		t.Fatal("expected analyzed flag to stop reapplication")
	}
	if !strings.Contains(completer.prompt, "- Puzzle") || !strings.Contains(completer.prompt, "Example") {
		t.Fatalf("prompt missing context: %s", completer.prompt)
	}
}

func TestAnalyzeFallsBackOnSchemaViolation(t *testing.T) {
	completer := &fakeLLM{response: `{"category":"Action Games","tags":"not-a-list"}`}
	stage := analyze.NewStage(completer, siteCategories, nil)

	out, err := stage.Execute(context.Background(), newContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.CategoryID != 0 {
		t.Fatalf("fallback must not pick a category, got %d", out.CategoryID)
	}
	if !reflect.DeepEqual(out.Tags, []string{"Action", "Indie"}) {
		t.Fatalf("expected genre tags, got %v", out.Tags)
	}
	if out.SEO.Title != "Example download" || out.SEO.Description != "A short pitch" {
		t.Fatalf("unexpected fallback seo %+v", out.SEO)
	}
}

func TestAnalyzeFallsBackOnGarbage(t *testing.T) {
	stage := analyze.NewStage(&fakeLLM{response: "sorry, I cannot"}, nil, nil)
	out, err := stage.Execute(context.Background(), newContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.Analyzed || out.SEO.Title == "" {
		t.Fatalf("expected fallback analysis, got %+v", out)
	}
}

func TestAnalyzeTransportErrorFailsStage(t *testing.T) {
	boom := errors.New("connection refused")
	stage := analyze.NewStage(&fakeLLM{err: boom}, siteCategories, nil)
	if _, err := stage.Execute(context.Background(), newContext()); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestAnalyzeToleratesCategoryOutage(t *testing.T) {
	completer := &fakeLLM{response: `{"category":"uncategorized","tags":["a"],"seo":{"title":"T","description":"D"}}`}
	stage := analyze.NewStage(completer, fakeCategories{err: errors.New("wordpress down")}, nil)
	out, err := stage.Execute(context.Background(), newContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.CategoryID != 0 || out.SEO.Title != "T" {
		t.Fatalf("unexpected result %+v", out)
	}
	if !strings.Contains(completer.prompt, "- uncategorized") {
		t.Fatalf("expected fallback category list, got %s", completer.prompt)
	}
}

func TestAnalyzeDisabledByOptions(t *testing.T) {
	stage := analyze.NewStage(&fakeLLM{}, nil, nil)
	pc := newContext()
	pc.Options.EnableAnalyze = false
	if stage.Applies(pc) {
		t.Fatal("stage must not apply when disabled")
	}
}
