package pipeline_test

import (
	"encoding/json"
	"errors"
	"testing"

	"pressroom/internal/pipeline"
	"pressroom/internal/services"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := pipeline.ParseOptions(nil)
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if opts != pipeline.DefaultOptions() {
		t.Fatalf("expected defaults, got %+v", opts)
	}
}

func TestParseOptionsOverlaysDefaults(t *testing.T) {
	opts, err := pipeline.ParseOptions(json.RawMessage(`{"enable_rewrite":false,"post_status":"publish"}`))
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if opts.EnableRewrite || !opts.EnableAnalyze || opts.PostStatus != "publish" || opts.RewriteStyle != pipeline.StyleResourceSite {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestParseOptionsRejectsInvalid(t *testing.T) {
	cases := []string{
		`{"post_status":"scheduled"}`,
		`{"enable_analyze":"yes"}`,
		`{"unknown":true}`,
		`[1,2]`,
		`{broken`,
	}
	for _, raw := range cases {
		if _, err := pipeline.ParseOptions(json.RawMessage(raw)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", raw, err)
		}
	}
}

func TestOptionsSnapshotRoundTrip(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.RewriteStyle = pipeline.StyleNews
	raw, err := opts.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	back, err := pipeline.ParseOptions(raw)
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if back != opts {
		t.Fatalf("got %+v want %+v", back, opts)
	}
}

func TestParseOptionsOverUsesBase(t *testing.T) {
	base := pipeline.DefaultOptions()
	base.PostStatus = "publish"
	opts, err := pipeline.ParseOptionsOver(base, json.RawMessage(`{"enable_assets":false}`))
	if err != nil {
		t.Fatalf("ParseOptionsOver: %v", err)
	}
	if opts.PostStatus != "publish" || opts.EnableAssets || !opts.EnableAnalyze {
		t.Fatalf("unexpected options %+v", opts)
	}
}
