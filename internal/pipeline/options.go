package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pressroom/internal/services"
)

//go:embed options.schema.json
var optionsSchemaJSON string

// Rewrite styles accepted in Options.RewriteStyle.
const (
	StyleResourceSite = "resource_site"
	StyleNews         = "news"
	StyleReview       = "review"
)

// Options are the per-job knobs captured at admission. The snapshot stored
// with a job is immutable, so a retried job runs with the options it was
// admitted with.
type Options struct {
	EnableAnalyze bool   `json:"enable_analyze"`
	EnableRewrite bool   `json:"enable_rewrite"`
	EnableAssets  bool   `json:"enable_assets"`
	RewriteStyle  string `json:"rewrite_style"`
	PostStatus    string `json:"post_status"`
}

// DefaultOptions returns the options used for keys a caller leaves out.
func DefaultOptions() Options {
	return Options{
		EnableAnalyze: true,
		EnableRewrite: true,
		EnableAssets:  true,
		RewriteStyle:  StyleResourceSite,
		PostStatus:    "draft",
	}
}

var (
	optionsSchemaOnce sync.Once
	optionsSchema     *jsonschema.Schema
	optionsSchemaErr  error
)

func compiledOptionsSchema() (*jsonschema.Schema, error) {
	optionsSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("options.schema.json", strings.NewReader(optionsSchemaJSON)); err != nil {
			optionsSchemaErr = fmt.Errorf("load options schema: %w", err)
			return
		}
		optionsSchema, optionsSchemaErr = compiler.Compile("options.schema.json")
	})
	return optionsSchema, optionsSchemaErr
}

// ParseOptions validates raw against the options schema and overlays it on
// the defaults. Empty input yields the defaults.
func ParseOptions(raw json.RawMessage) (Options, error) {
	return ParseOptionsOver(DefaultOptions(), raw)
}

// ParseOptionsOver is ParseOptions with caller-supplied defaults.
func ParseOptionsOver(base Options, raw json.RawMessage) (Options, error) {
	opts := base
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return opts, nil
	}

	schema, err := compiledOptionsSchema()
	if err != nil {
		return opts, err
	}
	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return opts, services.Wrap(services.ErrValidation, "", "parse options", "options are not valid JSON", err)
	}
	if err := schema.Validate(doc); err != nil {
		return opts, services.Wrap(services.ErrValidation, "", "validate options", "options rejected", err)
	}
	if err := json.Unmarshal(trimmed, &opts); err != nil {
		return opts, services.Wrap(services.ErrValidation, "", "decode options", "options do not match", err)
	}
	return opts, nil
}

// Snapshot encodes the fully resolved options for storage.
func (o Options) Snapshot() (json.RawMessage, error) {
	return json.Marshal(o)
}
