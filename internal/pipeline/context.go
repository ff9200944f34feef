package pipeline

import (
	"encoding/json"
	"slices"
)

// Action is the outcome a run settles on.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Subject is the catalog data fetched for one external item.
type Subject struct {
	AppID               int64    `json:"app_id"`
	Name                string   `json:"name"`
	ShortDescription    string   `json:"short_description"`
	DetailedDescription string   `json:"detailed_description,omitempty"`
	HeaderImage         string   `json:"header_image,omitempty"`
	Website             string   `json:"website,omitempty"`
	Developers          []string `json:"developers,omitempty"`
	Publishers          []string `json:"publishers,omitempty"`
	Genres              []string `json:"genres,omitempty"`
	ReleaseDate         string   `json:"release_date,omitempty"`
	IsFree              bool     `json:"is_free"`
	Currency            string   `json:"currency,omitempty"`
	PriceInitial        int64    `json:"price_initial"`
	PriceFinal          int64    `json:"price_final"`
	DiscountPercent     int      `json:"discount_percent"`
	Screenshots         []string `json:"screenshots,omitempty"`
}

func (s *Subject) clone() *Subject {
	if s == nil {
		return nil
	}
	out := *s
	out.Developers = slices.Clone(s.Developers)
	out.Publishers = slices.Clone(s.Publishers)
	out.Genres = slices.Clone(s.Genres)
	out.Screenshots = slices.Clone(s.Screenshots)
	return &out
}

// SEO is the search metadata bundle attached to a published post.
type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Empty reports whether no SEO field was filled.
func (s SEO) Empty() bool {
	return s.Title == "" && s.Description == "" && len(s.Keywords) == 0
}

// Context is the per-run state handed from stage to stage. Input fields are
// SubjectID, JobID and Options; the rest are filled by stages in order.
type Context struct {
	JobID     int64
	SubjectID int64
	Options   Options

	Subject          *Subject
	Fingerprint      string
	RewrittenContent string
	CategoryID       int64
	Tags             []string
	SEO              SEO
	Analyzed         bool
	AssetIDs         []int64
	AssetsIngested   bool
	Body             string

	ResultRef string
	Action    Action
	Error     string
}

// NewContext returns a fresh context for one run with the default create action.
func NewContext(jobID, subjectID int64, opts Options) *Context {
	return &Context{
		JobID:     jobID,
		SubjectID: subjectID,
		Options:   opts,
		Action:    ActionCreate,
	}
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.Subject = c.Subject.clone()
	out.Tags = slices.Clone(c.Tags)
	out.SEO.Keywords = slices.Clone(c.SEO.Keywords)
	out.AssetIDs = slices.Clone(c.AssetIDs)
	return &out
}

// Failed reports whether a stage recorded an error.
func (c *Context) Failed() bool {
	return c.Error != ""
}

// DisplayName is the human label derived from fetched subject data.
func (c *Context) DisplayName() string {
	if c.Subject == nil {
		return ""
	}
	return c.Subject.Name
}

// Derived is the projection of stage output persisted with a completed job.
type Derived struct {
	CategoryID int64    `json:"category_id,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SEO        *SEO     `json:"seo,omitempty"`
	AssetIDs   []int64  `json:"asset_ids,omitempty"`
}

// Derived projects category, tags, SEO and asset ids.
func (c *Context) Derived() Derived {
	d := Derived{
		CategoryID: c.CategoryID,
		Tags:       slices.Clone(c.Tags),
		AssetIDs:   slices.Clone(c.AssetIDs),
	}
	if !c.SEO.Empty() {
		seo := c.SEO
		seo.Keywords = slices.Clone(c.SEO.Keywords)
		d.SEO = &seo
	}
	return d
}

// DerivedJSON encodes Derived, returning nil when nothing was produced.
func (c *Context) DerivedJSON() (json.RawMessage, error) {
	d := c.Derived()
	if d.CategoryID == 0 && len(d.Tags) == 0 && d.SEO == nil && len(d.AssetIDs) == 0 {
		return nil, nil
	}
	return json.Marshal(d)
}
