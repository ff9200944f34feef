package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pressroom/internal/services"
)

const (
	apiPrefix             = "/wp-json/wp/v2"
	defaultTimeout        = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
)

// SEO meta keys understood by the site theme.
const (
	MetaSEOTitle       = "zrz_seo_title"
	MetaSEOKeywords    = "zrz_seo_keywords"
	MetaSEODescription = "zrz_seo_description"
)

// Config holds site credentials.
type Config struct {
	BaseURL        string
	Username       string
	AppPassword    string
	TimeoutSeconds int
}

// Client talks to one WordPress site.
type Client struct {
	http *resty.Client
	base string
}

// Option customizes the client.
type Option func(*resty.Client)

// WithRetryBackoff overrides retry timing.
func WithRetryBackoff(attempts int, base, maxDelay time.Duration) Option {
	return func(c *resty.Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.SetRetryCount(attempts - 1).SetRetryWaitTime(base).SetRetryMaxWaitTime(maxDelay)
	}
}

// NewClient constructs a client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	rc := resty.New().
		SetBaseURL(base+apiPrefix).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxDelay).
		AddRetryCondition(retryableRead)
	if cfg.Username != "" {
		rc.SetBasicAuth(cfg.Username, cfg.AppPassword)
	}
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc, base: base}
}

// Configured reports whether a site URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.base != ""
}

// Category is a post category.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Tag is a post tag.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Media is an uploaded attachment.
type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	Slug      string `json:"slug"`
}

// Post is the writable subset of a post.
type Post struct {
	Title         string            `json:"title,omitempty"`
	Content       string            `json:"content,omitempty"`
	Status        string            `json:"status,omitempty"`
	Categories    []int64           `json:"categories,omitempty"`
	Tags          []int64           `json:"tags,omitempty"`
	FeaturedMedia int64             `json:"featured_media,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// PostResult is what the API reports after a write.
type PostResult struct {
	ID     int64  `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// Categories lists up to 100 categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.do(ctx, "categories", http.MethodGet, "/categories", map[string]string{"per_page": "100"}, nil, &out)
	return out, err
}

// CategoryIDByName resolves a category name case-insensitively. It returns
// zero when no category matches.
func CategoryIDByName(categories []Category, name string) int64 {
	name = strings.TrimSpace(name)
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, name) || strings.EqualFold(cat.Slug, name) {
			return cat.ID
		}
	}
	return 0
}

// ResolveTags maps tag names to ids, creating missing tags.
func (c *Client) ResolveTags(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var found []Tag
		if err := c.do(ctx, "search tags", http.MethodGet, "/tags", map[string]string{"search": name, "per_page": "10"}, nil, &found); err != nil {
			return nil, err
		}
		id := int64(0)
		for _, tag := range found {
			if strings.EqualFold(tag.Name, name) {
				id = tag.ID
				break
			}
		}
		if id == 0 {
			var created Tag
			if err := c.do(ctx, "create tag", http.MethodPost, "/tags", nil, map[string]string{"name": name}, &created); err != nil {
				return nil, err
			}
			id = created.ID
		}
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FindMedia looks up an attachment previously uploaded under filename.
func (c *Client) FindMedia(ctx context.Context, filename string) (*Media, error) {
	stem := strings.TrimSuffix(filename, fileExt(filename))
	var found []Media
	if err := c.do(ctx, "search media", http.MethodGet, "/media", map[string]string{"search": stem, "per_page": "5"}, nil, &found); err != nil {
		return nil, err
	}
	for i := range found {
		if strings.EqualFold(found[i].Slug, stem) || strings.HasSuffix(found[i].SourceURL, "/"+filename) {
			return &found[i], nil
		}
	}
	return nil, nil
}

// UploadMedia stores data in the media library under filename.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, data []byte) (*Media, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename)).
		SetBody(data)
	var media Media
	if err := c.send(req, "upload media", http.MethodPost, "/media", &media); err != nil {
		return nil, err
	}
	return &media, nil
}

// CreatePost creates a new post.
func (c *Client) CreatePost(ctx context.Context, post Post) (*PostResult, error) {
	var out PostResult
	if err := c.do(ctx, "create post", http.MethodPost, "/posts", nil, post, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost overwrites the given fields of post id.
func (c *Client) UpdatePost(ctx context.Context, id int64, post Post) (*PostResult, error) {
	var out PostResult
	if err := c.do(ctx, "update post", http.MethodPost, "/posts/"+strconv.FormatInt(id, 10), nil, post, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckConnection verifies the site answers an authenticated request.
func (c *Client) CheckConnection(ctx context.Context) error {
	var posts []PostResult
	return c.do(ctx, "check connection", http.MethodGet, "/posts", map[string]string{"per_page": "1"}, nil, &posts)
}

func (c *Client) do(ctx context.Context, op, method, path string, query map[string]string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	return c.send(req, op, method, path, out)
}

func (c *Client) send(req *resty.Request, op, method, path string, out any) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "wordpress", op, "site url not configured", nil)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "wordpress", op, "request failed", err)
	}
	if resp.IsError() {
		marker := services.ErrExternalService
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			marker = services.ErrNotFound
		case resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError:
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "wordpress", op, fmt.Sprintf("http %d: %s", resp.StatusCode(), apiMessage(resp.Body())), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return services.Wrap(services.ErrExternalService, "wordpress", op, "decode response", err)
	}
	return nil
}

// retryableRead retries reads only; writes are not idempotent.
func retryableRead(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

func apiMessage(body []byte) string {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		if payload.Code != "" {
			return payload.Code + ": " + payload.Message
		}
		return payload.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 160 {
		text = text[:160] + "..."
	}
	return text
}

func fileExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[idx:]
	}
	return ""
}
