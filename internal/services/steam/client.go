package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pressroom/internal/services"
)

const (
	defaultBaseURL  = "https://store.steampowered.com/api"
	defaultTimeout  = 20 * time.Second
	defaultCountry  = "us"
	defaultLanguage = "english"
)

// Config holds catalog settings.
type Config struct {
	BaseURL        string
	Country        string
	Language       string
	TimeoutSeconds int
}

// Client reads the public store API.
type Client struct {
	http     *resty.Client
	country  string
	language string
}

// NewClient constructs a catalog client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	country := strings.TrimSpace(cfg.Country)
	if country == "" {
		country = defaultCountry
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(4 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return r != nil && r.Request != nil && r.Request.Context().Err() == nil
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: rc, country: country, language: language}
}

// AppDetails is the subset of the appdetails payload the pipeline uses.
type AppDetails struct {
	AppID               int64    `json:"steam_appid"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	IsFree              bool     `json:"is_free"`
	ShortDescription    string   `json:"short_description"`
	DetailedDescription string   `json:"detailed_description"`
	HeaderImage         string   `json:"header_image"`
	Website             string   `json:"website"`
	Developers          []string `json:"developers"`
	Publishers          []string `json:"publishers"`
	Genres              []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"genres"`
	ReleaseDate struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	PriceOverview *struct {
		Currency        string `json:"currency"`
		Initial         int64  `json:"initial"`
		Final           int64  `json:"final"`
		DiscountPercent int    `json:"discount_percent"`
	} `json:"price_overview"`
	Screenshots []struct {
		ID            int    `json:"id"`
		PathThumbnail string `json:"path_thumbnail"`
		PathFull      string `json:"path_full"`
	} `json:"screenshots"`
}

type appDetailsEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// AppDetails fetches one app. Unknown or unlisted apps report services.ErrNotFound.
func (c *Client) AppDetails(ctx context.Context, appID int64) (*AppDetails, error) {
	id := strconv.FormatInt(appID, 10)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"appids": id,
			"cc":     c.country,
			"l":      c.language,
		}).
		Get("/appdetails")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransient, "catalog", "appdetails", "request failed", err)
	}
	if resp.IsError() {
		marker := services.ErrExternalService
		if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError {
			marker = services.ErrTransient
		}
		return nil, services.Wrap(marker, "catalog", "appdetails", fmt.Sprintf("http %d", resp.StatusCode()), nil)
	}

	var envelope map[string]appDetailsEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "catalog", "appdetails", "decode response", err)
	}
	entry, ok := envelope[id]
	if !ok || !entry.Success || len(entry.Data) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "appdetails", fmt.Sprintf("app %d not found", appID), nil)
	}
	var details AppDetails
	if err := json.Unmarshal(entry.Data, &details); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "catalog", "appdetails", "decode app data", err)
	}
	if details.AppID == 0 {
		details.AppID = appID
	}
	return &details, nil
}

// Download fetches an image by absolute URL and returns its bytes and content type.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		return nil, "", services.Wrap(services.ErrTransient, "catalog", "download", "request failed", err)
	}
	if resp.IsError() {
		return nil, "", services.Wrap(services.ErrExternalService, "catalog", "download", fmt.Sprintf("http %d for %s", resp.StatusCode(), url), nil)
	}
	contentType := resp.Header().Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return resp.Body(), strings.TrimSpace(contentType), nil
}
