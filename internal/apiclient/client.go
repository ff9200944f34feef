// Package apiclient talks to a running pressroom daemon over its HTTP API.
package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"pressroom/internal/api"
	"pressroom/internal/config"
	"pressroom/internal/fanout"
)

const defaultTimeout = 15 * time.Second

// ErrUnavailable is returned when the daemon cannot be reached at all.
var ErrUnavailable = errors.New("daemon unavailable")

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: http %d", e.Status)
	}
	return fmt.Sprintf("api: http %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client is a typed wrapper over the daemon API.
type Client struct {
	baseURL string
	http    *resty.Client
	stream  *resty.Client
}

// New builds a client for baseURL. token may be empty.
func New(baseURL, token string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	build := func() *resty.Client {
		rc := resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json")
		if token != "" {
			rc.SetAuthToken(token)
		}
		return rc
	}
	return &Client{
		baseURL: baseURL,
		http:    build().SetTimeout(defaultTimeout),
		stream:  build(),
	}
}

// FromConfig targets the daemon described by cfg.
func FromConfig(cfg *config.Config) *Client {
	return New(BaseURL(cfg.Paths.APIBind), cfg.Paths.APIToken)
}

// BaseURL turns a listen address into a URL a local client can dial.
// Wildcard hosts are replaced by the loopback address.
func BaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return bind
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Enqueue admits one subject.
func (c *Client) Enqueue(ctx context.Context, req api.EnqueueRequest) (*api.Job, error) {
	var out api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// EnqueueBatch admits many subjects.
func (c *Client) EnqueueBatch(ctx context.Context, req api.BatchEnqueueRequest) (*api.BatchResult, error) {
	var out api.BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/jobs/batch", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Confirm moves a waiting job to pending.
func (c *Client) Confirm(ctx context.Context, id int64) (*api.Job, error) {
	return c.jobAction(ctx, id, "confirm")
}

// Retry moves a failed job back to pending.
func (c *Client) Retry(ctx context.Context, id int64) (*api.Job, error) {
	return c.jobAction(ctx, id, "retry")
}

// ConfirmMany confirms several jobs, or every waiting job when req.All is set.
func (c *Client) ConfirmMany(ctx context.Context, req api.BulkRequest) (*api.BulkResult, error) {
	return c.bulk(ctx, "/api/jobs/confirm", req)
}

// RetryMany retries several jobs, or every failed job when req.All is set.
func (c *Client) RetryMany(ctx context.Context, req api.BulkRequest) (*api.BulkResult, error) {
	return c.bulk(ctx, "/api/jobs/retry", req)
}

// List returns one page of jobs, optionally filtered by state.
func (c *Client) List(ctx context.Context, q api.ListQuery) (*api.JobListResponse, error) {
	query := map[string]string{}
	if len(q.States) > 0 {
		query["state"] = strings.Join(q.States, ",")
	}
	if q.Limit > 0 {
		query["limit"] = strconv.Itoa(q.Limit)
	}
	if q.Offset > 0 {
		query["offset"] = strconv.Itoa(q.Offset)
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trend returns daily activity for the last days days; zero uses the daemon default.
func (c *Client) Trend(ctx context.Context, days int) (*api.TrendResponse, error) {
	var query map[string]string
	if days > 0 {
		query = map[string]string{"days": strconv.Itoa(days)}
	}
	var out api.TrendResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/trend", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preview renders what a job for req.SubjectID would publish. It runs on the
// untimed client since model calls can be slow; bound it with ctx.
func (c *Client) Preview(ctx context.Context, req api.PreviewRequest) (*api.Preview, error) {
	var out api.Preview
	if err := c.send(ctx, c.stream, http.MethodPost, "/api/preview", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Describe fetches one job.
func (c *Client) Describe(ctx context.Context, id int64) (*api.Job, error) {
	var out api.JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Stats returns job counts keyed by state.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	var out api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Counts, nil
}

// Clear removes jobs in scope (completed, failed or all).
func (c *Client) Clear(ctx context.Context, scope string) (int64, error) {
	var out api.ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/jobs", map[string]string{"scope": scope}, nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Watch streams live events to fn until ctx ends, the stream closes or fn
// returns an error. Heartbeats are delivered like any other event.
func (c *Client) Watch(ctx context.Context, fn func(fanout.Event) error) error {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString()).
		SetDoNotParseResponse(true).
		Get("/api/events")
	if err != nil {
		return c.transportError(ctx, err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() >= http.StatusBadRequest {
		return &Error{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	}

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt fanout.Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

func (c *Client) jobAction(ctx context.Context, id int64, action string) (*api.Job, error) {
	var out api.JobResponse
	path := "/api/jobs/" + strconv.FormatInt(id, 10) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

func (c *Client) bulk(ctx context.Context, path string, req api.BulkRequest) (*api.BulkResult, error) {
	var out api.BulkResult
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	return c.send(ctx, c.http, method, path, query, body, out)
}

func (c *Client) send(ctx context.Context, rc *resty.Client, method, path string, query map[string]string, body, out any) error {
	req := rc.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString())
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return c.transportError(ctx, err)
	}
	if resp.IsError() {
		return &Error{Status: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w at %s (start it with `pressroom daemon`): %v", ErrUnavailable, c.baseURL, err)
}

func errorMessage(body []byte) string {
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
