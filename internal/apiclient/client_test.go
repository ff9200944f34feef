package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
	"pressroom/internal/fanout"
)

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:7487":        "http://127.0.0.1:7487",
		"0.0.0.0:7487":          "http://127.0.0.1:7487",
		":7487":                 "http://127.0.0.1:7487",
		"[::]:7487":             "http://127.0.0.1:7487",
		"http://example.test:9": "http://example.test:9",
	}
	for bind, want := range cases {
		if got := apiclient.BaseURL(bind); got != want {
			t.Fatalf("BaseURL(%q) = %q, want %q", bind, got, want)
		}
	}
}

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotRequestID string
	var gotBody api.EnqueueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.JobResponse{Job: api.Job{ID: 9, SubjectID: gotBody.SubjectID, State: "pending"}})
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL, "tok")
	job, err := client.Enqueue(context.Background(), api.EnqueueRequest{SubjectID: 730, AutoConfirm: true})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID != 9 || job.SubjectID != 730 || job.State != "pending" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatal("expected a request id header")
	}
	if !gotBody.AutoConfirm {
		t.Fatal("expected autoConfirm in body")
	}
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job already active"})
	}))
	defer srv.Close()

	_, err := apiclient.New(srv.URL, "").Confirm(context.Background(), 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if apiclient.StatusOf(err) != http.StatusConflict {
		t.Fatalf("status = %d, want 409", apiclient.StatusOf(err))
	}
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "job already active" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientListPassesStatesAndPaging(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(api.JobListResponse{Items: []api.Job{{ID: 1}, {ID: 2}}, Total: 9, Limit: 2, Offset: 4})
	}))
	defer srv.Close()

	page, err := apiclient.New(srv.URL, "").List(context.Background(), api.ListQuery{States: []string{"waiting", "failed"}, Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 9 {
		t.Fatalf("unexpected page %+v", page)
	}
	if gotQuery.Get("state") != "waiting,failed" || gotQuery.Get("limit") != "2" || gotQuery.Get("offset") != "4" {
		t.Fatalf("query = %v", gotQuery)
	}
}

func TestClientTrendAndPreview(t *testing.T) {
	var gotDays string
	var gotPreview api.PreviewRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/jobs/trend":
			gotDays = r.URL.Query().Get("days")
			_ = json.NewEncoder(w).Encode(api.TrendResponse{Days: []api.DayCount{{Day: "2026-01-02", Created: 3}}})
		case "/api/preview":
			_ = json.NewDecoder(r.Body).Decode(&gotPreview)
			_ = json.NewEncoder(w).Encode(api.Preview{SubjectID: gotPreview.SubjectID, Name: "Example", Body: "<p>x</p>"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client := apiclient.New(srv.URL, "")

	trend, err := client.Trend(context.Background(), 14)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if gotDays != "14" || len(trend.Days) != 1 || trend.Days[0].Created != 3 {
		t.Fatalf("unexpected trend %+v (days=%q)", trend, gotDays)
	}

	preview, err := client.Preview(context.Background(), api.PreviewRequest{SubjectID: 620})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if gotPreview.SubjectID != 620 || preview.Name != "Example" || preview.Body != "<p>x</p>" {
		t.Fatalf("unexpected preview %+v", preview)
	}
}

func TestClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := apiclient.New(url, "").Status(context.Background())
	if !errors.Is(err, apiclient.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientWatchStreamsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"type":"heartbeat"}`)
		fmt.Fprintln(w, `{"type":"task_done","job_id":4,"subject_id":10,"action":"create","result_ref":"55"}`)
		fmt.Fprintln(w, `{"type":"task_fail","job_id":5,"error":"boom"}`)
	}))
	defer srv.Close()

	var got []fanout.Event
	err := apiclient.New(srv.URL, "").Watch(context.Background(), func(evt fanout.Event) error {
		got = append(got, evt)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[1].Type != fanout.TypeTaskDone || got[1].ResultRef != "55" || got[1].JobID != 4 {
		t.Fatalf("unexpected done event: %+v", got[1])
	}
	if got[2].Error != "boom" {
		t.Fatalf("unexpected fail event: %+v", got[2])
	}
}

func TestClientWatchStopsOnCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"task_done","job_id":1}`)
		fmt.Fprintln(w, `{"type":"task_done","job_id":2}`)
	}))
	defer srv.Close()

	stop := errors.New("stop")
	calls := 0
	err := apiclient.New(srv.URL, "").Watch(context.Background(), func(fanout.Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
