package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pressroom/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		path   string
		passed bool
		detail string
	}{
		{"writable dir", base, true, "MiB free"},
		{"missing", filepath.Join(base, "nope"), false, "does not exist"},
		{"plain file", file, false, "not a directory"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckDirectoryAccess("dir", tc.path)
			if got.Passed != tc.passed || !strings.Contains(got.Detail, tc.detail) {
				t.Fatalf("got %+v, want passed=%v detail containing %q", got, tc.passed, tc.detail)
			}
		})
	}
}

func TestCheckPublisher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "editor" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx := context.Background()
	if got := CheckPublisher(ctx, config.Publisher{BaseURL: srv.URL, Username: "editor", AppPassword: "secret"}); !got.Passed {
		t.Fatalf("expected pass, got %+v", got)
	}
	if got := CheckPublisher(ctx, config.Publisher{BaseURL: srv.URL, Username: "editor", AppPassword: "wrong"}); got.Passed {
		t.Fatal("expected failure for bad credentials")
	}
	if got := CheckPublisher(ctx, config.Publisher{}); got.Passed || got.Detail != "site url missing" {
		t.Fatalf("unexpected result for empty config %+v", got)
	}
	if got := CheckPublisher(ctx, config.Publisher{BaseURL: "http://localhost"}); got.Detail != "credentials missing" {
		t.Fatalf("unexpected result without credentials %+v", got)
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	if got := CheckLLM(context.Background(), config.LLM{APIKey: "k", BaseURL: srv.URL, Model: "m1"}); !got.Passed || got.Detail != "model m1 answered" {
		t.Fatalf("expected pass, got %+v", got)
	}
	if CheckLLM(context.Background(), config.LLM{}).Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "missing")

	results := RunLocal(&cfg)
	if len(results) != 2 || !results[0].Passed || results[1].Passed {
		t.Fatalf("unexpected results %+v", results)
	}
	if !Failed(results) {
		t.Fatal("expected Failed to report the missing log dir")
	}
	if RunLocal(nil) != nil {
		t.Fatal("expected nil for nil config")
	}
}
