package wordpress_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"pressroom/internal/services"
	"pressroom/internal/services/wordpress"
)

type fakeSite struct {
	mu      sync.Mutex
	tags    map[string]int64
	nextTag int64
	posts   map[int64]wordpress.Post
	uploads []string
	fail    int
}

func newFakeSite() *fakeSite {
	return &fakeSite{tags: map[string]int64{"Action": 7}, nextTag: 100, posts: map[int64]wordpress.Post{}}
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /wp-json/wp/v2/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, []wordpress.Category{{ID: 3, Name: "Action", Slug: "action"}, {ID: 4, Name: "Puzzle", Slug: "puzzle"}})
	})
	mux.HandleFunc("GET /wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.URL.Query().Get("search")
		if id, ok := f.tags[name]; ok {
			writeJSON(w, 200, []wordpress.Tag{{ID: id, Name: name}})
			return
		}
		writeJSON(w, 200, []wordpress.Tag{})
	})
	mux.HandleFunc("POST /wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.nextTag++
		f.tags[body["name"]] = f.nextTag
		id := f.nextTag
		f.mu.Unlock()
		writeJSON(w, 201, wordpress.Tag{ID: id, Name: body["name"]})
	})
	mux.HandleFunc("GET /wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "steam_1_0_abcd" {
			writeJSON(w, 200, []wordpress.Media{{ID: 55, Slug: "steam_1_0_abcd", SourceURL: "https://site/uploads/steam_1_0_abcd.jpg"}})
			return
		}
		writeJSON(w, 200, []wordpress.Media{})
	})
	mux.HandleFunc("POST /wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if string(data) != "image-bytes" || r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected upload %q %q", data, r.Header.Get("Content-Type"))
		}
		f.mu.Lock()
		f.uploads = append(f.uploads, r.Header.Get("Content-Disposition"))
		f.mu.Unlock()
		writeJSON(w, 201, wordpress.Media{ID: 90, SourceURL: "https://site/uploads/new.jpg"})
	})
	mux.HandleFunc("POST /wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		var post wordpress.Post
		_ = json.NewDecoder(r.Body).Decode(&post)
		f.mu.Lock()
		f.posts[42] = post
		f.mu.Unlock()
		writeJSON(w, 201, wordpress.PostResult{ID: 42, Link: "https://site/?p=42", Status: post.Status})
	})
	mux.HandleFunc("POST /wp-json/wp/v2/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "42" {
			writeJSON(w, 404, map[string]string{"code": "rest_post_invalid_id", "message": "Invalid post ID."})
			return
		}
		var post wordpress.Post
		_ = json.NewDecoder(r.Body).Decode(&post)
		f.mu.Lock()
		f.posts[42] = post
		f.mu.Unlock()
		writeJSON(w, 200, wordpress.PostResult{ID: 42, Status: post.Status})
	})
	mux.HandleFunc("GET /wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.fail--
		failing := f.fail >= 0
		f.mu.Unlock()
		if failing {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		writeJSON(w, 200, []wordpress.PostResult{})
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "editor" || pass != "app pass" {
			writeJSON(w, 401, map[string]string{"code": "rest_not_logged_in", "message": "not logged in"})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func newClient(t *testing.T, site *fakeSite) *wordpress.Client {
	t.Helper()
	srv := httptest.NewServer(site.handler(t))
	t.Cleanup(srv.Close)
	return wordpress.NewClient(
		wordpress.Config{BaseURL: srv.URL + "/", Username: "editor", AppPassword: "app pass"},
		wordpress.WithRetryBackoff(3, time.Millisecond, 5*time.Millisecond),
	)
}

func TestCategoriesAndLookup(t *testing.T) {
	client := newClient(t, newFakeSite())
	cats, err := client.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if got := wordpress.CategoryIDByName(cats, "puzzle"); got != 4 {
		t.Fatalf("expected puzzle id 4, got %d", got)
	}
	if got := wordpress.CategoryIDByName(cats, "Racing"); got != 0 {
		t.Fatalf("expected unknown category to map to 0, got %d", got)
	}
}

func TestResolveTagsCreatesMissing(t *testing.T) {
	site := newFakeSite()
	client := newClient(t, site)
	ids, err := client.ResolveTags(context.Background(), []string{"Action", "Roguelike", " "})
	if err != nil {
		t.Fatalf("ResolveTags: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{7, 101}) {
		t.Fatalf("unexpected ids %v", ids)
	}
	if site.tags["Roguelike"] != 101 {
		t.Fatalf("expected tag created, got %v", site.tags)
	}
}

func TestMediaFindAndUpload(t *testing.T) {
	site := newFakeSite()
	client := newClient(t, site)
	found, err := client.FindMedia(context.Background(), "steam_1_0_abcd.jpg")
	if err != nil || found == nil || found.ID != 55 {
		t.Fatalf("expected existing media 55, got %+v err=%v", found, err)
	}
	missing, err := client.FindMedia(context.Background(), "steam_1_1_ffff.jpg")
	if err != nil || missing != nil {
		t.Fatalf("expected no media, got %+v err=%v", missing, err)
	}
	media, err := client.UploadMedia(context.Background(), "steam_1_1_ffff.jpg", "", []byte("image-bytes"))
	if err != nil || media.ID != 90 {
		t.Fatalf("UploadMedia: %+v err=%v", media, err)
	}
	if len(site.uploads) != 1 || site.uploads[0] != `attachment; filename="steam_1_1_ffff.jpg"` {
		t.Fatalf("unexpected uploads %v", site.uploads)
	}
}

func TestCreateAndUpdatePost(t *testing.T) {
	site := newFakeSite()
	client := newClient(t, site)
	post := wordpress.Post{
		Title:      "Game",
		Content:    "<p>body</p>",
		Status:     "draft",
		Categories: []int64{3},
		Meta:       map[string]string{wordpress.MetaSEOTitle: "Game download"},
	}
	res, err := client.CreatePost(context.Background(), post)
	if err != nil || res.ID != 42 {
		t.Fatalf("CreatePost: %+v err=%v", res, err)
	}
	if site.posts[42].Meta[wordpress.MetaSEOTitle] != "Game download" {
		t.Fatalf("meta not sent: %+v", site.posts[42])
	}

	post.Status = "publish"
	if _, err := client.UpdatePost(context.Background(), 42, post); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if site.posts[42].Status != "publish" {
		t.Fatalf("update not applied: %+v", site.posts[42])
	}

	_, err = client.UpdatePost(context.Background(), 9, post)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing post, got %v", err)
	}
}

func TestCheckConnectionRetriesReads(t *testing.T) {
	site := newFakeSite()
	site.fail = 2
	client := newClient(t, site)
	if err := client.CheckConnection(context.Background()); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
}

func TestAuthFailureIsExternalError(t *testing.T) {
	srv := httptest.NewServer(newFakeSite().handler(t))
	defer srv.Close()
	client := wordpress.NewClient(wordpress.Config{BaseURL: srv.URL, Username: "editor", AppPassword: "wrong"})
	err := client.CheckConnection(context.Background())
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client := wordpress.NewClient(wordpress.Config{})
	if client.Configured() {
		t.Fatal("expected unconfigured")
	}
	if _, err := client.Categories(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
