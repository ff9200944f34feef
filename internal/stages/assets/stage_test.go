package assets_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"pressroom/internal/pipeline"
	"pressroom/internal/services/wordpress"
	"pressroom/internal/stages/assets"
)

type fakeDownloader struct {
	mu      sync.Mutex
	fetched []string
	fail    map[string]bool
}

func (f *fakeDownloader) Download(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if f.fail[url] {
		return nil, "", errors.New("boom")
	}
	return []byte(url), "image/jpeg", nil
}

type fakeLibrary struct {
	mu       sync.Mutex
	existing map[string]int64
	uploads  map[string]int64
	nextID   int64
}

func (f *fakeLibrary) FindMedia(_ context.Context, filename string) (*wordpress.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.existing[filename]; ok {
		return &wordpress.Media{ID: id}, nil
	}
	return nil, nil
}

func (f *fakeLibrary) UploadMedia(_ context.Context, filename, contentType string, data []byte) (*wordpress.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if contentType != "image/jpeg" || len(data) == 0 {
		return nil, fmt.Errorf("bad upload %s", filename)
	}
	f.nextID++
	id := 1000 + f.nextID
	if f.uploads == nil {
		f.uploads = map[string]int64{}
	}
	f.uploads[filename] = id
	return &wordpress.Media{ID: id}, nil
}

func subject(shots int) *pipeline.Subject {
	s := &pipeline.Subject{AppID: 42, Name: "Example", HeaderImage: "https://cdn/header.jpg"}
	for i := range shots {
		s.Screenshots = append(s.Screenshots, fmt.Sprintf("https://cdn/shot_%d.jpg", i))
	}
	return s
}

func TestImageURLsCapsAtEleven(t *testing.T) {
	urls := assets.ImageURLs(subject(20))
	if len(urls) != assets.MaxImages {
		t.Fatalf("expected %d urls, got %d", assets.MaxImages, len(urls))
	}
	if urls[0] != "https://cdn/header.jpg" || urls[1] != "https://cdn/shot_0.jpg" {
		t.Fatalf("unexpected order %v", urls[:2])
	}
}

func TestFileNameIsStable(t *testing.T) {
	a := assets.FileName(42, 3, "https://cdn/x.jpg")
	b := assets.FileName(42, 3, "https://cdn/x.jpg")
	if a != b {
		t.Fatalf("expected stable name, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "steam_42_3_") || !strings.HasSuffix(a, ".jpg") || len(a) != len("steam_42_3_")+8+4 {
		t.Fatalf("unexpected filename %q", a)
	}
	if a == assets.FileName(42, 3, "https://cdn/y.jpg") {
		t.Fatal("expected url to change the name")
	}
}

func TestAssetsReusesUploadsAndSkipsFailures(t *testing.T) {
	subj := subject(3)
	header := assets.FileName(42, 0, subj.HeaderImage)
	library := &fakeLibrary{existing: map[string]int64{header: 7}}
	downloader := &fakeDownloader{fail: map[string]bool{"https://cdn/shot_1.jpg": true}}
	stage := assets.NewStage(downloader, library, 2, nil)

	pc := pipeline.NewContext(1, 42, pipeline.DefaultOptions())
	pc.Subject = subj
	if !stage.Applies(pc) {
		t.Fatal("expected stage to apply")
	}
	out, err := stage.Execute(context.Background(), pc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.AssetsIngested {
		t.Fatal("expected AssetsIngested")
	}
	if len(out.AssetIDs) != 3 || out.AssetIDs[0] != 7 {
		t.Fatalf("unexpected asset ids %v", out.AssetIDs)
	}
	for _, url := range downloader.fetched {
		if url == subj.HeaderImage {
			t.Fatal("header should not be downloaded when already in the library")
		}
	}
	if len(library.uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(library.uploads))
	}
	if stage.Applies(out) {
		t.Fatal("stage should not apply twice")
	}
}

func TestAssetsDisabled(t *testing.T) {
	stage := assets.NewStage(&fakeDownloader{}, &fakeLibrary{}, 0, nil)
	pc := pipeline.NewContext(1, 42, pipeline.DefaultOptions())
	pc.Subject = subject(1)
	pc.Options.EnableAssets = false
	if stage.Applies(pc) {
		t.Fatal("expected stage to be skipped when disabled")
	}
}

func TestAssetsCancelledContext(t *testing.T) {
	stage := assets.NewStage(&cancelDownloader{}, &fakeLibrary{}, 1, nil)
	pc := pipeline.NewContext(1, 42, pipeline.DefaultOptions())
	pc.Subject = subject(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stage.Execute(ctx, pc); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type cancelDownloader struct{}

func (cancelDownloader) Download(ctx context.Context, _ string) ([]byte, string, error) {
	return nil, "", ctx.Err()
}
