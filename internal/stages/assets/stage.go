// Package assets copies a subject's header image and screenshots into the
// publisher's media library.
package assets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/services/wordpress"
)

const (
	// MaxImages is the header image plus up to ten screenshots.
	MaxImages = 11
	// DefaultConcurrency bounds parallel transfers per job.
	DefaultConcurrency = 4
)

// Downloader fetches remote images.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Library stores images and finds earlier uploads.
type Library interface {
	FindMedia(ctx context.Context, filename string) (*wordpress.Media, error)
	UploadMedia(ctx context.Context, filename, contentType string, data []byte) (*wordpress.Media, error)
}

// Stage fills AssetIDs. Individual image failures are logged and skipped.
type Stage struct {
	downloader  Downloader
	library     Library
	concurrency int
	logger      *slog.Logger
}

// NewStage constructs the assets stage.
func NewStage(downloader Downloader, library Library, concurrency int, logger *slog.Logger) *Stage {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Stage{
		downloader:  downloader,
		library:     library,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "assets"),
	}
}

func (s *Stage) Name() string { return "assets" }

func (s *Stage) Applies(pc *pipeline.Context) bool {
	return pc.Options.EnableAssets && pc.Subject != nil && !pc.AssetsIngested
}

func (s *Stage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	logger := logging.WithContext(ctx, s.logger)
	urls := ImageURLs(pc.Subject)
	ids := make([]int64, len(urls))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			id, err := s.ingest(gctx, pc.Subject.AppID, i, url)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logger.Warn("image skipped",
					logging.String("url", url),
					logging.Error(err),
					logging.String(logging.FieldEventType, "asset_skipped"),
				)
				return nil
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pc.AssetIDs = pc.AssetIDs[:0]
	for _, id := range ids {
		if id > 0 {
			pc.AssetIDs = append(pc.AssetIDs, id)
		}
	}
	pc.AssetsIngested = true
	logger.Info("images ingested",
		logging.Int("requested", len(urls)),
		logging.Int("stored", len(pc.AssetIDs)),
		logging.Int("failed", int(failed.Load())),
	)
	return pc, nil
}

func (s *Stage) ingest(ctx context.Context, appID int64, index int, url string) (int64, error) {
	filename := FileName(appID, index, url)
	existing, err := s.library.FindMedia(ctx, filename)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	data, contentType, err := s.downloader.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	media, err := s.library.UploadMedia(ctx, filename, contentType, data)
	if err != nil {
		return 0, err
	}
	return media.ID, nil
}

// ImageURLs lists the header image followed by screenshots, capped at MaxImages.
func ImageURLs(subject *pipeline.Subject) []string {
	urls := make([]string, 0, MaxImages)
	if subject.HeaderImage != "" {
		urls = append(urls, subject.HeaderImage)
	}
	for _, shot := range subject.Screenshots {
		if len(urls) == MaxImages {
			break
		}
		if shot != "" {
			urls = append(urls, shot)
		}
	}
	return urls
}

// FileName is the stable media name for one image, so re-runs find earlier uploads.
func FileName(appID int64, index int, url string) string {
	sum := md5.Sum([]byte(url))
	return fmt.Sprintf("steam_%d_%d_%s.jpg", appID, index, hex.EncodeToString(sum[:])[:8])
}
