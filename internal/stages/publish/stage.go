package publish

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/services"
	"pressroom/internal/services/wordpress"
)

// Publisher is the subset of the site client used to write posts.
type Publisher interface {
	ResolveTags(ctx context.Context, names []string) ([]int64, error)
	CreatePost(ctx context.Context, post wordpress.Post) (*wordpress.PostResult, error)
	UpdatePost(ctx context.Context, id int64, post wordpress.Post) (*wordpress.PostResult, error)
}

// Stage creates or updates the post and records its id as the result ref.
type Stage struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewStage constructs the publish stage.
func NewStage(publisher Publisher, logger *slog.Logger) *Stage {
	return &Stage{publisher: publisher, logger: logging.NewComponentLogger(logger, "publish")}
}

func (s *Stage) Name() string { return "publish" }

func (s *Stage) Applies(pc *pipeline.Context) bool {
	return pc.Body != "" && pc.Action != pipeline.ActionSkip
}

func (s *Stage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if s.publisher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "publish post", "publisher not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	post := BuildPost(pc)
	if len(pc.Tags) > 0 {
		ids, err := s.publisher.ResolveTags(ctx, pc.Tags)
		if err != nil {
			return nil, err
		}
		post.Tags = ids
	}

	var (
		result *wordpress.PostResult
		err    error
	)
	if target, ok := updateTarget(pc); ok {
		result, err = s.publisher.UpdatePost(ctx, target, post)
		if errors.Is(err, services.ErrNotFound) {
			logger.Warn("update target missing, creating new post",
				logging.Int64("post_id", target),
				logging.String(logging.FieldEventType, "publish_target_missing"),
			)
			pc.Action = pipeline.ActionCreate
			result, err = s.publisher.CreatePost(ctx, post)
		}
	} else {
		pc.Action = pipeline.ActionCreate
		result, err = s.publisher.CreatePost(ctx, post)
	}
	if err != nil {
		return nil, err
	}

	pc.ResultRef = strconv.FormatInt(result.ID, 10)
	logger.Info("post published",
		logging.String("result_ref", pc.ResultRef),
		logging.String("action", string(pc.Action)),
		logging.String("status", result.Status),
		logging.String("link", result.Link),
	)
	return pc, nil
}

// BuildPost maps pipeline output onto a post payload without tag ids.
func BuildPost(pc *pipeline.Context) wordpress.Post {
	post := wordpress.Post{
		Content: pc.Body,
		Status:  pc.Options.PostStatus,
	}
	if pc.Subject != nil {
		post.Title = pc.Subject.Name
	}
	if pc.CategoryID > 0 {
		post.Categories = []int64{pc.CategoryID}
	}
	if len(pc.AssetIDs) > 0 {
		post.FeaturedMedia = pc.AssetIDs[0]
	}
	if !pc.SEO.Empty() {
		post.Meta = map[string]string{
			wordpress.MetaSEOTitle:       pc.SEO.Title,
			wordpress.MetaSEODescription: pc.SEO.Description,
			wordpress.MetaSEOKeywords:    strings.Join(pc.SEO.Keywords, ","),
		}
	}
	return post
}

func updateTarget(pc *pipeline.Context) (int64, bool) {
	if pc.Action != pipeline.ActionUpdate {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(pc.ResultRef), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
